// Copyright 2026 The Etaserve Authors <dev@etaserve.io>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package models implements the `etaserve models` commands, administration
// of a local model registry directory without going through a running API.
package models

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etaserve/etaserve/services/api/registry/backend"
	"github.com/etaserve/etaserve/services/api/registry/backend/fileSystem"
	"github.com/etaserve/etaserve/utils"
)

// modelsViper represents the configuration of the `etaserve models` command
var modelsViper = viper.New()

const (
	modelsDirKey     = "dir"
	defaultModelsDir = ".etaserve/models"
)

// ModelsCmd represents the `etaserve models` command
var ModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Administrate a local model registry directory",
	Args:  cobra.NoArgs,
}

func createBackend() (backend.Backend, error) {
	modelsDir, err := utils.ExpandPath(modelsViper.GetString(modelsDirKey))
	if err != nil {
		return nil, fmt.Errorf("invalid models directory: %w", err)
	}
	if err := os.MkdirAll(modelsDir, 0750); err != nil {
		return nil, fmt.Errorf("unable to create the models directory %q: %w", modelsDir, err)
	}
	return fileSystem.CreateBackend(modelsDir)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models of the local registry",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		registry, err := createBackend()
		if err != nil {
			return err
		}
		defer registry.Destroy()

		models, err := registry.ListModels(0, -1)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"MODEL ID", "LATEST VERSION", "CREATED", "SIZE"})
		table.SetBorder(false)
		for _, model := range models {
			latestVersion := "n/a"
			created := "n/a"
			size := "n/a"
			versionInfo, err := registry.RetrieveModelLastVersionInfo(model.ModelID)
			if err == nil {
				latestVersion = fmt.Sprintf("%d", versionInfo.VersionNumber)
				created = humanize.Time(versionInfo.CreationTimestamp)
				size = humanize.Bytes(uint64(versionInfo.DataSize))
			}
			table.Append([]string{model.ModelID, latestVersion, created, size})
		}
		table.Render()
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show model_id",
	Short: "Show a model of the local registry and its versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(_cmd *cobra.Command, args []string) error {
		registry, err := createBackend()
		if err != nil {
			return err
		}
		defer registry.Destroy()

		modelID := args[0]
		modelInfo, err := registry.RetrieveModelInfo(modelID)
		if err != nil {
			return err
		}
		versions, err := registry.ListModelVersionInfos(modelID, 0, -1)
		if err != nil {
			return err
		}

		fmt.Printf("Model %s, %d version(s)\n", modelInfo.ModelID, len(versions))
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"VERSION", "CREATED", "SIZE", "HASH"})
		table.SetBorder(false)
		for _, version := range versions {
			table.Append([]string{
				fmt.Sprintf("%d", version.VersionNumber),
				humanize.Time(version.CreationTimestamp),
				humanize.Bytes(uint64(version.DataSize)),
				version.DataHash,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	modelsViper.SetDefault(modelsDirKey, defaultModelsDir)
	_ = modelsViper.BindEnv(modelsDirKey, "ETASERVE_MODELS_DIR")
	ModelsCmd.PersistentFlags().String(
		modelsDirKey,
		modelsViper.GetString(modelsDirKey),
		"The model registry directory",
	)

	// Don't sort alphabetically, keep insertion order
	ModelsCmd.PersistentFlags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = modelsViper.BindPFlags(ModelsCmd.PersistentFlags())

	// Add the models subcommands
	ModelsCmd.AddCommand(listCmd)
	ModelsCmd.AddCommand(showCmd)
	ModelsCmd.AddCommand(pushCmd)
	ModelsCmd.AddCommand(deleteCmd)
	ModelsCmd.AddCommand(tokenCmd)
}
