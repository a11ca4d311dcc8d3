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

package client

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	apiClient "github.com/etaserve/etaserve/clients/api"
)

func renderModelsTable(models []apiClient.Model) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"MODEL ID", "LATEST VERSION", "CREATED", "SIZE"})
	table.SetBorder(false)
	for _, model := range models {
		latestVersion := "n/a"
		created := "n/a"
		size := "n/a"
		if model.LatestVersion != nil {
			latestVersion = fmt.Sprintf("%d", model.LatestVersion.VersionNumber)
			created = humanize.Time(model.LatestVersion.CreationTimestamp)
			size = humanize.Bytes(uint64(model.LatestVersion.DataSize))
		}
		table.Append([]string{model.ModelID, latestVersion, created, size})
	}
	table.Render()
}

func renderModelVersionsTable(model apiClient.Model) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"VERSION", "CREATED", "SIZE", "HASH"})
	table.SetBorder(false)
	for _, version := range model.Versions {
		table.Append([]string{
			fmt.Sprintf("%d", version.VersionNumber),
			humanize.Time(version.CreationTimestamp),
			humanize.Bytes(uint64(version.DataSize)),
			version.DataHash,
		})
	}
	table.Render()
}

var modelsCmd = &cobra.Command{
	Use:   "models [model_id]",
	Short: "List the remote models, or show one model and its versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_cmd *cobra.Command, args []string) error {
		outputFormat, err := retrieveConsoleOutputFormat()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), clientViper.GetDuration(clientTimeoutKey))
		defer cancel()

		client := createClient()

		if len(args) == 1 {
			model, err := client.GetModel(ctx, args[0])
			if err != nil {
				return err
			}
			switch outputFormat {
			case json:
				return renderJSON(model)
			case text:
				fmt.Printf("Model %s, %d version(s)\n", model.ModelID, len(model.Versions))
				renderModelVersionsTable(model)
			}
			return nil
		}

		models, err := client.ListModels(ctx)
		if err != nil {
			return err
		}
		switch outputFormat {
		case json:
			return renderJSON(models)
		case text:
			renderModelsTable(models)
		}
		return nil
	},
}
