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

package models

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/etaserve/etaserve/services/api/predictor"
	"github.com/etaserve/etaserve/services/api/registry/backend"
)

var pushCmd = &cobra.Command{
	Use:   "push model_id artifact_file",
	Short: "Store a model artifact as a new version in the local registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(_cmd *cobra.Command, args []string) error {
		modelID := args[0]
		artifactFilename := args[1]

		artifactData, err := os.ReadFile(artifactFilename)
		if err != nil {
			return fmt.Errorf("unable to read the artifact file %q: %w", artifactFilename, err)
		}
		artifact, err := predictor.DecodeArtifact(artifactData)
		if err != nil {
			return err
		}
		// Store the canonical encoding, not the file bytes
		data, err := artifact.Encode()
		if err != nil {
			return err
		}

		registry, err := createBackend()
		if err != nil {
			return err
		}
		defer registry.Destroy()

		if _, err := registry.CreateOrUpdateModel(backend.ModelInfo{ModelID: modelID}); err != nil {
			return err
		}
		versionInfo, err := registry.CreateOrUpdateModelVersion(modelID, backend.VersionArgs{
			CreationTimestamp: time.Now(),
			Archived:          true,
			DataHash:          backend.ComputeSHA256Hash(data),
			Data:              data,
		})
		if err != nil {
			return err
		}

		fmt.Printf(
			"Stored %q model %s@%d (%d bytes)\n",
			artifact.Mode, versionInfo.ModelID, versionInfo.VersionNumber, versionInfo.DataSize,
		)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete model_id [version]",
	Short: "Delete a model, or one of its versions, from the local registry",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_cmd *cobra.Command, args []string) error {
		registry, err := createBackend()
		if err != nil {
			return err
		}
		defer registry.Destroy()

		modelID := args[0]
		if len(args) == 2 {
			version, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[1], err)
			}
			if err := registry.DeleteModelVersion(modelID, version); err != nil {
				return err
			}
			fmt.Printf("Deleted version %s of model %s\n", args[1], modelID)
			return nil
		}

		if err := registry.DeleteModel(modelID); err != nil {
			return err
		}
		fmt.Printf("Deleted model %s\n", modelID)
		return nil
	},
}
