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
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pushViper = viper.New()
var deleteViper = viper.New()

const pushTokenKey = "token"

var pushCmd = &cobra.Command{
	Use:   "push model_id artifact_file",
	Short: "Publish a model artifact as a new version on the API",
	Args:  cobra.ExactArgs(2),
	RunE: func(_cmd *cobra.Command, args []string) error {
		outputFormat, err := retrieveConsoleOutputFormat()
		if err != nil {
			return err
		}

		modelID := args[0]
		artifactFilename := args[1]
		artifactData, err := os.ReadFile(artifactFilename)
		if err != nil {
			return fmt.Errorf("unable to read the artifact file %q: %w", artifactFilename, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), clientViper.GetDuration(clientTimeoutKey))
		defer cancel()

		published, err := createClient().PushModelVersion(
			ctx,
			modelID,
			artifactData,
			pushViper.GetString(pushTokenKey),
		)
		if err != nil {
			return err
		}

		switch outputFormat {
		case json:
			return renderJSON(published)
		case text:
			fmt.Printf(
				"Published model %s@%d (%d bytes)\n",
				published.ModelID, published.Version.VersionNumber, published.Version.DataSize,
			)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete model_id version",
	Short: "Delete a model version on the API",
	Args:  cobra.ExactArgs(2),
	RunE: func(_cmd *cobra.Command, args []string) error {
		modelID := args[0]
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), clientViper.GetDuration(clientTimeoutKey))
		defer cancel()

		if err := createClient().DeleteModelVersion(
			ctx,
			modelID,
			version,
			deleteViper.GetString(pushTokenKey),
		); err != nil {
			return err
		}
		fmt.Printf("Deleted version %s of model %s\n", args[1], modelID)
		return nil
	},
}

func init() {
	for cmdViper, cmd := range map[*viper.Viper]*cobra.Command{
		pushViper:   pushCmd,
		deleteViper: deleteCmd,
	} {
		_ = cmdViper.BindEnv(pushTokenKey, "ETASERVE_CLIENT_PUBLISH_TOKEN")
		cmd.Flags().String(
			pushTokenKey,
			cmdViper.GetString(pushTokenKey),
			"The publish token, mint one with `etaserve models token`",
		)

		// Don't sort alphabetically, keep insertion order
		cmd.Flags().SortFlags = false

		// Bind "cobra" flags defined in the CLI with viper
		_ = cmdViper.BindPFlags(cmd.Flags())
	}
}
