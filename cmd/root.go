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

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/etaserve/etaserve/cmd/client"
	"github.com/etaserve/etaserve/cmd/models"
	"github.com/etaserve/etaserve/cmd/services"
	"github.com/etaserve/etaserve/utils"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "etaserve",
	Short: "Etaserve, the courier ETA prediction service",
	RunE: func(cmd *cobra.Command, _args []string) error {
		// The container image sets RUNNING_IN_DOCKER=true, the bare binary
		// then starts the API service unattended.
		if utils.RunningInDocker() {
			return services.RunAPIFromEnv()
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Services
	rootCmd.AddCommand(services.ServicesCmd)

	// Client
	rootCmd.AddCommand(client.ClientCmd)

	// Local model store administration
	rootCmd.AddCommand(models.ModelsCmd)

	// Version
	rootCmd.AddCommand(versionCmd)
}
