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

// Package client implements the `etaserve client` commands, remote
// operations against a running etaserve API.
package client

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiClient "github.com/etaserve/etaserve/clients/api"
)

// clientViper represents the configuration of the `etaserve client` command
var clientViper = viper.New()

const (
	clientEndpointKey            = "endpoint"
	clientTimeoutKey             = "timeout"
	clientConsoleOutputFormatKey = "console_output"
	defaultClientEndpoint        = "http://localhost:5000"
	defaultClientTimeout         = 30 * time.Second
)

// ClientCmd represents the `etaserve client` command
var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run etaserve client",
	Args:  cobra.NoArgs,
}

func createClient() *apiClient.Client {
	return apiClient.CreateClient(
		clientViper.GetString(clientEndpointKey),
		clientViper.GetDuration(clientTimeoutKey),
	)
}

func init() {
	clientViper.SetDefault(clientEndpointKey, defaultClientEndpoint)
	_ = clientViper.BindEnv(clientEndpointKey, "ETASERVE_CLIENT_ENDPOINT")
	ClientCmd.PersistentFlags().String(
		clientEndpointKey,
		clientViper.GetString(clientEndpointKey),
		"The etaserve API endpoint",
	)

	clientViper.SetDefault(clientTimeoutKey, defaultClientTimeout)
	_ = clientViper.BindEnv(clientTimeoutKey, "ETASERVE_CLIENT_TIMEOUT")
	ClientCmd.PersistentFlags().Duration(
		clientTimeoutKey,
		clientViper.GetDuration(clientTimeoutKey),
		"Timeout for the operation",
	)

	clientViper.SetDefault(clientConsoleOutputFormatKey, string(text))
	_ = clientViper.BindEnv(clientConsoleOutputFormatKey, "ETASERVE_CLIENT_CONSOLE_OUTPUT")
	ClientCmd.PersistentFlags().String(
		clientConsoleOutputFormatKey,
		clientViper.GetString(clientConsoleOutputFormatKey),
		fmt.Sprintf(
			"Set console output format as one of %v",
			expectedOutputFormats,
		),
	)

	// Don't sort alphabetically, keep insertion order
	ClientCmd.PersistentFlags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = clientViper.BindPFlags(ClientCmd.PersistentFlags())

	// Add the client subcommands
	ClientCmd.AddCommand(predictCmd)
	ClientCmd.AddCommand(modelsCmd)
	ClientCmd.AddCommand(pushCmd)
	ClientCmd.AddCommand(deleteCmd)
	ClientCmd.AddCommand(historyCmd)
	ClientCmd.AddCommand(readyCmd)
}
