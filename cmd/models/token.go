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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etaserve/etaserve/services/api/httpserver"
)

var tokenViper = viper.New()

const tokenSecretKey = "secret"

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a publish token for the API",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		secret := tokenViper.GetString(tokenSecretKey)
		if secret == "" {
			return fmt.Errorf("no secret provided, use --%s", tokenSecretKey)
		}
		token, err := httpserver.MakeAndSerializeToken(httpserver.PublisherRole, secret)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	_ = tokenViper.BindEnv(tokenSecretKey, "ETASERVE_API_PUBLISH_SECRET")
	tokenCmd.Flags().String(
		tokenSecretKey,
		tokenViper.GetString(tokenSecretKey),
		"The secret the API was started with",
	)

	// Don't sort alphabetically, keep insertion order
	tokenCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = tokenViper.BindPFlags(tokenCmd.Flags())
}
