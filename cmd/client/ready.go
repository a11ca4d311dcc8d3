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
	"time"

	"github.com/spf13/cobra"
)

const readyPollInterval = time.Second

// readyCmd waits for the API to serve every mode, the container image uses
// it as its HEALTHCHECK.
var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Wait for the API to be ready and return",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		timeout := clientViper.GetDuration(clientTimeoutKey)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		client := createClient()

		for {
			// The service might not be listening yet, errors keep us polling
			ready, health, err := client.Ready(ctx)
			if err == nil && ready {
				for mode, model := range health.Models {
					fmt.Printf("%s: %s@%d\n", mode, model.ModelID, model.Version)
				}
				return nil
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("the API was not ready after %v", timeout)
			case <-time.After(readyPollInterval):
			}
		}
	},
}
