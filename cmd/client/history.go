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
	"github.com/spf13/viper"
)

var historyViper = viper.New()

const (
	historyFromIdxKey = "from_idx"
	historyCountKey   = "count"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the served predictions",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		outputFormat, err := retrieveConsoleOutputFormat()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), clientViper.GetDuration(clientTimeoutKey))
		defer cancel()

		page, err := createClient().ListPredictions(
			ctx,
			historyViper.GetUint64(historyFromIdxKey),
			historyViper.GetInt(historyCountKey),
		)
		if err != nil {
			return err
		}

		switch outputFormat {
		case json:
			return renderJSON(page)
		case text:
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"IDX", "TIME", "MODE", "MODEL", "ETA (MIN)"})
			table.SetBorder(false)
			for _, record := range page.Records {
				table.Append([]string{
					fmt.Sprintf("%d", record.Idx),
					humanize.Time(record.Time),
					record.Mode,
					fmt.Sprintf("%s@%d", record.ModelID, record.ModelVersion),
					fmt.Sprintf("%.2f", record.EtaMinutes),
				})
			}
			table.Render()
			if page.NextIdx > 0 {
				fmt.Printf("More records available, resume with --%s %d\n", historyFromIdxKey, page.NextIdx)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Uint64(historyFromIdxKey, 0, "Index of the first record to list, 0 starts from the oldest")
	historyCmd.Flags().Int(historyCountKey, 20, "Maximum number of records to list, unlimited when 0")

	// Don't sort alphabetically, keep insertion order
	historyCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = historyViper.BindPFlags(historyCmd.Flags())
}
