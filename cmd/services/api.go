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

package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etaserve/etaserve/cmd/services/utils"
	"github.com/etaserve/etaserve/services/api"
	"github.com/etaserve/etaserve/version"
)

// apiViper represents the configuration of the api command
var apiViper = viper.New()

var apiPortKey = "port"
var apiModelDirKey = "model_dir"
var apiPickupModelKey = "pickup_model"
var apiDeliveryModelKey = "delivery_model"
var apiCacheMaxItemsKey = "cache_max_items"
var apiHistoryFileKey = "history_file"
var apiPublishSecretKey = "publish_secret"
var apiWatchKey = "watch"

func runAPI(cfg *viper.Viper) error {
	log.WithFields(logrus.Fields{
		"version": version.Version,
		"hash":    version.Hash,
	}).Info("starting the eta prediction api service")

	options := api.Options{
		Port:          cfg.GetUint(apiPortKey),
		ModelDir:      cfg.GetString(apiModelDirKey),
		PickupModel:   cfg.GetString(apiPickupModelKey),
		DeliveryModel: cfg.GetString(apiDeliveryModelKey),
		CacheMaxItems: cfg.GetInt(apiCacheMaxItemsKey),
		HistoryFile:   cfg.GetString(apiHistoryFileKey),
		PublishSecret: cfg.GetString(apiPublishSecretKey),
		Watch:         cfg.GetBool(apiWatchKey),
	}

	ctx := utils.ContextWithUserTermination(context.Background())

	err := api.Run(ctx, options)
	if err != nil {
		if err == context.Canceled {
			log.Info("interrupted by user")
			return nil
		}
		return err
	}
	return nil
}

// RunAPIFromEnv runs the api service configured from defaults and
// environment variables only, the container entrypoint path.
func RunAPIFromEnv() error {
	if err := configureLog(servicesViper); err != nil {
		return err
	}
	return runAPI(apiViper)
}

// apiCmd represents the api service command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the eta prediction api",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		err := configureLog(servicesViper)
		if err != nil {
			return err
		}
		return runAPI(apiViper)
	},
}

func init() {
	apiViper.SetDefault(apiPortKey, api.DefaultOptions.Port)
	_ = apiViper.BindEnv(apiPortKey, "ETASERVE_API_PORT")
	apiCmd.Flags().Uint(apiPortKey, apiViper.GetUint(apiPortKey), "The port to listen on")

	apiViper.SetDefault(apiModelDirKey, api.DefaultOptions.ModelDir)
	_ = apiViper.BindEnv(apiModelDirKey, "ETASERVE_API_MODEL_DIR")
	apiCmd.Flags().String(
		apiModelDirKey,
		apiViper.GetString(apiModelDirKey),
		"The directory to store model artifacts",
	)

	apiViper.SetDefault(apiPickupModelKey, api.DefaultOptions.PickupModel)
	_ = apiViper.BindEnv(apiPickupModelKey, "ETASERVE_API_PICKUP_MODEL")
	apiCmd.Flags().String(
		apiPickupModelKey,
		apiViper.GetString(apiPickupModelKey),
		"The model serving \"pickup\" predictions",
	)

	apiViper.SetDefault(apiDeliveryModelKey, api.DefaultOptions.DeliveryModel)
	_ = apiViper.BindEnv(apiDeliveryModelKey, "ETASERVE_API_DELIVERY_MODEL")
	apiCmd.Flags().String(
		apiDeliveryModelKey,
		apiViper.GetString(apiDeliveryModelKey),
		"The model serving \"delivery\" predictions",
	)

	apiViper.SetDefault(apiCacheMaxItemsKey, api.DefaultOptions.CacheMaxItems)
	_ = apiViper.BindEnv(apiCacheMaxItemsKey, "ETASERVE_API_CACHE_MAX_ITEMS")
	apiCmd.Flags().Int(
		apiCacheMaxItemsKey,
		apiViper.GetInt(apiCacheMaxItemsKey),
		"Maximum number of model versions the memory cache holds before evicting least recently used",
	)

	apiViper.SetDefault(apiHistoryFileKey, api.DefaultOptions.HistoryFile)
	_ = apiViper.BindEnv(apiHistoryFileKey, "ETASERVE_API_HISTORY_FILE")
	apiCmd.Flags().String(
		apiHistoryFileKey,
		apiViper.GetString(apiHistoryFileKey),
		"The file to store the prediction history, an empty value disables the history",
	)

	apiViper.SetDefault(apiPublishSecretKey, api.DefaultOptions.PublishSecret)
	_ = apiViper.BindEnv(apiPublishSecretKey, "ETASERVE_API_PUBLISH_SECRET")
	apiCmd.Flags().String(
		apiPublishSecretKey,
		apiViper.GetString(apiPublishSecretKey),
		"The secret signing model publish tokens, an empty value disables remote publication",
	)

	apiViper.SetDefault(apiWatchKey, api.DefaultOptions.Watch)
	_ = apiViper.BindEnv(apiWatchKey, "ETASERVE_API_WATCH")
	apiCmd.Flags().Bool(
		apiWatchKey,
		apiViper.GetBool(apiWatchKey),
		"Reload the models when the model directory changes",
	)

	// Don't sort alphabetically, keep insertion order
	apiCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = apiViper.BindPFlags(apiCmd.Flags())
}
