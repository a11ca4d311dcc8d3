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
	jsonEncoding "encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/imdario/mergo"
	"github.com/openlyinc/pointy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiClient "github.com/etaserve/etaserve/clients/api"
)

var predictViper = viper.New()

const (
	predictModeKey         = "mode"
	predictSampleKey       = "sample"
	predictFeaturesFileKey = "features_file"
	predictFeatureKey      = "feature"
	predictModelVersionKey = "model_version"
)

// parseFeatureOverride parses a `name=value` feature flag, values parse as
// numbers and booleans when they can, strings otherwise
func parseFeatureOverride(override string) (string, interface{}, error) {
	name, valueStr, found := strings.Cut(override, "=")
	if !found || name == "" {
		return "", nil, fmt.Errorf("invalid feature %q, expected name=value", override)
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return name, value, nil
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return name, value, nil
	}
	return name, valueStr, nil
}

func buildPredictPayload() (map[string]interface{}, error) {
	payload := map[string]interface{}{}

	mode := predictViper.GetString(predictModeKey)
	if predictViper.GetBool(predictSampleKey) {
		samplePayload, err := retrieveSamplePayload(mode)
		if err != nil {
			return nil, err
		}
		payload = samplePayload
	}

	if featuresFile := predictViper.GetString(predictFeaturesFileKey); featuresFile != "" {
		featuresData, err := os.ReadFile(featuresFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read the features file %q: %w", featuresFile, err)
		}
		fileFeatures := map[string]interface{}{}
		if err := jsonEncoding.Unmarshal(featuresData, &fileFeatures); err != nil {
			return nil, fmt.Errorf("unable to decode the features file %q: %w", featuresFile, err)
		}
		if err := mergo.Merge(&payload, fileFeatures, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	overrides := map[string]interface{}{}
	for _, override := range predictViper.GetStringSlice(predictFeatureKey) {
		name, value, err := parseFeatureOverride(override)
		if err != nil {
			return nil, err
		}
		overrides[name] = value
	}
	if err := mergo.Merge(&payload, overrides, mergo.WithOverride); err != nil {
		return nil, err
	}

	return payload, nil
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Request an ETA prediction",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		outputFormat, err := retrieveConsoleOutputFormat()
		if err != nil {
			return err
		}

		payload, err := buildPredictPayload()
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			return fmt.Errorf("no features provided, use --sample, --features_file or --feature")
		}

		request := apiClient.PredictRequest{
			Mode:     predictViper.GetString(predictModeKey),
			Features: payload,
		}
		if version := predictViper.GetInt(predictModelVersionKey); version != 0 {
			request.ModelVersion = pointy.Int(version)
		}

		ctx, cancel := context.WithTimeout(context.Background(), clientViper.GetDuration(clientTimeoutKey))
		defer cancel()

		prediction, err := createClient().Predict(ctx, request)
		if err != nil {
			return err
		}

		switch outputFormat {
		case json:
			return renderJSON(prediction)
		case text:
			etaHours := int(prediction.EtaMinutes) / 60
			etaMinutes := int(prediction.EtaMinutes) % 60
			fmt.Printf(
				"Mode: %s (model %s@%d)\n",
				prediction.Mode, prediction.ModelID, prediction.ModelVersion,
			)
			fmt.Printf("Normalized ETA prediction: %.4f\n", prediction.EtaNormalized)
			fmt.Printf(
				"Actual ETA: %s minutes (~%dh %dm)\n",
				color.GreenString("%.2f", prediction.EtaMinutes), etaHours, etaMinutes,
			)
		}
		return nil
	},
}

func init() {
	predictViper.SetDefault(predictModeKey, "pickup")
	predictCmd.Flags().String(
		predictModeKey,
		predictViper.GetString(predictModeKey),
		"The prediction mode, \"pickup\" or \"delivery\"",
	)

	predictCmd.Flags().Bool(predictSampleKey, false, "Start from the canned sample payload for the mode")
	predictCmd.Flags().String(predictFeaturesFileKey, "", "A JSON file holding the feature payload")
	predictCmd.Flags().StringSlice(
		predictFeatureKey,
		[]string{},
		"A name=value feature override, repeatable",
	)
	predictCmd.Flags().Int(
		predictModelVersionKey,
		0,
		"Pin a model version, 0 uses the currently served version",
	)

	// Don't sort alphabetically, keep insertion order
	predictCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = predictViper.BindPFlags(predictCmd.Flags())
}
