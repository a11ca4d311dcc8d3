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

// Package api implements the http client for the etaserve API, used by the
// `etaserve client ...` commands.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const publishTokenHeaderKey = "Etaserve-Publish-Token"

type Client struct {
	resty *resty.Client
}

// CreateClient creates a client for the etaserve API at the given endpoint,
// eg. "http://localhost:5000"
func CreateClient(endpoint string, timeout time.Duration) *Client {
	restyClient := resty.New()
	restyClient.SetBaseURL(endpoint)
	restyClient.SetTimeout(timeout)
	return &Client{resty: restyClient}
}

type apiError struct {
	Message string `json:"message"`
}

func checkResponse(response *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		if apiErr, ok := response.Error().(*apiError); ok && apiErr.Message != "" {
			return nil, fmt.Errorf("%s (http status %d)", apiErr.Message, response.StatusCode())
		}
		return nil, fmt.Errorf("request failed with http status %d", response.StatusCode())
	}
	return response, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.resty.R().SetContext(ctx).SetError(&apiError{})
}

type Info struct {
	Message     string `json:"message"`
	Usage       string `json:"usage"`
	Version     string `json:"version"`
	VersionHash string `json:"version_hash"`
	Environment string `json:"environment"`
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	info := Info{}
	_, err := checkResponse(c.request(ctx).SetResult(&info).Get("/"))
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

type LoadedModel struct {
	ModelID string `json:"model_id"`
	Version uint   `json:"version"`
}

type Health struct {
	Message string                 `json:"message"`
	Models  map[string]LoadedModel `json:"models"`
}

// Ready checks whether the service serves a loaded model for every mode. A
// 503 answer reports not-ready without an error, other failures (network,
// 5xx) are returned as errors.
func (c *Client) Ready(ctx context.Context) (bool, Health, error) {
	health := Health{}
	response, err := c.request(ctx).SetResult(&health).Get("/healthz")
	if err != nil {
		return false, Health{}, err
	}
	if response.StatusCode() == http.StatusServiceUnavailable {
		return false, Health{}, nil
	}
	if _, err := checkResponse(response, nil); err != nil {
		return false, Health{}, err
	}
	return true, health, nil
}

type PredictRequest struct {
	Mode         string
	ModelVersion *int
	Features     map[string]interface{}
}

type Prediction struct {
	Mode              string  `json:"mode"`
	ModelID           string  `json:"model_id"`
	ModelVersion      uint    `json:"model_version"`
	EtaNormalized     float64 `json:"eta_normalized"`
	EtaMinutes        float64 `json:"eta_minutes"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

func (c *Client) Predict(ctx context.Context, request PredictRequest) (Prediction, error) {
	body := map[string]interface{}{
		"features": request.Features,
	}
	if request.Mode != "" {
		body["mode"] = request.Mode
	}
	if request.ModelVersion != nil {
		body["model_version"] = *request.ModelVersion
	}

	prediction := Prediction{}
	_, err := checkResponse(c.request(ctx).SetBody(body).SetResult(&prediction).Post("/predict"))
	if err != nil {
		return Prediction{}, err
	}
	return prediction, nil
}

type Version struct {
	VersionNumber     uint              `json:"version_number"`
	CreationTimestamp time.Time         `json:"creation_timestamp"`
	Archived          bool              `json:"archived"`
	DataHash          string            `json:"data_hash"`
	DataSize          int               `json:"data_size"`
	UserData          map[string]string `json:"user_data,omitempty"`
}

type Model struct {
	ModelID       string            `json:"model_id"`
	UserData      map[string]string `json:"user_data,omitempty"`
	LatestVersion *Version          `json:"latest_version,omitempty"`
	Versions      []Version         `json:"versions,omitempty"`
}

func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	models := []Model{}
	_, err := checkResponse(c.request(ctx).SetResult(&models).Get("/models"))
	if err != nil {
		return nil, err
	}
	return models, nil
}

func (c *Client) GetModel(ctx context.Context, modelID string) (Model, error) {
	model := Model{}
	_, err := checkResponse(
		c.request(ctx).
			SetResult(&model).
			SetPathParam("model_id", modelID).
			Get("/models/{model_id}"),
	)
	if err != nil {
		return Model{}, err
	}
	return model, nil
}

type PublishedVersion struct {
	Message string  `json:"message"`
	ModelID string  `json:"model_id"`
	Version Version `json:"version"`
}

// PushModelVersion publishes a model artifact document as a new version of
// the given model
func (c *Client) PushModelVersion(
	ctx context.Context,
	modelID string,
	artifact json.RawMessage,
	token string,
) (PublishedVersion, error) {
	published := PublishedVersion{}
	_, err := checkResponse(
		c.request(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader(publishTokenHeaderKey, token).
			SetBody([]byte(artifact)).
			SetResult(&published).
			SetPathParam("model_id", modelID).
			Post("/models/{model_id}/versions"),
	)
	if err != nil {
		return PublishedVersion{}, err
	}
	return published, nil
}

func (c *Client) DeleteModelVersion(ctx context.Context, modelID string, version int, token string) error {
	_, err := checkResponse(
		c.request(ctx).
			SetHeader(publishTokenHeaderKey, token).
			SetPathParam("model_id", modelID).
			SetPathParam("version", fmt.Sprintf("%d", version)).
			Delete("/models/{model_id}/versions/{version}"),
	)
	return err
}

type PredictionRecord struct {
	Idx            uint64                 `json:"idx"`
	ID             string                 `json:"id"`
	Time           time.Time              `json:"time"`
	Mode           string                 `json:"mode"`
	ModelID        string                 `json:"model_id"`
	ModelVersion   uint                   `json:"model_version"`
	EtaNormalized  float64                `json:"eta_normalized"`
	EtaMinutes     float64                `json:"eta_minutes"`
	LatencySeconds float64                `json:"latency_seconds"`
	Features       map[string]interface{} `json:"features"`
}

type PredictionPage struct {
	Records []PredictionRecord `json:"records"`
	NextIdx uint64             `json:"next_idx"`
}

func (c *Client) ListPredictions(ctx context.Context, fromIdx uint64, count int) (PredictionPage, error) {
	page := PredictionPage{}
	_, err := checkResponse(
		c.request(ctx).
			SetResult(&page).
			SetQueryParam("from_idx", fmt.Sprintf("%d", fromIdx)).
			SetQueryParam("count", fmt.Sprintf("%d", count)).
			Get("/predictions"),
	)
	if err != nil {
		return PredictionPage{}, err
	}
	return page, nil
}
