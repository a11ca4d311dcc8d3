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

package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etaserve/etaserve/services/api/history"
	"github.com/etaserve/etaserve/services/api/predictor"
	"github.com/etaserve/etaserve/services/api/registry/backend"
	"github.com/etaserve/etaserve/services/api/registry/backend/fileSystem"
)

type testServer struct {
	server   *Server
	registry backend.Backend
	manager  *predictor.Manager
}

func makePickupArtifact() *predictor.Artifact {
	return &predictor.Artifact{
		Format:        predictor.ArtifactFormat,
		FormatVersion: predictor.ArtifactFormatVersion,
		Mode:          predictor.ModePickup,
		TrainedAt:     time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		Target:        predictor.TargetSpec{Name: "eta_minutes", Min: 10, Max: 110},
		Features: []predictor.FeatureSpec{
			{Name: "pickup_distance_km", Kind: predictor.FeatureKindNumeric, Min: 0, Max: 10},
		},
		BaseScore: 0.1,
		Trees: []predictor.Tree{{Nodes: []predictor.Node{
			{Feature: 0, Threshold: 0.5, Left: 1, Right: 2, DefaultLeft: true},
			{Leaf: true, Value: 0.1},
			{Leaf: true, Value: 0.5},
		}}},
	}
}

func makeDeliveryArtifact() *predictor.Artifact {
	artifact := makePickupArtifact()
	artifact.Mode = predictor.ModeDelivery
	artifact.Features[0].Name = "delivery_distance_km"
	return artifact
}

func publishTestArtifact(t *testing.T, registry backend.Backend, modelID string, artifact *predictor.Artifact) {
	data, err := artifact.Encode()
	require.NoError(t, err)
	_, err = registry.CreateOrUpdateModel(backend.ModelInfo{ModelID: modelID})
	require.NoError(t, err)
	_, err = registry.CreateOrUpdateModelVersion(modelID, backend.VersionArgs{
		CreationTimestamp: time.Now().UTC(),
		Archived:          true,
		DataHash:          backend.ComputeSHA256Hash(data),
		Data:              data,
	})
	require.NoError(t, err)
}

func createTestServer(t *testing.T, historyStore *history.Store, publishSecret string) *testServer {
	registry, err := fileSystem.CreateBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(registry.Destroy)

	publishTestArtifact(t, registry, "pickup-eta", makePickupArtifact())
	publishTestArtifact(t, registry, "delivery-eta", makeDeliveryArtifact())

	manager := predictor.NewManager(registry, map[predictor.Mode]string{
		predictor.ModePickup:   "pickup-eta",
		predictor.ModeDelivery: "delivery-eta",
	})
	require.NoError(t, manager.Load())

	server, err := New(0, manager, registry, historyStore, publishSecret)
	require.NoError(t, err)

	return &testServer{
		server:   server,
		registry: registry,
		manager:  manager,
	}
}

func (ts *testServer) do(t *testing.T, method string, target string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var bodyReader *bytes.Reader
	if body != nil {
		encodedBody, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(encodedBody)
	} else {
		bodyReader = bytes.NewReader([]byte{})
	}

	request := httptest.NewRequest(method, target, bodyReader)
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	ts.server.Handler.ServeHTTP(recorder, request)

	decodedBody := map[string]interface{}{}
	if len(recorder.Body.Bytes()) > 0 && recorder.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decodedBody))
	}
	return recorder, decodedBody
}

func TestGetInfo(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, body["message"], "running")
	assert.Equal(t, "host", body["environment"])
	assert.NotEmpty(t, recorder.Header().Get("X-Request-Id"))
}

func TestGetHealth(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	models := body["models"].(map[string]interface{})
	assert.Contains(t, models, "pickup")
	assert.Contains(t, models, "delivery")
}

func TestGetHealthNotReady(t *testing.T) {
	registry, err := fileSystem.CreateBackend(t.TempDir())
	require.NoError(t, err)
	defer registry.Destroy()

	manager := predictor.NewManager(registry, map[predictor.Mode]string{predictor.ModePickup: "pickup-eta"})
	server, err := New(0, manager, registry, nil, "")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestPredict(t *testing.T) {
	ts := createTestServer(t, nil, "")

	// 2km -> 0.2 normalized: base 0.1 + left leaf 0.1 = 0.2 -> 30 minutes
	recorder, body := ts.do(t, http.MethodPost, "/predict", map[string]interface{}{
		"features": map[string]interface{}{"pickup_distance_km": 2.0},
	}, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pickup", body["mode"])
	assert.Equal(t, "pickup-eta", body["model_id"])
	assert.Equal(t, 1.0, body["model_version"])
	assert.Equal(t, 0.2, body["eta_normalized"])
	assert.Equal(t, 30.0, body["eta_minutes"])
}

func TestPredictWithoutFeaturesWrapper(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodPost, "/predict", map[string]interface{}{
		"mode":                 "delivery",
		"delivery_distance_km": 2.0,
	}, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "delivery", body["mode"])
	assert.Equal(t, "delivery-eta", body["model_id"])
	assert.Equal(t, 30.0, body["eta_minutes"])
}

func TestPredictInvalidMode(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodPost, "/predict", map[string]interface{}{
		"mode": "dropoff",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, body["message"], "invalid mode")
}

func TestPredictUnknownPinnedVersion(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodPost, "/predict", map[string]interface{}{
		"model_version":      42,
		"pickup_distance_km": 2.0,
	}, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, `no version "42" for model "pickup-eta" found`, body["message"])
}

func TestPredictNotLoaded(t *testing.T) {
	registry, err := fileSystem.CreateBackend(t.TempDir())
	require.NoError(t, err)
	defer registry.Destroy()

	manager := predictor.NewManager(registry, map[predictor.Mode]string{predictor.ModePickup: "pickup-eta"})
	server, err := New(0, manager, registry, nil, "")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader([]byte(`{}`)))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestListModels(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, _ := ts.do(t, http.MethodGet, "/models", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	models := []modelResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &models))
	require.Len(t, models, 2)
	assert.Equal(t, "delivery-eta", models[0].ModelID)
	assert.Equal(t, "pickup-eta", models[1].ModelID)
	require.NotNil(t, models[0].LatestVersion)
	assert.Equal(t, uint(1), models[0].LatestVersion.VersionNumber)
}

func TestGetModel(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodGet, "/models/pickup-eta", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pickup-eta", body["model_id"])
	assert.Len(t, body["versions"], 1)
}

func TestGetUnknownModel(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodGet, "/models/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, `no model "nope" found`, body["message"])
}

func TestPublishModelVersion(t *testing.T) {
	ts := createTestServer(t, nil, "a_secret")

	token, err := MakeAndSerializeToken(PublisherRole, "a_secret")
	require.NoError(t, err)

	updated := makePickupArtifact()
	updated.Target.Min = 20
	updated.Target.Max = 120

	recorder, body := ts.do(t, http.MethodPost, "/models/pickup-eta/versions", updated, map[string]string{
		publishTokenHeaderKey: token,
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "pickup-eta", body["model_id"])

	// The serving model hot swapped to the published version
	recorder, body = ts.do(t, http.MethodPost, "/predict", map[string]interface{}{
		"pickup_distance_km": 2.0,
	}, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 2.0, body["model_version"])
	assert.Equal(t, 40.0, body["eta_minutes"])
}

func TestPublishWrongModeArtifactIsRejected(t *testing.T) {
	ts := createTestServer(t, nil, "a_secret")

	token, err := MakeAndSerializeToken(PublisherRole, "a_secret")
	require.NoError(t, err)

	recorder, _ := ts.do(t, http.MethodPost, "/models/pickup-eta/versions", makeDeliveryArtifact(), map[string]string{
		publishTokenHeaderKey: token,
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// The rejected version was dropped, the previous one keeps serving
	versionInfo, err := ts.registry.RetrieveModelLastVersionInfo("pickup-eta")
	require.NoError(t, err)
	assert.Equal(t, uint(1), versionInfo.VersionNumber)
}

func TestPublishWithoutToken(t *testing.T) {
	ts := createTestServer(t, nil, "a_secret")

	recorder, _ := ts.do(t, http.MethodPost, "/models/pickup-eta/versions", makePickupArtifact(), nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestPublishDisabled(t *testing.T) {
	ts := createTestServer(t, nil, "")

	token, err := MakeAndSerializeToken(PublisherRole, "a_secret")
	require.NoError(t, err)

	recorder, body := ts.do(t, http.MethodPost, "/models/pickup-eta/versions", makePickupArtifact(), map[string]string{
		publishTokenHeaderKey: token,
	})
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, body["message"], "disabled")
}

func TestDeleteModelVersion(t *testing.T) {
	ts := createTestServer(t, nil, "a_secret")
	publishTestArtifact(t, ts.registry, "pickup-eta", makePickupArtifact())

	token, err := MakeAndSerializeToken(PublisherRole, "a_secret")
	require.NoError(t, err)

	recorder, _ := ts.do(t, http.MethodDelete, "/models/pickup-eta/versions/2", nil, map[string]string{
		publishTokenHeaderKey: token,
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	versionInfo, err := ts.registry.RetrieveModelLastVersionInfo("pickup-eta")
	require.NoError(t, err)
	assert.Equal(t, uint(1), versionInfo.VersionNumber)

	recorder, _ = ts.do(t, http.MethodDelete, "/models/pickup-eta/versions/42", nil, map[string]string{
		publishTokenHeaderKey: token,
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestListPredictions(t *testing.T) {
	historyStore, err := history.CreateBoltStore(path.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(historyStore.Destroy)

	ts := createTestServer(t, historyStore, "")

	for i := 0; i < 3; i++ {
		recorder, _ := ts.do(t, http.MethodPost, "/predict", map[string]interface{}{
			"pickup_distance_km": float64(i),
		}, nil)
		require.Equal(t, http.StatusOK, recorder.Code)
	}

	recorder, _ := ts.do(t, http.MethodGet, "/predictions", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	page := listPredictionsResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	require.Len(t, page.Records, 3)
	assert.Equal(t, uint64(0), page.NextIdx)
	assert.Equal(t, "pickup", page.Records[0].Mode)
	assert.Equal(t, 0.0, page.Records[0].Features["pickup_distance_km"])
	assert.NotEmpty(t, page.Records[0].ID)

	recorder, _ = ts.do(t, http.MethodGet, fmt.Sprintf("/predictions?from_idx=%d&count=1", 2), nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	page = listPredictionsResponse{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	require.Len(t, page.Records, 1)
	assert.Equal(t, uint64(2), page.Records[0].Idx)
	assert.Equal(t, uint64(3), page.NextIdx)
}

func TestListPredictionsDisabled(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodGet, "/predictions", nil, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, body["message"], "history is disabled")
}

func TestErrorResponsesAreSingleJSONObjects(t *testing.T) {
	ts := createTestServer(t, nil, "")

	// Typed-handler errors and plain-handler errors both answer with exactly
	// one JSON object carrying the message.
	for _, target := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/models/nope"},
		{http.MethodGet, "/predictions"},
		{http.MethodGet, "/nope"},
	} {
		recorder, _ := ts.do(t, target.method, target.path, nil, nil)
		decoder := json.NewDecoder(bytes.NewReader(recorder.Body.Bytes()))
		body := map[string]interface{}{}
		require.NoError(t, decoder.Decode(&body), target.path)
		assert.NotEmpty(t, body["message"], target.path)
		assert.False(t, decoder.More(), target.path)
	}
}

func TestNoRoute(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "not found", body["message"])
}

func TestOpenAPISpec(t *testing.T) {
	ts := createTestServer(t, nil, "")

	recorder, body := ts.do(t, http.MethodGet, "/openapi.json", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, body, "openapi")
	assert.Contains(t, body, "paths")
}
