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
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/sirupsen/logrus"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"

	"github.com/etaserve/etaserve/services/api/history"
	"github.com/etaserve/etaserve/services/api/predictor"
	"github.com/etaserve/etaserve/services/api/registry/backend"
	"github.com/etaserve/etaserve/utils"
	"github.com/etaserve/etaserve/version"
)

var log = logrus.WithField("component", "api/httpserver")

var infos = openapi.Info{
	Title: "Etaserve API",
	Description: "Etaserve predicts courier ETAs (estimated times of arrival) for last-mile" +
		" pickup and delivery operations. It serves predictions from versioned" +
		" tree-ensemble model artifacts.\n" +
		"\n" +
		"The API is composed of three groups of routes:\n" +
		"- [Prediction](#tag/Prediction)\n" +
		"- [Model Registry](#tag/Model-Registry)\n" +
		"- [Prediction History](#tag/Prediction-History)\n",
	Version: version.Version,
}

const publishTokenHeaderKey = "Etaserve-Publish-Token"

type Server struct {
	http.Server
	manager       *predictor.Manager
	registry      backend.Backend
	history       *history.Store
	publishSecret string

	gin  *gin.Engine
	fizz *fizz.Fizz
}

func New(
	port uint,
	manager *predictor.Manager,
	registry backend.Backend,
	historyStore *history.Store,
	publishSecret string,
) (*Server, error) {
	// Debug mode can be helpful during development
	gin.SetMode(gin.ReleaseMode)
	//gin.SetMode(gin.DebugMode)

	tonic.SetErrorHook(tonicErrorHook)

	ginEngine := gin.New()
	fizzEngine := fizz.NewFromEngine(ginEngine)

	server := &Server{
		Server: http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: fizzEngine,
		},
		manager:       manager,
		registry:      registry,
		history:       historyStore,
		publishSecret: publishSecret,
		gin:           ginEngine,
		fizz:          fizzEngine,
	}

	server.gin.HandleMethodNotAllowed = true

	// Allows all origins
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders(publishTokenHeaderKey)

	server.fizz.Use(cors.New(corsConfig))

	server.fizz.Use(ginRequestIDMiddleware)

	// Use a custom error handler
	server.fizz.Use(ginErrorHandlerMiddleware)

	// Use the custom logger middleware
	server.fizz.Use(ginLoggerMiddleware)

	// Recovery middleware recovers from any panics and writes a 500 if there was one.
	server.fizz.Use(gin.Recovery())

	server.fizz.GET("/", []fizz.OperationOption{
		fizz.Summary("Retrieve information about this API"),
	}, tonic.Handler(server.getInfo, http.StatusOK))

	server.fizz.GET("/openapi.json", []fizz.OperationOption{
		fizz.Summary("Retrieve the open api specification"),
		fizz.Response("500", "Bad server configuration or state", httpError{}, nil, nil),
	}, server.fizz.OpenAPI(&infos, "json"))

	server.fizz.GET("/healthz", []fizz.OperationOption{
		fizz.Summary("Check that every prediction mode serves a loaded model"),
		fizz.Response("503", "Some models are not loaded yet", httpError{}, nil, nil),
	}, tonic.Handler(server.getHealth, http.StatusOK))

	predictionGroup := server.fizz.Group(
		"/predict",
		"Prediction",
		"Predict courier ETAs from order features.",
	)
	predictionGroup.POST("", []fizz.OperationOption{
		fizz.Summary("Predict an ETA"),
		fizz.Description("Predict the ETA, in minutes, for the given order features.\n" +
			"\n" +
			"The body holds the feature values, either directly or under a `features` key," +
			" alongside the optional `mode` (\"pickup\", the default, or \"delivery\") and" +
			" `model_version` (a pinned model version, latest loaded by default)."),
		fizz.Response("400", "Invalid mode or malformed payload", httpError{}, nil, nil),
		fizz.Response("503", "No model loaded for the requested mode", httpError{}, nil, nil),
	}, server.predict)

	registryGroup := server.fizz.Group(
		"/models",
		"Model Registry",
		"Inspect and manage the versioned model artifacts backing the predictions.",
	)
	registryGroup.GET("", []fizz.OperationOption{
		fizz.Summary("List the stored models"),
	}, tonic.Handler(server.listModels, http.StatusOK))
	registryGroup.GET("/:model_id", []fizz.OperationOption{
		fizz.Summary("Retrieve one model and its versions"),
		fizz.Response("404", "Model not found", httpError{}, nil, nil),
	}, tonic.Handler(server.getModel, http.StatusOK))
	registryGroup.POST("/:model_id/versions", []fizz.OperationOption{
		fizz.Summary("Publish a new model version"),
		fizz.Description("Validate and store the model artifact in the request body as a new" +
			" version, then reload the serving models."),
		fizz.Response("400", "Invalid model artifact", httpError{}, nil, nil),
		fizz.Response("401", "Invalid publish token", httpError{}, nil, nil),
		fizz.Response("403", "Publication is disabled", httpError{}, nil, nil),
	}, tonic.Handler(server.publishModelVersion, http.StatusCreated))
	registryGroup.DELETE("/:model_id/versions/:version", []fizz.OperationOption{
		fizz.Summary("Delete a model version"),
		fizz.Description("Delete the given model version, negative versions select from the" +
			" latest (-1 being the latest)."),
		fizz.Response("401", "Invalid publish token", httpError{}, nil, nil),
		fizz.Response("403", "Publication is disabled", httpError{}, nil, nil),
		fizz.Response("404", "Model or version not found", httpError{}, nil, nil),
	}, tonic.Handler(server.deleteModelVersion, http.StatusOK))

	historyGroup := server.fizz.Group(
		"/predictions",
		"Prediction History",
		"Browse the served predictions.",
	)
	historyGroup.GET("", []fizz.OperationOption{
		fizz.Summary("List served predictions"),
		fizz.Response("404", "The prediction history is disabled", httpError{}, nil, nil),
	}, tonic.Handler(server.listPredictions, http.StatusOK))

	ginEngine.NoRoute(func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusNotFound, fmt.Errorf("not found"))
	})

	ginEngine.NoMethod(func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	return server, nil
}

type response struct {
	Message string `json:"message" description:"Human-readable response description"`
}

type infoResponse struct {
	response
	Usage       string `json:"usage" description:"How to request a prediction"`
	Version     string `json:"version" description:"Etaserve version"`
	VersionHash string `json:"version_hash"`
	Environment string `json:"environment" description:"Either \"docker\" or \"host\""`
}

func (server *Server) getInfo(*gin.Context) (infoResponse, error) {
	environment := "host"
	if utils.RunningInDocker() {
		environment = "docker"
	}
	return infoResponse{
		response: response{
			Message: "The Etaserve ETA prediction API is running",
		},
		Usage:       "POST a JSON feature payload to /predict",
		Version:     version.Version,
		VersionHash: version.Hash,
		Environment: environment,
	}, nil
}

type loadedModelInfo struct {
	ModelID string `json:"model_id"`
	Version uint   `json:"version"`
}

type healthResponse struct {
	response
	Models map[string]loadedModelInfo `json:"models" description:"Loaded model per prediction mode"`
}

func (server *Server) getHealth(*gin.Context) (*healthResponse, error) {
	if !server.manager.Ready() {
		return nil, wrapError(http.StatusServiceUnavailable, fmt.Errorf("some models are not loaded"))
	}
	models := map[string]loadedModelInfo{}
	for mode, model := range server.manager.Loaded() {
		models[string(mode)] = loadedModelInfo{
			ModelID: model.ModelID,
			Version: model.VersionNumber,
		}
	}
	return &healthResponse{
		response: response{Message: "ready"},
		Models:   models,
	}, nil
}

type predictResponse struct {
	Mode              string  `json:"mode"`
	ModelID           string  `json:"model_id"`
	ModelVersion      uint    `json:"model_version"`
	EtaNormalized     float64 `json:"eta_normalized" description:"ETA in the model's normalized scale"`
	EtaMinutes        float64 `json:"eta_minutes" description:"Predicted ETA in minutes"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// predict is a plain gin handler, the body layout is too loose for tonic:
// feature values come either at the top level or under a "features" key.
func (server *Server) predict(c *gin.Context) {
	payload := map[string]interface{}{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, fmt.Errorf("unable to decode the request body: %w", err))
		return
	}

	mode := predictor.ModePickup
	if rawMode, ok := payload["mode"]; ok {
		modeStr, ok := rawMode.(string)
		if !ok {
			_ = c.AbortWithError(http.StatusBadRequest, fmt.Errorf("\"mode\" must be a string"))
			return
		}
		parsedMode, err := predictor.ParseMode(modeStr)
		if err != nil {
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		mode = parsedMode
		delete(payload, "mode")
	}

	versionNumber := 0
	if rawVersion, ok := payload["model_version"]; ok {
		versionFloat, ok := rawVersion.(float64)
		if !ok {
			_ = c.AbortWithError(http.StatusBadRequest, fmt.Errorf("\"model_version\" must be a number"))
			return
		}
		versionNumber = int(versionFloat)
		delete(payload, "model_version")
	}

	features := payload
	if rawFeatures, ok := payload["features"]; ok {
		wrappedFeatures, ok := rawFeatures.(map[string]interface{})
		if !ok {
			_ = c.AbortWithError(http.StatusBadRequest, fmt.Errorf("\"features\" must be an object"))
			return
		}
		features = wrappedFeatures
	}

	prediction, err := server.manager.Predict(mode, features, versionNumber)
	if err != nil {
		wrapped := wrapDomainError(err).(httpError)
		_ = c.AbortWithError(wrapped.StatusCode, wrapped)
		return
	}

	if server.history != nil {
		_, err := server.history.Append(history.Record{
			Time:           time.Now().UTC(),
			Mode:           string(prediction.Mode),
			ModelID:        prediction.ModelID,
			ModelVersion:   prediction.ModelVersion,
			EtaNormalized:  prediction.EtaNormalized,
			EtaMinutes:     prediction.EtaMinutes,
			LatencySeconds: prediction.Elapsed.Seconds(),
			Features:       features,
		})
		if err != nil {
			log.WithError(err).Warn("unable to record the prediction in the history")
		}
	}

	c.JSON(http.StatusOK, predictResponse{
		Mode:              string(prediction.Mode),
		ModelID:           prediction.ModelID,
		ModelVersion:      prediction.ModelVersion,
		EtaNormalized:     utils.Round(prediction.EtaNormalized, 4),
		EtaMinutes:        utils.Round(prediction.EtaMinutes, 2),
		ProcessingTimeSec: utils.Round(prediction.Elapsed.Seconds(), 3),
	})
}

type versionResponse struct {
	VersionNumber     uint              `json:"version_number"`
	CreationTimestamp time.Time         `json:"creation_timestamp"`
	Archived          bool              `json:"archived"`
	DataHash          string            `json:"data_hash"`
	DataSize          int               `json:"data_size"`
	UserData          map[string]string `json:"user_data,omitempty"`
}

type modelResponse struct {
	ModelID       string            `json:"model_id"`
	UserData      map[string]string `json:"user_data,omitempty"`
	LatestVersion *versionResponse  `json:"latest_version,omitempty"`
}

func makeVersionResponse(versionInfo backend.VersionInfo) versionResponse {
	return versionResponse{
		VersionNumber:     versionInfo.VersionNumber,
		CreationTimestamp: versionInfo.CreationTimestamp,
		Archived:          versionInfo.Archived,
		DataHash:          versionInfo.DataHash,
		DataSize:          versionInfo.DataSize,
		UserData:          versionInfo.UserData,
	}
}

type listModelsRequest struct {
	Offset int `query:"offset" description:"Index of the first model to return"`
	Limit  int `query:"limit" description:"Maximum number of models to return, unlimited when 0"`
}

func (server *Server) listModels(_ *gin.Context, request *listModelsRequest) ([]modelResponse, error) {
	modelInfos, err := server.registry.ListModels(request.Offset, request.Limit)
	if err != nil {
		return nil, wrapDomainError(err)
	}

	models := []modelResponse{}
	for _, modelInfo := range modelInfos {
		model := modelResponse{
			ModelID:  modelInfo.ModelID,
			UserData: modelInfo.UserData,
		}
		versionInfo, err := server.registry.RetrieveModelLastVersionInfo(modelInfo.ModelID)
		if err != nil {
			return nil, wrapDomainError(err)
		}
		if versionInfo.VersionNumber > 0 {
			latestVersion := makeVersionResponse(versionInfo)
			model.LatestVersion = &latestVersion
		}
		models = append(models, model)
	}
	return models, nil
}

type getModelRequest struct {
	ModelID string `path:"model_id" description:"The model identifier"`
}

type getModelResponse struct {
	modelResponse
	Versions []versionResponse `json:"versions"`
}

func (server *Server) getModel(_ *gin.Context, request *getModelRequest) (*getModelResponse, error) {
	modelInfo, err := server.registry.RetrieveModelInfo(request.ModelID)
	if err != nil {
		return nil, wrapDomainError(err)
	}

	versionInfos, err := server.registry.ListModelVersionInfos(request.ModelID, 0, -1)
	if err != nil {
		return nil, wrapDomainError(err)
	}

	model := getModelResponse{
		modelResponse: modelResponse{
			ModelID:  modelInfo.ModelID,
			UserData: modelInfo.UserData,
		},
		Versions: []versionResponse{},
	}
	for _, versionInfo := range versionInfos {
		model.Versions = append(model.Versions, makeVersionResponse(versionInfo))
	}
	if len(model.Versions) > 0 {
		latestVersion := model.Versions[len(model.Versions)-1]
		model.LatestVersion = &latestVersion
	}
	return &model, nil
}

func (server *Server) checkPublishToken(tokenString string) error {
	if server.publishSecret == "" {
		return wrapError(
			http.StatusForbidden,
			fmt.Errorf("model publication is disabled, no publish secret is configured"),
		)
	}
	claims, err := ParseAndVerifyToken(tokenString, server.publishSecret)
	if err != nil {
		return wrapError(
			http.StatusUnauthorized,
			fmt.Errorf("unable to validate the token from header [%s] (%w)", publishTokenHeaderKey, err),
		)
	}
	if claims.Role != PublisherRole {
		return wrapError(
			http.StatusUnauthorized,
			fmt.Errorf("provided token doesn't carry the %q role", PublisherRole),
		)
	}
	return nil
}

type publishModelVersionRequest struct {
	ModelID string `path:"model_id" description:"The model identifier"`
	Token   string `header:"Etaserve-Publish-Token" description:"Publish token, minted by \"etaserve models token\""`
	predictor.Artifact
}

type publishModelVersionResponse struct {
	response
	ModelID string          `json:"model_id"`
	Version versionResponse `json:"version"`
}

func (server *Server) publishModelVersion(
	_ *gin.Context,
	request *publishModelVersionRequest,
) (*publishModelVersionResponse, error) {
	if err := server.checkPublishToken(request.Token); err != nil {
		return nil, err
	}

	if err := request.Artifact.Validate(); err != nil {
		return nil, wrapError(http.StatusBadRequest, err)
	}

	data, err := request.Artifact.Encode()
	if err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}

	if _, err := server.registry.CreateOrUpdateModel(backend.ModelInfo{ModelID: request.ModelID}); err != nil {
		return nil, wrapDomainError(err)
	}

	versionInfo, err := server.registry.CreateOrUpdateModelVersion(request.ModelID, backend.VersionArgs{
		CreationTimestamp: time.Now().UTC(),
		Archived:          true,
		DataHash:          backend.ComputeSHA256Hash(data),
		Data:              data,
	})
	if err != nil {
		return nil, wrapDomainError(err)
	}

	log.WithFields(logrus.Fields{
		"model_id":      versionInfo.ModelID,
		"model_version": versionInfo.VersionNumber,
	}).Info("model version published")

	if err := server.manager.Load(); err != nil {
		// Keep the previous models serving, drop the version that broke
		// the reload.
		if deleteErr := server.registry.DeleteModelVersion(request.ModelID, int(versionInfo.VersionNumber)); deleteErr != nil {
			log.WithError(deleteErr).Warn("unable to drop the rejected model version")
		}
		return nil, wrapError(http.StatusBadRequest, err)
	}

	return &publishModelVersionResponse{
		response: response{
			Message: fmt.Sprintf("Model [%s] version [%d] published", versionInfo.ModelID, versionInfo.VersionNumber),
		},
		ModelID: versionInfo.ModelID,
		Version: makeVersionResponse(versionInfo),
	}, nil
}

type deleteModelVersionRequest struct {
	ModelID string `path:"model_id" description:"The model identifier"`
	Version int    `path:"version" description:"The version number, negative values select from the latest"`
	Token   string `header:"Etaserve-Publish-Token" description:"Publish token, minted by \"etaserve models token\""`
}

func (server *Server) deleteModelVersion(
	_ *gin.Context,
	request *deleteModelVersionRequest,
) (*response, error) {
	if err := server.checkPublishToken(request.Token); err != nil {
		return nil, err
	}

	if err := server.registry.DeleteModelVersion(request.ModelID, request.Version); err != nil {
		return nil, wrapDomainError(err)
	}

	if err := server.manager.Load(); err != nil {
		log.WithError(err).Warn("unable to reload the models, the previous versions keep serving")
	}

	return &response{
		Message: fmt.Sprintf("Model [%s] version [%d] deleted", request.ModelID, request.Version),
	}, nil
}

type listPredictionsRequest struct {
	FromIdx uint64 `query:"from_idx" description:"Index of the first record to return, 0 starts from the oldest"`
	Count   int    `query:"count" description:"Maximum number of records to return, unlimited when 0"`
}

type predictionRecordResponse struct {
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

type listPredictionsResponse struct {
	Records []predictionRecordResponse `json:"records"`
	NextIdx uint64                     `json:"next_idx" description:"Index to resume listing from, 0 when exhausted"`
}

func (server *Server) listPredictions(
	_ *gin.Context,
	request *listPredictionsRequest,
) (*listPredictionsResponse, error) {
	if server.history == nil {
		return nil, wrapError(http.StatusNotFound, fmt.Errorf("the prediction history is disabled"))
	}

	page, err := server.history.List(request.FromIdx, request.Count)
	if err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}

	records := []predictionRecordResponse{}
	if err := copier.Copy(&records, page.Records); err != nil {
		return nil, wrapError(http.StatusInternalServerError, err)
	}

	return &listPredictionsResponse{
		Records: records,
		NextIdx: page.NextIdx,
	}, nil
}
