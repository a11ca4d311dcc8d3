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

package predictor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/etaserve/etaserve/services/api/registry/backend"
)

var log = logrus.WithField("component", "predictor")

type loadedModel struct {
	modelID       string
	versionNumber uint
	artifact      *Artifact
}

// LoadedModelInfo describes the model currently serving a mode
type LoadedModelInfo struct {
	ModelID       string
	VersionNumber uint
}

// Manager holds one loaded model per mode and serves predictions from them.
//
// Readers never block each other, (re)loading swaps whole model slots behind
// the write lock.
type Manager struct {
	registry backend.Backend
	modelIDs map[Mode]string

	mutex  sync.RWMutex
	models map[Mode]*loadedModel
}

// NewManager creates a manager serving the given model id for each mode
func NewManager(registry backend.Backend, modelIDs map[Mode]string) *Manager {
	return &Manager{
		registry: registry,
		modelIDs: modelIDs,
		models:   map[Mode]*loadedModel{},
	}
}

func (m *Manager) loadModel(modelID string) (*loadedModel, error) {
	versionInfo, err := m.registry.RetrieveModelLastVersionInfo(modelID)
	if err != nil {
		return nil, err
	}
	if versionInfo.VersionNumber == 0 {
		return nil, fmt.Errorf("model %q has no published version", modelID)
	}
	versionData, err := m.registry.RetrieveModelVersionData(modelID, int(versionInfo.VersionNumber))
	if err != nil {
		return nil, err
	}
	artifact, err := DecodeArtifact(versionData)
	if err != nil {
		return nil, fmt.Errorf("unable to load model \"%s@%d\": %w", modelID, versionInfo.VersionNumber, err)
	}
	return &loadedModel{
		modelID:       modelID,
		versionNumber: versionInfo.VersionNumber,
		artifact:      artifact,
	}, nil
}

// Load resolves the latest version of every configured model from the
// registry and atomically swaps the serving models. On error the previously
// loaded models keep serving.
func (m *Manager) Load() error {
	models := map[Mode]*loadedModel{}
	for mode, modelID := range m.modelIDs {
		model, err := m.loadModel(modelID)
		if err != nil {
			return fmt.Errorf("unable to load the %q model: %w", mode, err)
		}
		if model.artifact.Mode != mode {
			return fmt.Errorf(
				"model \"%s@%d\" is a %q model, expected %q",
				model.modelID, model.versionNumber, model.artifact.Mode, mode,
			)
		}
		models[mode] = model
	}

	m.mutex.Lock()
	previous := m.models
	m.models = models
	m.mutex.Unlock()

	for mode, model := range models {
		previousModel := previous[mode]
		if previousModel == nil || previousModel.versionNumber != model.versionNumber {
			log.WithFields(logrus.Fields{
				"mode":          mode,
				"model_id":      model.modelID,
				"model_version": model.versionNumber,
			}).Info("model loaded")
		}
	}
	return nil
}

// Loaded returns the models currently serving, keyed by mode. Modes with no
// loaded model are absent from the result.
func (m *Manager) Loaded() map[Mode]LoadedModelInfo {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	loaded := map[Mode]LoadedModelInfo{}
	for mode, model := range m.models {
		loaded[mode] = LoadedModelInfo{
			ModelID:       model.modelID,
			VersionNumber: model.versionNumber,
		}
	}
	return loaded
}

// Ready tells whether every configured mode serves a loaded model
func (m *Manager) Ready() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for mode := range m.modelIDs {
		if _, ok := m.models[mode]; !ok {
			return false
		}
	}
	return true
}

// Prediction is the result of one served prediction
type Prediction struct {
	Mode          Mode
	ModelID       string
	ModelVersion  uint
	EtaNormalized float64
	EtaMinutes    float64
	Elapsed       time.Duration
}

func (m *Manager) resolveModel(mode Mode, versionNumber int) (*loadedModel, error) {
	if versionNumber == 0 {
		m.mutex.RLock()
		model, ok := m.models[mode]
		m.mutex.RUnlock()
		if !ok {
			return nil, &ModelNotLoadedError{Mode: mode}
		}
		return model, nil
	}

	// Pinned version requests bypass the loaded slot and read through the
	// registry's version cache.
	modelID, ok := m.modelIDs[mode]
	if !ok {
		return nil, &ModelNotLoadedError{Mode: mode}
	}
	versionInfo, err := m.registry.RetrieveModelVersionInfo(modelID, versionNumber)
	if err != nil {
		return nil, err
	}
	versionData, err := m.registry.RetrieveModelVersionData(modelID, int(versionInfo.VersionNumber))
	if err != nil {
		return nil, err
	}
	artifact, err := DecodeArtifact(versionData)
	if err != nil {
		return nil, fmt.Errorf("unable to load model \"%s@%d\": %w", modelID, versionInfo.VersionNumber, err)
	}
	return &loadedModel{
		modelID:       modelID,
		versionNumber: versionInfo.VersionNumber,
		artifact:      artifact,
	}, nil
}

// Predict serves one prediction for the given mode from the raw feature
// payload. A versionNumber of 0 uses the currently loaded model, any other
// value pins a specific model version.
func (m *Manager) Predict(mode Mode, payload map[string]interface{}, versionNumber int) (Prediction, error) {
	start := time.Now()

	model, err := m.resolveModel(mode, versionNumber)
	if err != nil {
		return Prediction{}, err
	}

	etaNormalized, etaMinutes := model.artifact.Predict(payload)
	elapsed := time.Since(start)

	log.WithFields(logrus.Fields{
		"mode":          mode,
		"model_id":      model.modelID,
		"model_version": model.versionNumber,
		"eta_minutes":   etaMinutes,
		"latency":       elapsed,
	}).Info("prediction served")

	return Prediction{
		Mode:          mode,
		ModelID:       model.modelID,
		ModelVersion:  model.versionNumber,
		EtaNormalized: etaNormalized,
		EtaMinutes:    etaMinutes,
		Elapsed:       elapsed,
	}, nil
}
