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

package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ModelInfo represents the stored informations for a model
type ModelInfo struct {
	ModelID  string
	UserData map[string]string
}

// VersionInfo represents the stored informations for a particular version of a model
type VersionInfo struct {
	ModelID           string
	VersionNumber     uint
	CreationTimestamp time.Time
	Archived          bool
	DataHash          string
	DataSize          int
	UserData          map[string]string
}

// VersionArgs represents the arguments to create or update a model version
//
// A VersionNumber of 0 means a new version should be created after the
// current latest one.
type VersionArgs struct {
	VersionNumber     uint
	CreationTimestamp time.Time
	Archived          bool
	DataHash          string
	Data              []byte
	UserData          map[string]string
}

// Backend defines the interface for a model registry backend
//
// Version numbers are interpreted the same way by every operation taking an
// `int` version: n>0 designates version n, n<0 designates the nth to last
// version (-1 being the latest), 0 is invalid.
type Backend interface {
	Destroy()

	CreateOrUpdateModel(modelArgs ModelInfo) (ModelInfo, error)
	HasModel(modelID string) (bool, error)
	RetrieveModelInfo(modelID string) (ModelInfo, error)
	DeleteModel(modelID string) error
	ListModels(offset int, limit int) ([]ModelInfo, error)

	CreateOrUpdateModelVersion(modelID string, versionArgs VersionArgs) (VersionInfo, error)
	RetrieveModelLastVersionInfo(modelID string) (VersionInfo, error)
	RetrieveModelVersionInfo(modelID string, versionNumber int) (VersionInfo, error)
	RetrieveModelVersionData(modelID string, versionNumber int) ([]byte, error)
	DeleteModelVersion(modelID string, versionNumber int) error
	ListModelVersionInfos(modelID string, initialVersionNumber uint, limit int) ([]VersionInfo, error)
}

// UnknownModelError is raised when trying to operate on an unknown model
type UnknownModelError struct {
	ModelID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no model %q found", e.ModelID)
}

// UnknownModelVersionError is raised when trying to operate on an unknown model version
type UnknownModelVersionError struct {
	ModelID       string
	VersionNumber int
}

func (e *UnknownModelVersionError) Error() string {
	if e.VersionNumber < 0 {
		// nth-to-last selector, e.g. "n-1" is the latest version
		return fmt.Sprintf("no version \"n%d\" for model %q found", e.VersionNumber, e.ModelID)
	}
	return fmt.Sprintf("no version \"%d\" for model %q found", e.VersionNumber, e.ModelID)
}

// ComputeSHA256Hash computes the hexadecimal sha256 hash of the given data
func ComputeSHA256Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
