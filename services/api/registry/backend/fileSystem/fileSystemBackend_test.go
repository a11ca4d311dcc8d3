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

package fileSystem

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etaserve/etaserve/services/api/registry/backend"
	"github.com/etaserve/etaserve/services/api/registry/backend/test"
)

func TestSuiteFileSystemBackend(t *testing.T) {
	test.RunSuite(t, func() backend.Backend {
		rootDir, err := os.MkdirTemp("", "etaserve-registry")
		require.NoError(t, err)
		b, err := CreateBackend(rootDir)
		require.NoError(t, err)
		return b
	}, func(b backend.Backend) {
		b.Destroy()
	})
}

func TestCreateBackendMissingDir(t *testing.T) {
	_, err := CreateBackend(path.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestCreateBackendNotADir(t *testing.T) {
	filename := path.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(filename, []byte("content"), 0640))
	_, err := CreateBackend(filename)
	assert.Error(t, err)
}

func TestFileLayout(t *testing.T) {
	rootDir := t.TempDir()
	b, err := CreateBackend(rootDir)
	require.NoError(t, err)
	defer b.Destroy()

	_, err = b.CreateOrUpdateModel(backend.ModelInfo{
		ModelID:  "pickup-eta",
		UserData: map[string]string{"team": "last-mile"},
	})
	require.NoError(t, err)

	versionInfo, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
		CreationTimestamp: time.Now(),
		Data:              test.Data1,
		DataHash:          backend.ComputeSHA256Hash(test.Data1),
		Archived:          true,
		UserData:          map[string]string{"mode": "pickup"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), versionInfo.VersionNumber)

	// One directory per model, yaml sidecars next to the json data
	assert.FileExists(t, path.Join(rootDir, "pickup-eta", "pickup-eta.yaml"))
	assert.FileExists(t, path.Join(rootDir, "pickup-eta", "pickup-eta-v000001.yaml"))
	assert.FileExists(t, path.Join(rootDir, "pickup-eta", "pickup-eta-v000001.json"))

	storedData, err := os.ReadFile(path.Join(rootDir, "pickup-eta", "pickup-eta-v000001.json"))
	require.NoError(t, err)
	assert.Equal(t, test.Data1, storedData)
}

func TestVersionInfoRoundTrip(t *testing.T) {
	rootDir := t.TempDir()
	b, err := CreateBackend(rootDir)
	require.NoError(t, err)
	defer b.Destroy()

	_, err = b.CreateOrUpdateModel(backend.ModelInfo{ModelID: "delivery-eta"})
	require.NoError(t, err)

	creationTimestamp := time.Date(2026, 5, 17, 10, 30, 0, 0, time.UTC)
	created, err := b.CreateOrUpdateModelVersion("delivery-eta", backend.VersionArgs{
		CreationTimestamp: creationTimestamp,
		Data:              test.Data2,
		DataHash:          backend.ComputeSHA256Hash(test.Data2),
		Archived:          true,
		UserData:          map[string]string{"mode": "delivery"},
	})
	require.NoError(t, err)

	loaded, err := b.RetrieveModelVersionInfo("delivery-eta", 1)
	require.NoError(t, err)
	assert.Equal(t, created.ModelID, loaded.ModelID)
	assert.Equal(t, created.VersionNumber, loaded.VersionNumber)
	assert.True(t, creationTimestamp.Equal(loaded.CreationTimestamp))
	assert.Equal(t, created.DataHash, loaded.DataHash)
	assert.Equal(t, created.DataSize, loaded.DataSize)
	assert.True(t, loaded.Archived)
	assert.Equal(t, map[string]string{"mode": "delivery"}, loaded.UserData)
}
