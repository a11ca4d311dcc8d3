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

package memoryCache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etaserve/etaserve/services/api/registry/backend"
	"github.com/etaserve/etaserve/services/api/registry/backend/fileSystem"
	"github.com/etaserve/etaserve/services/api/registry/backend/test"
)

func TestSuiteMemoryCacheBackend(t *testing.T) {
	archives := map[backend.Backend]backend.Backend{}
	test.RunSuite(t, func() backend.Backend {
		rootDir, err := os.MkdirTemp("", "etaserve-registry")
		require.NoError(t, err)
		archive, err := fileSystem.CreateBackend(rootDir)
		require.NoError(t, err)
		b, err := CreateBackend(DefaultVersionCacheConfiguration, archive)
		require.NoError(t, err)
		archives[b] = archive
		return b
	}, func(b backend.Backend) {
		b.Destroy()
		archives[b].Destroy()
		delete(archives, b)
	})
}

func TestCacheServesVersionWithoutArchiveRead(t *testing.T) {
	rootDir := t.TempDir()
	archive, err := fileSystem.CreateBackend(rootDir)
	require.NoError(t, err)
	defer archive.Destroy()

	b, err := CreateBackend(VersionCacheConfiguration{MaxItems: 4}, archive)
	require.NoError(t, err)
	defer b.Destroy()

	_, err = b.CreateOrUpdateModel(backend.ModelInfo{ModelID: "pickup-eta"})
	require.NoError(t, err)

	versionInfo, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
		CreationTimestamp: time.Now(),
		Data:              test.Data1,
		DataHash:          backend.ComputeSHA256Hash(test.Data1),
		Archived:          true,
	})
	require.NoError(t, err)

	// Remove the archived data behind the cache's back, the written version
	// should still be served from memory when pinned explicitly.
	require.NoError(t, os.RemoveAll(rootDir))

	cachedData, err := b.RetrieveModelVersionData("pickup-eta", int(versionInfo.VersionNumber))
	require.NoError(t, err)
	assert.Equal(t, test.Data1, cachedData)

	cachedInfo, err := b.RetrieveModelVersionInfo("pickup-eta", int(versionInfo.VersionNumber))
	require.NoError(t, err)
	assert.Equal(t, versionInfo.DataHash, cachedInfo.DataHash)
}

func TestLatestVersionSeesOutOfBandPush(t *testing.T) {
	rootDir := t.TempDir()
	archive, err := fileSystem.CreateBackend(rootDir)
	require.NoError(t, err)
	defer archive.Destroy()

	b, err := CreateBackend(VersionCacheConfiguration{MaxItems: 4}, archive)
	require.NoError(t, err)
	defer b.Destroy()

	_, err = b.CreateOrUpdateModel(backend.ModelInfo{ModelID: "pickup-eta"})
	require.NoError(t, err)
	_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
		CreationTimestamp: time.Now(),
		Data:              test.Data1,
		DataHash:          backend.ComputeSHA256Hash(test.Data1),
		Archived:          true,
	})
	require.NoError(t, err)

	// Prime the latest-version bookkeeping
	versionInfo, err := b.RetrieveModelLastVersionInfo("pickup-eta")
	require.NoError(t, err)
	require.Equal(t, uint(1), versionInfo.VersionNumber)

	// Push a second version through another backend on the same directory,
	// eg. `etaserve models push` while the service runs
	outOfBand, err := fileSystem.CreateBackend(rootDir)
	require.NoError(t, err)
	defer outOfBand.Destroy()
	_, err = outOfBand.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
		CreationTimestamp: time.Now(),
		Data:              test.Data2,
		DataHash:          backend.ComputeSHA256Hash(test.Data2),
		Archived:          true,
	})
	require.NoError(t, err)

	versionInfo, err = b.RetrieveModelLastVersionInfo("pickup-eta")
	require.NoError(t, err)
	assert.Equal(t, uint(2), versionInfo.VersionNumber)

	latestData, err := b.RetrieveModelVersionData("pickup-eta", -1)
	require.NoError(t, err)
	assert.Equal(t, test.Data2, latestData)
}

func TestCacheEviction(t *testing.T) {
	rootDir := t.TempDir()
	archive, err := fileSystem.CreateBackend(rootDir)
	require.NoError(t, err)
	defer archive.Destroy()

	b, err := CreateBackend(VersionCacheConfiguration{MaxItems: 2}, archive)
	require.NoError(t, err)
	defer b.Destroy()

	_, err = b.CreateOrUpdateModel(backend.ModelInfo{ModelID: "pickup-eta"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
			CreationTimestamp: time.Now(),
			Data:              test.Data1,
			DataHash:          backend.ComputeSHA256Hash(test.Data1),
			Archived:          true,
		})
		require.NoError(t, err)
	}

	// Evicted versions fall back to the archive
	versionData, err := b.RetrieveModelVersionData("pickup-eta", 1)
	require.NoError(t, err)
	assert.Equal(t, test.Data1, versionData)
}
