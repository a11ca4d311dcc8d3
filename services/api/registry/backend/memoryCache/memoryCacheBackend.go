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

// Package memoryCache implements a model registry backend holding the most
// recently used model versions in memory in front of an archive backend.
//
// All writes go through to the archive, the cache only spares reads of
// version info and data.
package memoryCache

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/etaserve/etaserve/services/api/registry/backend"
	"github.com/etaserve/etaserve/utils"
)

type VersionCacheConfiguration struct {
	MaxItems int
}

var DefaultVersionCacheConfiguration = VersionCacheConfiguration{
	MaxItems: 32,
}

type cachedVersion struct {
	info backend.VersionInfo
	data []byte
}

type memoryCacheBackend struct {
	archive backend.Backend

	latestVersionNumbersMutex sync.RWMutex
	latestVersionNumbers      map[string]uint

	versionCache *lru.Cache
}

func versionCacheKey(modelID string, versionNumber uint) string {
	return fmt.Sprintf("%s@%d", modelID, versionNumber)
}

// CreateBackend creates a new backend caching the given archive backend
func CreateBackend(
	versionCacheConfiguration VersionCacheConfiguration,
	archive backend.Backend,
) (backend.Backend, error) {
	versionCache, err := lru.New(versionCacheConfiguration.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("unable to create the version cache: %w", err)
	}
	b := memoryCacheBackend{
		archive:              archive,
		latestVersionNumbers: make(map[string]uint),
		versionCache:         versionCache,
	}
	return &b, nil
}

func (b *memoryCacheBackend) Destroy() {
	b.versionCache.Purge()

	b.latestVersionNumbersMutex.Lock()
	defer b.latestVersionNumbersMutex.Unlock()
	b.latestVersionNumbers = make(map[string]uint)
}

func (b *memoryCacheBackend) retrieveLatestVersionNumber(modelID string) (uint, bool) {
	b.latestVersionNumbersMutex.RLock()
	defer b.latestVersionNumbersMutex.RUnlock()
	latestVersionNumber, ok := b.latestVersionNumbers[modelID]
	return latestVersionNumber, ok
}

func (b *memoryCacheBackend) updateLatestVersionNumber(modelID string, versionNumber uint) {
	b.latestVersionNumbersMutex.Lock()
	defer b.latestVersionNumbersMutex.Unlock()
	if latestVersionNumber, ok := b.latestVersionNumbers[modelID]; !ok || versionNumber > latestVersionNumber {
		b.latestVersionNumbers[modelID] = versionNumber
	}
}

func (b *memoryCacheBackend) forgetLatestVersionNumber(modelID string) {
	b.latestVersionNumbersMutex.Lock()
	defer b.latestVersionNumbersMutex.Unlock()
	delete(b.latestVersionNumbers, modelID)
}

func (b *memoryCacheBackend) evictModelVersions(modelID string) {
	prefix := fmt.Sprintf("%s@", modelID)
	for _, key := range b.versionCache.Keys() {
		if strings.HasPrefix(key.(string), prefix) {
			b.versionCache.Remove(key)
		}
	}
}

func (b *memoryCacheBackend) CreateOrUpdateModel(modelArgs backend.ModelInfo) (backend.ModelInfo, error) {
	return b.archive.CreateOrUpdateModel(backend.ModelInfo{
		ModelID:  modelArgs.ModelID,
		UserData: utils.CopyStrMap(modelArgs.UserData),
	})
}

func (b *memoryCacheBackend) HasModel(modelID string) (bool, error) {
	if _, ok := b.retrieveLatestVersionNumber(modelID); ok {
		return true, nil
	}
	return b.archive.HasModel(modelID)
}

func (b *memoryCacheBackend) RetrieveModelInfo(modelID string) (backend.ModelInfo, error) {
	return b.archive.RetrieveModelInfo(modelID)
}

func (b *memoryCacheBackend) DeleteModel(modelID string) error {
	err := b.archive.DeleteModel(modelID)
	if err != nil {
		return err
	}
	b.forgetLatestVersionNumber(modelID)
	b.evictModelVersions(modelID)
	return nil
}

func (b *memoryCacheBackend) ListModels(offset int, limit int) ([]backend.ModelInfo, error) {
	return b.archive.ListModels(offset, limit)
}

func (b *memoryCacheBackend) CreateOrUpdateModelVersion(
	modelID string,
	versionArgs backend.VersionArgs,
) (backend.VersionInfo, error) {
	versionInfo, err := b.archive.CreateOrUpdateModelVersion(modelID, versionArgs)
	if err != nil {
		return backend.VersionInfo{}, err
	}
	b.versionCache.Add(versionCacheKey(modelID, versionInfo.VersionNumber), cachedVersion{
		info: versionInfo,
		data: versionArgs.Data,
	})
	b.updateLatestVersionNumber(modelID, versionInfo.VersionNumber)
	return versionInfo, nil
}

func (b *memoryCacheBackend) retrieveCachedVersion(modelID string, versionNumber int) (cachedVersion, bool) {
	if versionNumber <= 0 {
		// Latest and nth-to-last selectors always resolve through the
		// archive, the latest version can change out-of-band, eg. a push to
		// the registry directory from another process.
		return cachedVersion{}, false
	}
	cached, ok := b.versionCache.Get(versionCacheKey(modelID, uint(versionNumber)))
	if !ok {
		return cachedVersion{}, false
	}
	return cached.(cachedVersion), true
}

func (b *memoryCacheBackend) cacheVersionFromArchive(modelID string, versionNumber int) (cachedVersion, error) {
	versionInfo, err := b.archive.RetrieveModelVersionInfo(modelID, versionNumber)
	if err != nil {
		return cachedVersion{}, err
	}
	versionData, err := b.archive.RetrieveModelVersionData(modelID, int(versionInfo.VersionNumber))
	if err != nil {
		return cachedVersion{}, err
	}
	version := cachedVersion{
		info: versionInfo,
		data: versionData,
	}
	b.versionCache.Add(versionCacheKey(modelID, versionInfo.VersionNumber), version)
	if versionNumber < 0 {
		// An nth-to-last version fetched from the archive is at least as
		// recent as what the latest-version map knows about.
		b.updateLatestVersionNumber(modelID, versionInfo.VersionNumber)
	}
	return version, nil
}

func (b *memoryCacheBackend) RetrieveModelLastVersionInfo(modelID string) (backend.VersionInfo, error) {
	versionInfo, err := b.archive.RetrieveModelLastVersionInfo(modelID)
	if err != nil {
		return backend.VersionInfo{}, err
	}
	if versionInfo.VersionNumber > 0 {
		b.updateLatestVersionNumber(modelID, versionInfo.VersionNumber)
	}
	return versionInfo, nil
}

func (b *memoryCacheBackend) RetrieveModelVersionInfo(modelID string, versionNumber int) (backend.VersionInfo, error) {
	if version, ok := b.retrieveCachedVersion(modelID, versionNumber); ok {
		return version.info, nil
	}
	version, err := b.cacheVersionFromArchive(modelID, versionNumber)
	if err != nil {
		return backend.VersionInfo{}, err
	}
	return version.info, nil
}

func (b *memoryCacheBackend) RetrieveModelVersionData(modelID string, versionNumber int) ([]byte, error) {
	if version, ok := b.retrieveCachedVersion(modelID, versionNumber); ok {
		return version.data, nil
	}
	version, err := b.cacheVersionFromArchive(modelID, versionNumber)
	if err != nil {
		return []byte{}, err
	}
	return version.data, nil
}

func (b *memoryCacheBackend) DeleteModelVersion(modelID string, versionNumber int) error {
	resolvedVersionInfo, err := b.archive.RetrieveModelVersionInfo(modelID, versionNumber)
	if err != nil {
		return err
	}
	err = b.archive.DeleteModelVersion(modelID, int(resolvedVersionInfo.VersionNumber))
	if err != nil {
		return err
	}
	b.versionCache.Remove(versionCacheKey(modelID, resolvedVersionInfo.VersionNumber))
	if latestVersionNumber, ok := b.retrieveLatestVersionNumber(modelID); ok && latestVersionNumber == resolvedVersionInfo.VersionNumber {
		b.forgetLatestVersionNumber(modelID)
	}
	return nil
}

func (b *memoryCacheBackend) ListModelVersionInfos(
	modelID string,
	initialVersionNumber uint,
	limit int,
) ([]backend.VersionInfo, error) {
	return b.archive.ListModelVersionInfos(modelID, initialVersionNumber, limit)
}
