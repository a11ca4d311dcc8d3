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

// Package test holds the conformance test suite shared by every model
// registry backend implementation.
package test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/etaserve/etaserve/services/api/registry/backend"
)

// Data1 is example model version data
var Data1 = []byte(`{"format":"etaserve/tree-ensemble","format_version":1,"mode":"pickup",` +
	`"target":{"name":"eta_minutes","min":0,"max":180},` +
	`"features":[{"name":"pickup_distance_km","kind":"numeric","min":0,"max":30}],` +
	`"base_score":0.5,"trees":[{"nodes":[{"leaf":true,"value":0.1}]}]}`)

// Data2 is example model version data
var Data2 = []byte(`{"format":"etaserve/tree-ensemble","format_version":1,"mode":"delivery",` +
	`"target":{"name":"eta_minutes","min":5,"max":240},` +
	`"features":[{"name":"delivery_distance_km","kind":"numeric","min":0,"max":45},` +
	`{"name":"city","kind":"categorical","levels":["Chongqing","Shanghai"]}],` +
	`"base_score":0.25,"trees":[{"nodes":[{"leaf":true,"value":-0.05}]}]}`)

// RunSuite runs the full backend test suite
func RunSuite(t *testing.T, createBackend func() backend.Backend, destroyBackend func(backend.Backend)) {
	versionUserData := map[string]string{
		"mode":       "pickup",
		"trained_by": "nightly-job",
	}

	modelUserData := map[string]string{
		"team": "last-mile",
		"city": "Chongqing",
	}

	cases := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "TestCreateAndDestroyBackend",
			test: func(t *testing.T) {
				b := createBackend()
				assert.NotNil(t, b)
				destroyBackend(b)
			},
		},
		{
			name: "TestCreateModel",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				modelInfo, err := b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "pickup-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)
				assert.Equal(t, "pickup-eta", modelInfo.ModelID)
				assert.Equal(t, modelUserData, modelInfo.UserData)

				// Creating another one should succeed
				_, err = b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "delivery-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)
			},
		},
		{
			name: "TestHasModel",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				for _, modelID := range []string{"pickup-eta", "delivery-eta", "experimental-eta"} {
					_, err := b.CreateOrUpdateModel(backend.ModelInfo{
						ModelID:  modelID,
						UserData: modelUserData,
					})
					assert.NoError(t, err)
				}

				found, err := b.HasModel("delivery-eta")
				assert.NoError(t, err)
				assert.True(t, found)

				found, err = b.HasModel("untrained-eta")
				assert.NoError(t, err)
				assert.False(t, found)
			},
		},
		{
			name: "TestDeleteModel",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				{
					_, err := b.CreateOrUpdateModel(backend.ModelInfo{
						ModelID:  "pickup-eta",
						UserData: modelUserData,
					})
					assert.NoError(t, err)
				}
				{
					err := b.DeleteModel("delivery-eta")
					concreteErr := &backend.UnknownModelError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, "delivery-eta", concreteErr.ModelID)
					assert.EqualError(t, err, `no model "delivery-eta" found`)
				}
				{
					found, err := b.HasModel("pickup-eta")
					assert.NoError(t, err)
					assert.True(t, found)
				}
				{
					err := b.DeleteModel("pickup-eta")
					assert.NoError(t, err)
				}
				{
					err := b.DeleteModel("pickup-eta")
					concreteErr := &backend.UnknownModelError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, "pickup-eta", concreteErr.ModelID)
					assert.EqualError(t, err, `no model "pickup-eta" found`)
				}
				{
					found, err := b.HasModel("pickup-eta")
					assert.NoError(t, err)
					assert.False(t, found)
				}
				{
					_, err := b.CreateOrUpdateModel(backend.ModelInfo{
						ModelID:  "pickup-eta",
						UserData: modelUserData,
					})
					assert.NoError(t, err)
				}
			},
		},
		{
			name: "TestListModels",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				models, err := b.ListModels(0, 0)
				assert.NoError(t, err)
				assert.Len(t, models, 0)

				_, err = b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "pickup-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					VersionNumber:     0,
					CreationTimestamp: time.Now(),
					Data:              Data1,
					DataHash:          backend.ComputeSHA256Hash(Data1),
					Archived:          false,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)

				_, err = b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "delivery-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				for i := 0; i < 15; i++ {
					_, err = b.CreateOrUpdateModelVersion("delivery-eta", backend.VersionArgs{
						CreationTimestamp: time.Now(),
						Data:              Data2,
						DataHash:          backend.ComputeSHA256Hash(Data2),
						Archived:          true,
						UserData:          versionUserData,
					})
					assert.NoError(t, err)
				}

				_, err = b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "experimental-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				models, err = b.ListModels(0, 0)
				assert.NoError(t, err)
				assert.Len(t, models, 3)

				// Ordered by id
				assert.Equal(t, "delivery-eta", models[0].ModelID)
				assert.Equal(t, modelUserData, models[0].UserData)
				assert.Equal(t, "experimental-eta", models[1].ModelID)
				assert.Equal(t, modelUserData, models[1].UserData)
				assert.Equal(t, "pickup-eta", models[2].ModelID)
				assert.Equal(t, modelUserData, models[2].UserData)

				models, err = b.ListModels(1, 1)
				assert.NoError(t, err)
				assert.Len(t, models, 1)
				assert.Equal(t, "experimental-eta", models[0].ModelID)

				err = b.DeleteModel("delivery-eta")
				assert.NoError(t, err)

				models, err = b.ListModels(0, 0)
				assert.NoError(t, err)
				assert.Len(t, models, 2)

				assert.Equal(t, "experimental-eta", models[0].ModelID)
				assert.Equal(t, "pickup-eta", models[1].ModelID)
			},
		},
		{
			name: "TestCreateModelVersion",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				_, err := b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "pickup-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				modelVersion1, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					CreationTimestamp: time.Now(),
					Data:              Data1,
					DataHash:          backend.ComputeSHA256Hash(Data1),
					Archived:          true,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)
				assert.Equal(t, 1, int(modelVersion1.VersionNumber))
				assert.Equal(t, "pickup-eta", modelVersion1.ModelID)

				modelVersion2, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					CreationTimestamp: time.Now(),
					Data:              Data1,
					DataHash:          backend.ComputeSHA256Hash(Data1),
					Archived:          true,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)
				assert.Equal(t, 2, int(modelVersion2.VersionNumber))

				for i := 0; i < 20; i++ {
					modelVersionI, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
						CreationTimestamp: time.Now(),
						Data:              Data2,
						DataHash:          backend.ComputeSHA256Hash(Data2),
						Archived:          false,
						UserData:          versionUserData,
					})
					assert.NoError(t, err)
					assert.Equal(t, 2+i+1, int(modelVersionI.VersionNumber))
					assert.Equal(t, backend.ComputeSHA256Hash(Data2), modelVersionI.DataHash)
					assert.Equal(t, len(Data2), modelVersionI.DataSize)
				}

				modelVersion23, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					CreationTimestamp: time.Now(),
					Data:              Data1,
					DataHash:          backend.ComputeSHA256Hash(Data1),
					Archived:          true,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)
				assert.Equal(t, 23, int(modelVersion23.VersionNumber))

				// Explicit version number updates in place
				modelVersion10, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					VersionNumber:     10,
					CreationTimestamp: time.Now(),
					Data:              Data1,
					DataHash:          backend.ComputeSHA256Hash(Data1),
					Archived:          true,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)
				assert.Equal(t, 10, int(modelVersion10.VersionNumber))
				assert.Equal(t, backend.ComputeSHA256Hash(Data1), modelVersion10.DataHash)
				assert.Equal(t, len(Data1), modelVersion10.DataSize)

				latestVersionInfo, err := b.RetrieveModelLastVersionInfo("pickup-eta")
				assert.NoError(t, err)
				assert.Equal(t, 23, int(latestVersionInfo.VersionNumber))
			},
		},
		{
			name: "TestRetrieveModelVersion",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				_, err := b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "pickup-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					CreationTimestamp: time.Now(),
					Data:              Data1,
					DataHash:          backend.ComputeSHA256Hash(Data1),
					Archived:          false,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)

				_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					CreationTimestamp: time.Now(),
					Data:              Data2,
					DataHash:          backend.ComputeSHA256Hash(Data2),
					Archived:          true,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)

				modelVersion1, err := b.RetrieveModelVersionInfo("pickup-eta", 1)
				assert.NoError(t, err)
				assert.Equal(t, "pickup-eta", modelVersion1.ModelID)
				assert.Equal(t, 1, int(modelVersion1.VersionNumber))
				assert.False(t, modelVersion1.Archived)
				assert.Equal(t, backend.ComputeSHA256Hash(Data1), modelVersion1.DataHash)
				assert.Equal(t, len(Data1), modelVersion1.DataSize)

				modelVersion1Data, err := b.RetrieveModelVersionData("pickup-eta", 1)
				assert.NoError(t, err)
				assert.Equal(t, Data1, modelVersion1Data)

				modelVersion2, err := b.RetrieveModelVersionInfo("pickup-eta", 2)
				assert.NoError(t, err)
				assert.Equal(t, 2, int(modelVersion2.VersionNumber))
				assert.True(t, modelVersion2.Archived)

				modelVersion2Data, err := b.RetrieveModelVersionData("pickup-eta", 2)
				assert.NoError(t, err)
				assert.Equal(t, Data2, modelVersion2Data)

				_, err = b.RetrieveModelVersionInfo("pickup-eta", 3)
				{
					concreteErr := &backend.UnknownModelVersionError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, "pickup-eta", concreteErr.ModelID)
					assert.Equal(t, 3, concreteErr.VersionNumber)
				}
				assert.EqualError(t, err, `no version "3" for model "pickup-eta" found`)

				err = b.DeleteModel("pickup-eta")
				assert.NoError(t, err)

				_, err = b.RetrieveModelVersionInfo("pickup-eta", 1)
				{
					concreteErr := &backend.UnknownModelVersionError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, "pickup-eta", concreteErr.ModelID)
					assert.Equal(t, 1, concreteErr.VersionNumber)
				}

				_, err = b.RetrieveModelVersionData("pickup-eta", 2)
				{
					concreteErr := &backend.UnknownModelVersionError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, "pickup-eta", concreteErr.ModelID)
					assert.Equal(t, 2, concreteErr.VersionNumber)
				}
			},
		},
		{
			name: "TestRetrieveModelVersionLatest",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				_, err := b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "pickup-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				_, err = b.RetrieveModelVersionInfo("pickup-eta", -1)
				{
					concreteErr := &backend.UnknownModelVersionError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, "pickup-eta", concreteErr.ModelID)
				}
				assert.EqualError(t, err, `no version "n-1" for model "pickup-eta" found`)

				_, err = b.RetrieveModelVersionData("pickup-eta", -1)
				assert.EqualError(t, err, `no version "n-1" for model "pickup-eta" found`)

				_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					CreationTimestamp: time.Now(),
					Data:              Data1,
					DataHash:          backend.ComputeSHA256Hash(Data1),
					Archived:          true,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)

				modelVersion1, err := b.RetrieveModelVersionInfo("pickup-eta", -1)
				assert.NoError(t, err)
				assert.Equal(t, 1, int(modelVersion1.VersionNumber))
				assert.True(t, modelVersion1.Archived)

				_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
					CreationTimestamp: time.Now(),
					Data:              Data2,
					DataHash:          backend.ComputeSHA256Hash(Data2),
					Archived:          false,
					UserData:          versionUserData,
				})
				assert.NoError(t, err)

				modelVersion2, err := b.RetrieveModelVersionInfo("pickup-eta", -1)
				assert.NoError(t, err)
				assert.Equal(t, 2, int(modelVersion2.VersionNumber))

				modelVersion2Data, err := b.RetrieveModelVersionData("pickup-eta", -1)
				assert.NoError(t, err)
				assert.Equal(t, Data2, modelVersion2Data)

				// Second to last
				modelVersion1Again, err := b.RetrieveModelVersionInfo("pickup-eta", -2)
				assert.NoError(t, err)
				assert.Equal(t, 1, int(modelVersion1Again.VersionNumber))
			},
		},
		{
			name: "TestDeleteModelVersion",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				_, err := b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "pickup-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				for i := 0; i < 3; i++ {
					_, err = b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
						CreationTimestamp: time.Now(),
						Data:              Data1,
						DataHash:          backend.ComputeSHA256Hash(Data1),
						Archived:          true,
						UserData:          versionUserData,
					})
					assert.NoError(t, err)
				}

				err = b.DeleteModelVersion("pickup-eta", 2)
				assert.NoError(t, err)

				_, err = b.RetrieveModelVersionInfo("pickup-eta", 2)
				{
					concreteErr := &backend.UnknownModelVersionError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, 2, concreteErr.VersionNumber)
				}

				err = b.DeleteModelVersion("pickup-eta", 2)
				{
					concreteErr := &backend.UnknownModelVersionError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, 2, concreteErr.VersionNumber)
				}

				latestVersionInfo, err := b.RetrieveModelLastVersionInfo("pickup-eta")
				assert.NoError(t, err)
				assert.Equal(t, 3, int(latestVersionInfo.VersionNumber))

				err = b.DeleteModelVersion("pickup-eta", -1)
				assert.NoError(t, err)

				latestVersionInfo, err = b.RetrieveModelLastVersionInfo("pickup-eta")
				assert.NoError(t, err)
				assert.Equal(t, 1, int(latestVersionInfo.VersionNumber))
			},
		},
		{
			name: "TestListModelVersionInfos",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				_, err := b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "delivery-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				for i := 0; i < 10; i++ {
					_, err = b.CreateOrUpdateModelVersion("delivery-eta", backend.VersionArgs{
						CreationTimestamp: time.Now(),
						Data:              Data2,
						DataHash:          backend.ComputeSHA256Hash(Data2),
						Archived:          true,
						UserData:          versionUserData,
					})
					assert.NoError(t, err)
				}

				versions, err := b.ListModelVersionInfos("delivery-eta", 0, -1)
				assert.NoError(t, err)
				assert.Len(t, versions, 10)
				for i, versionInfo := range versions {
					assert.Equal(t, i+1, int(versionInfo.VersionNumber))
					assert.Equal(t, "delivery-eta", versionInfo.ModelID)
				}

				versions, err = b.ListModelVersionInfos("delivery-eta", 6, -1)
				assert.NoError(t, err)
				assert.Len(t, versions, 5)
				assert.Equal(t, 6, int(versions[0].VersionNumber))

				versions, err = b.ListModelVersionInfos("delivery-eta", 0, 3)
				assert.NoError(t, err)
				assert.Len(t, versions, 3)

				_, err = b.ListModelVersionInfos("untrained-eta", 0, -1)
				{
					concreteErr := &backend.UnknownModelError{}
					assert.ErrorAs(t, err, &concreteErr)
					assert.Equal(t, "untrained-eta", concreteErr.ModelID)
				}
			},
		},
		{
			name: "TestConcurrentVersionCreation",
			test: func(t *testing.T) {
				b := createBackend()
				defer destroyBackend(b)

				_, err := b.CreateOrUpdateModel(backend.ModelInfo{
					ModelID:  "pickup-eta",
					UserData: modelUserData,
				})
				assert.NoError(t, err)

				workers := 4
				versionsPerWorker := 5
				wg := sync.WaitGroup{}
				for w := 0; w < workers; w++ {
					wg.Add(1)
					go func(worker int) {
						defer wg.Done()
						for i := 0; i < versionsPerWorker; i++ {
							data := []byte(fmt.Sprintf(`{"worker":%d,"iteration":%d}`, worker, i))
							_, err := b.CreateOrUpdateModelVersion("pickup-eta", backend.VersionArgs{
								CreationTimestamp: time.Now(),
								Data:              data,
								DataHash:          backend.ComputeSHA256Hash(data),
								Archived:          true,
								UserData:          versionUserData,
							})
							assert.NoError(t, err)
						}
					}(w)
				}
				wg.Wait()

				latestVersionInfo, err := b.RetrieveModelLastVersionInfo("pickup-eta")
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, int(latestVersionInfo.VersionNumber), versionsPerWorker)
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, c.test)
	}
}
