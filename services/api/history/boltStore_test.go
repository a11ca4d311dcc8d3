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

package history

import (
	"fmt"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *Store {
	store, err := CreateBoltStore(path.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(store.Destroy)
	return store
}

func makeRecord(etaMinutes float64) Record {
	return Record{
		Time:          time.Now().UTC(),
		Mode:          "pickup",
		ModelID:       "pickup-eta",
		ModelVersion:  3,
		EtaNormalized: etaMinutes / 100,
		EtaMinutes:    etaMinutes,
		Features: map[string]interface{}{
			"pickup_distance_km": 2.4,
			"aoi_type":           "1",
			"rush_hour":          true,
			"courier_id":         nil,
		},
	}
}

func TestAppendAssignsIdxAndID(t *testing.T) {
	store := createTestStore(t)

	first, err := store.Append(makeRecord(32))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Idx)
	assert.NotEmpty(t, first.ID)

	second, err := store.Append(makeRecord(48))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Idx)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListRoundTripsFeatures(t *testing.T) {
	store := createTestStore(t)
	appended, err := store.Append(makeRecord(32))
	require.NoError(t, err)

	page, err := store.List(0, 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, uint64(0), page.NextIdx)

	record := page.Records[0]
	assert.Equal(t, appended.ID, record.ID)
	assert.Equal(t, "pickup", record.Mode)
	assert.Equal(t, uint(3), record.ModelVersion)
	assert.Equal(t, 2.4, record.Features["pickup_distance_km"])
	assert.Equal(t, "1", record.Features["aoi_type"])
	assert.Equal(t, true, record.Features["rush_hour"])
	assert.Nil(t, record.Features["courier_id"])
	assert.True(t, appended.Time.Equal(record.Time))
}

func TestListPagination(t *testing.T) {
	store := createTestStore(t)
	for i := 0; i < 10; i++ {
		_, err := store.Append(makeRecord(float64(i)))
		require.NoError(t, err)
	}

	page, err := store.List(0, 4)
	require.NoError(t, err)
	require.Len(t, page.Records, 4)
	assert.Equal(t, uint64(1), page.Records[0].Idx)
	assert.Equal(t, uint64(5), page.NextIdx)

	page, err = store.List(page.NextIdx, 4)
	require.NoError(t, err)
	require.Len(t, page.Records, 4)
	assert.Equal(t, uint64(5), page.Records[0].Idx)
	assert.Equal(t, uint64(9), page.NextIdx)

	page, err = store.List(page.NextIdx, 4)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, uint64(0), page.NextIdx)
}

func TestReopenKeepsSequence(t *testing.T) {
	filename := path.Join(t.TempDir(), "history.db")

	store, err := CreateBoltStore(filename)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := store.Append(makeRecord(float64(i)))
		require.NoError(t, err)
	}
	store.Destroy()

	store, err = CreateBoltStore(filename)
	require.NoError(t, err)
	defer store.Destroy()

	record, err := store.Append(makeRecord(99))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), record.Idx)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestKeysKeepLexicographicOrder(t *testing.T) {
	// Hex keys are zero padded so a cursor walks records in insert order
	// well past single digit indexes.
	assert.Equal(t, fmt.Sprintf("%016x", uint64(9)), string(buildRecordKey(9)))
	assert.Less(t, string(buildRecordKey(9)), string(buildRecordKey(10)))
	assert.Less(t, string(buildRecordKey(255)), string(buildRecordKey(4096)))
}
