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

// Package history persists served predictions in an embedded bolt database.
package history

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var log = logrus.WithField("component", "history")

var predictionsBucketName = []byte("predictions")

func init() {
	// Feature payloads are decoded JSON objects, register the dynamic types
	// they can hold so gob can round-trip them.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

// Record is one served prediction as kept in the history
type Record struct {
	Idx            uint64
	ID             string
	Time           time.Time
	Mode           string
	ModelID        string
	ModelVersion   uint
	EtaNormalized  float64
	EtaMinutes     float64
	LatencySeconds float64
	Features       map[string]interface{}
}

// Page is a chunk of history records, NextIdx is the index to resume
// listing from (0 when the history is exhausted).
type Page struct {
	Records []Record
	NextIdx uint64
}

// Store is an append-only prediction history backed by a bolt file
type Store struct {
	db *bolt.DB
}

// CreateBoltStore opens (or creates) the history database at the given path
func CreateBoltStore(filename string) (*Store, error) {
	db, err := bolt.Open(filename, 0640, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open history database %q: %w", filename, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(predictionsBucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to initialize history database %q: %w", filename, err)
	}
	log.WithField("path", filename).Info("history database opened")
	return &Store{db: db}, nil
}

// Destroy closes the underlying database
func (s *Store) Destroy() {
	if err := s.db.Close(); err != nil {
		log.WithError(err).Warn("unable to close the history database")
	}
}

func buildRecordKey(idx uint64) []byte {
	return []byte(fmt.Sprintf("%016x", idx))
}

// Append stores one record, assigning it the next sequence index. The
// returned record carries the assigned index.
func (s *Store) Append(record Record) (Record, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(predictionsBucketName)
		idx, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		record.Idx = idx
		if record.ID == "" {
			record.ID = uuid.New().String()
		}

		encoded := bytes.Buffer{}
		if err := gob.NewEncoder(&encoded).Encode(record); err != nil {
			return err
		}
		return bucket.Put(buildRecordKey(idx), encoded.Bytes())
	})
	if err != nil {
		return Record{}, fmt.Errorf("unable to append to the prediction history: %w", err)
	}
	return record, nil
}

// List returns up to count records starting at fromIdx (0 starts from the
// oldest record). The returned page's NextIdx resumes the listing.
func (s *Store) List(fromIdx uint64, count int) (Page, error) {
	page := Page{Records: []Record{}}
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(predictionsBucketName).Cursor()

		key, value := cursor.Seek(buildRecordKey(fromIdx))
		for ; key != nil; key, value = cursor.Next() {
			if count > 0 && len(page.Records) >= count {
				record := Record{}
				if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&record); err != nil {
					return err
				}
				page.NextIdx = record.Idx
				return nil
			}
			record := Record{}
			if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&record); err != nil {
				return err
			}
			page.Records = append(page.Records, record)
		}
		return nil
	})
	if err != nil {
		return Page{}, fmt.Errorf("unable to list the prediction history: %w", err)
	}
	return page, nil
}

// Count returns the number of stored records
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(predictionsBucketName).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("unable to count the prediction history: %w", err)
	}
	return count, nil
}
