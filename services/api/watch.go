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

package api

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/etaserve/etaserve/services/api/predictor"
)

const watchDebounceDelay = 500 * time.Millisecond

// watchModelDir reloads the serving models when the model directory changes,
// eg. when versions are pushed with the local CLI while the service runs.
// Reload failures are logged, the last good models keep serving.
func watchModelDir(ctx context.Context, modelDir string, manager *predictor.Manager) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create the model directory watcher: %w", err)
	}
	defer watcher.Close()

	addModelDirs := func() error {
		if err := watcher.Add(modelDir); err != nil {
			return fmt.Errorf("unable to watch the model directory %q: %w", modelDir, err)
		}
		// fsnotify watches are not recursive, each model is a subdirectory
		entries, err := os.ReadDir(modelDir)
		if err != nil {
			return fmt.Errorf("unable to list the model directory %q: %w", modelDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				if err := watcher.Add(path.Join(modelDir, entry.Name())); err != nil {
					return fmt.Errorf("unable to watch the model directory %q: %w", entry.Name(), err)
				}
			}
		}
		return nil
	}
	if err := addModelDirs(); err != nil {
		return err
	}

	log.WithField("path", modelDir).Info("watching the model directory")

	var debounce *time.Timer
	var debounceC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("model directory watch error")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// A new model means a new subdirectory to watch
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						log.WithError(err).Warn("unable to watch a new model directory")
					}
				}
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounceDelay)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(watchDebounceDelay)
			}
		case <-debounceC:
			debounce = nil
			debounceC = nil
			log.Debug("model directory changed, reloading the models")
			if err := manager.Load(); err != nil {
				log.WithError(err).Warn("unable to reload the models, the previous versions keep serving")
			}
		}
	}
}
