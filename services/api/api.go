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

// Package api wires the ETA prediction service: registry backends, the
// predictor manager, the optional history store, the http server and the
// model directory watcher, supervised by one errgroup.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/etaserve/etaserve/services/api/history"
	"github.com/etaserve/etaserve/services/api/httpserver"
	"github.com/etaserve/etaserve/services/api/predictor"
	"github.com/etaserve/etaserve/services/api/registry/backend/fileSystem"
	"github.com/etaserve/etaserve/services/api/registry/backend/memoryCache"
	"github.com/etaserve/etaserve/utils"
)

var log = logrus.WithField("component", "api")

type Options struct {
	Port          uint
	ModelDir      string
	PickupModel   string
	DeliveryModel string
	CacheMaxItems int
	HistoryFile   string
	PublishSecret string
	Watch         bool
}

var DefaultOptions = Options{
	Port:          5000,
	ModelDir:      ".etaserve/models",
	PickupModel:   "pickup-eta",
	DeliveryModel: "delivery-eta",
	CacheMaxItems: memoryCache.DefaultVersionCacheConfiguration.MaxItems,
	HistoryFile:   ".etaserve/history.db",
	PublishSecret: "",
	Watch:         true,
}

func Run(ctx context.Context, options Options) error {
	log.Info("initializing the eta prediction service...")

	modelDir, err := utils.ExpandPath(options.ModelDir)
	if err != nil {
		return fmt.Errorf("unable to resolve the model directory %q: %w", options.ModelDir, err)
	}
	if err := os.MkdirAll(modelDir, 0750); err != nil {
		return fmt.Errorf("unable to create the model directory %q: %w", modelDir, err)
	}

	archiveBackend, err := fileSystem.CreateBackend(modelDir)
	if err != nil {
		return fmt.Errorf("unable to create the archive filesystem backend: %w", err)
	}
	log.WithField("path", modelDir).Info("filesystem backend created for archived model versions")

	versionCacheConfiguration := memoryCache.VersionCacheConfiguration{MaxItems: options.CacheMaxItems}
	registry, err := memoryCache.CreateBackend(versionCacheConfiguration, archiveBackend)
	if err != nil {
		archiveBackend.Destroy()
		return fmt.Errorf("unable to create the registry backend: %w", err)
	}

	manager := predictor.NewManager(registry, map[predictor.Mode]string{
		predictor.ModePickup:   options.PickupModel,
		predictor.ModeDelivery: options.DeliveryModel,
	})
	// Missing or corrupt model artifacts abort the start, the service never
	// serves without its models.
	if err := manager.Load(); err != nil {
		registry.Destroy()
		archiveBackend.Destroy()
		return fmt.Errorf("unable to load the models: %w", err)
	}

	var historyStore *history.Store
	if options.HistoryFile != "" {
		historyFile, err := utils.ExpandPath(options.HistoryFile)
		if err != nil {
			registry.Destroy()
			archiveBackend.Destroy()
			return fmt.Errorf("unable to resolve the history file %q: %w", options.HistoryFile, err)
		}
		historyStore, err = history.CreateBoltStore(historyFile)
		if err != nil {
			registry.Destroy()
			archiveBackend.Destroy()
			return err
		}
	} else {
		log.Info("prediction history is disabled")
	}

	httpServer, err := httpserver.New(options.Port, manager, registry, historyStore, options.PublishSecret)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)

	// Start the http server
	group.Go(func() error {
		log.WithField("port", options.Port).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("unexpected error while serving http routes: %v", err)
		}
		return nil
	})

	// Watch the model directory for out-of-band publications
	if options.Watch {
		group.Go(func() error {
			return watchModelDir(ctx, modelDir, manager)
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		log.Info("Gracefully stopping")

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log.Debug("Stopping the http server")
		err := httpServer.Shutdown(stopCtx)

		if historyStore != nil {
			log.Debug("Closing the history store")
			historyStore.Destroy()
		}

		log.Debug("Destroying the registry backends")
		registry.Destroy()
		archiveBackend.Destroy()

		if err != nil {
			log.WithField("error", err).Warning("Error while stopping")
		}
		return ctx.Err()
	})

	return group.Wait()
}
