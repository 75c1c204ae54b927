package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vaultstream/vaultstream/internal/accessgate"
	"github.com/vaultstream/vaultstream/internal/api"
	"github.com/vaultstream/vaultstream/internal/cache"
	"github.com/vaultstream/vaultstream/internal/config"
	"github.com/vaultstream/vaultstream/internal/db"
	"github.com/vaultstream/vaultstream/internal/hlsserver"
	"github.com/vaultstream/vaultstream/internal/pipeline"
	"github.com/vaultstream/vaultstream/internal/security"
	"github.com/vaultstream/vaultstream/internal/storage"
	"github.com/vaultstream/vaultstream/internal/transcoder"
	"github.com/vaultstream/vaultstream/internal/videostore"
	"github.com/vaultstream/vaultstream/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Production)
	defer logger.Sync()
	logr := logger.Sugar()

	database, err := db.New(cfg)
	if err != nil {
		logr.Fatalw("db", "err", err)
	}

	playlistCache, err := cache.New(cfg, logr)
	if err != nil {
		logr.Fatalw("cache", "err", err)
	}
	defer playlistCache.Close()

	store, err := storage.New(cfg, logr)
	if err != nil {
		logr.Fatalw("storage", "err", err)
	}

	signer := security.New(cfg.SignerSecret, cfg.SignedURLTTLSec)
	driver := transcoder.NewDriver(logr, cfg.HLSSegmentSeconds, cfg.NominalFPS)
	orchestrator := pipeline.NewOrchestrator(database, store, driver, logr, cfg.ScratchDir, cfg.RenditionTimeoutSec)
	pool := worker.NewPool(cfg.PipelineWorkers, cfg.PipelineWorkers*4)

	ctx := context.Background()
	if err := orchestrator.RequeueStuck(ctx, pool); err != nil {
		logr.Errorw("crash recovery scan failed", "err", err)
	}

	videos := videostore.New(database)
	gate := accessgate.New(videos, signer)
	handlers := api.NewHandlers(database, store, gate, orchestrator, pool, cfg, logr)
	streamServer := hlsserver.New(videos, store, signer, playlistCache, logr)

	router := api.NewRouter(handlers, streamServer, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logr.Infow("vaultstream listening", "port", cfg.Port, "backend", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatalw("listen", "err", err)
	}
}

func newLogger(production bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if production {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return logger
}
