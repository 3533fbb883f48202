package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"irisapi/config"
	"irisapi/db"
	qhttp "irisapi/http"
	"irisapi/logging"
	"irisapi/monitoring"
	"irisapi/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Load the model once; an unusable artifact leaves the service up but unavailable
	modelService := service.NewModelService(cfg.Model, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Model.Watch && modelService.Available() {
		if err := service.WatchArtifact(ctx, cfg.Model.Path, logger, nil); err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		}
	}

	// 3. Prediction log
	deps := qhttp.Dependencies{
		Predictor:   modelService,
		Metrics:     monitoring.NewMetricsCollector(),
		Logger:      logger,
		HistorySize: cfg.History.LRUSize,
	}
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open prediction log", zap.String("path", cfg.Database.Path), zap.Error(err))
		}
		defer store.Close()
		deps.Store = store
		logger.Info("prediction log opened", zap.String("path", cfg.Database.Path))
	}

	// 4. Live feed
	hub := monitoring.NewWebSocketHub(logger, cfg.HTTP.AllowedOrigins)
	go hub.Start()
	defer hub.Stop()
	deps.Feed = hub
	deps.FeedHandler = hub.HandleWebSocket

	handlers, err := qhttp.NewHandlers(deps)
	if err != nil {
		logger.Fatal("failed to build handlers", zap.Error(err))
	}

	// 5. Start HTTP server
	server := qhttp.NewServer(cfg.HTTP, handlers, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 6. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-quit:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
