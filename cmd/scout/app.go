// Path: cmd/scout/app.go
package main

import (
	"context"
	"fmt"

	"viral-scout/internal/config"
	"viral-scout/internal/events"
	"viral-scout/internal/logging"
	"viral-scout/internal/pipeline"
	"viral-scout/internal/scraper"
	"viral-scout/internal/service"
	"viral-scout/internal/storage"

	"go.uber.org/zap"
)

// app bundles the components every command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   storage.Store
	broker  *events.Broker
	service *service.Service
}

// openApp loads configuration, opens the configured store and wires the service.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	logger.Debug("opening store", zap.String("driver", cfg.Database.Driver))
	store, err := storage.Open(ctx, cfg.Database, cfg.Fetcher.MaxConnections)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	broker := events.NewBroker()
	svc := service.NewService(cfg, newSourceFactory(cfg, logger), store, store, broker, logger)
	return &app{cfg: cfg, logger: logger, store: store, broker: broker, service: svc}, nil
}

// newSourceFactory gives each run its own fetcher so its connections are
// released when the run ends.
func newSourceFactory(cfg *config.Config, logger *zap.Logger) service.SourceFactory {
	return func() (pipeline.Source, func()) {
		f := scraper.NewFetcher(cfg.Fetcher, logger.Named("fetcher"))
		return scraper.NewClient(f, cfg.Fetcher.APIKey, logger.Named("client")), f.Close
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
