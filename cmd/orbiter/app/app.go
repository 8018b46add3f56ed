package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/antenna-survey/internal/flight"
	"github.com/roman-kulish/antenna-survey/internal/metrics"
	"github.com/roman-kulish/antenna-survey/internal/relay"
	"github.com/roman-kulish/antenna-survey/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func Run(ctx context.Context, config *Config, logger *slog.Logger, options ...func(*Orchestrator)) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %s", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if config.Metrics.Listen != "" {
		stop := serveMetrics(config.Metrics.Listen, reg, logger)
		defer stop()
	}

	node, err := flight.Dial(&config.Link)
	if err != nil {
		return fmt.Errorf("failed to connect to autopilot: %w", err)
	}
	defer node.Close()

	controllerOpts := []func(*flight.Controller){
		flight.WithLogger(logger),
		flight.WithHomeItem(config.Orbit.homeItem()),
	}
	if config.Link.TargetSystem != 0 {
		controllerOpts = append(controllerOpts, flight.WithTarget(config.Link.TargetSystem, config.Link.TargetComponent))
	}
	controller := flight.NewController(node, controllerOpts...)

	client := relay.NewClient(config.Sampling.RelayURL, relay.WithHTTPClient(&http.Client{
		Timeout: config.Sampling.RequestTimeout.Or(relay.DefaultClientTimeout),
	}))

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	options = append([]func(*Orchestrator){
		WithLogger(logger),
		WithMetrics(m),
		WithMaxBatchSize(config.Storage.MaxBatchSize),
		WithSessionConfig(string(configJSON)),
	}, options...)

	orchestrator := NewOrchestrator(controller, store, client, config, options...)
	return orchestrator.Run(ctx)
}

func serveMetrics(addr string, g prometheus.Gatherer, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(g))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("metrics server: %s", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := config.DataDirectory
	if dbPath == "" {
		dbPath = defaultDataDir
	}
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("survey_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
