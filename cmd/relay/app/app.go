package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/antenna-survey/internal/instrument"
	"github.com/roman-kulish/antenna-survey/internal/metrics"
	"github.com/roman-kulish/antenna-survey/internal/relay"
)

const shutdownTimeout = 5 * time.Second

// Run serves the relay until ctx is done
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	server := relay.NewServer(opener(&config.Instrument),
		relay.WithLogger(logger),
		relay.WithMetrics(m, reg),
	)
	httpServer := server.HTTPServer(config.listen())

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("relay listening",
			slog.String("addr", httpServer.Addr),
			slog.String("instrument", config.Instrument.Resource))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serving relay: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down relay: %w", err)
	}
	return nil
}

// opener opens a fresh instrument session per request
func opener(c *instrument.Config) relay.Opener {
	return func(ctx context.Context) (relay.Instrument, error) {
		s, err := instrument.Open(ctx, c)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
