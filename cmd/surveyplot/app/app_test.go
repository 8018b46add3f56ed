package app

import (
	"context"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/storage"
)

func writeSurvey(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "survey.sqlite")
	store := storage.NewSqliteStore(path)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	session, waypoints, measurements := testPlotInput(t)
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatal(err)
	}

	m, err := mission.AssembleMission(waypoints, session.Antenna, mission.DefaultSpeedConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err = store.StoreMission(ctx, session.ID, m); err != nil {
		t.Fatal(err)
	}

	for _, r := range measurements {
		var telemetryID *int64
		if r.Telemetry != nil {
			id, err := store.StoreTelemetry(ctx, session.ID, r.Telemetry)
			if err != nil {
				t.Fatal(err)
			}
			telemetryID = &id
		}
		if err = store.StoreMeasurements(ctx, session.ID, telemetryID, r.Measurement); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestRun(t *testing.T) {
	dbPath := writeSurvey(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	config := NewConfig()
	config.DBPath = dbPath
	config.OutputFile = filepath.Join(t.TempDir(), "plot.png")
	config.Size = minImageSize
	config.Sectors = 4
	config.Verbose = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := Run(ctx, config, logger); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	f, err := os.Open(config.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if w := img.Bounds().Dx(); w != minImageSize+defaultLeftBorder+defaultRightBorder {
		t.Errorf("image width = %d", w)
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	config := NewConfig()
	config.DBPath = filepath.Join(t.TempDir(), "missing.sqlite")
	config.OutputFile = filepath.Join(t.TempDir(), "plot.png")

	if err := Run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("Run() succeeded without a database")
	}
}
