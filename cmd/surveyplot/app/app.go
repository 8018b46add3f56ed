package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/storage"
	"github.com/roman-kulish/antenna-survey/internal/survey"
)

var ErrNoSessions = errors.New("database holds no survey sessions")

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	data, err := readSurvey(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer := NewSurveyRenderer(RenderConfig{
		Size:          config.Size,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})

	logger.Info("rendering survey",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("size", config.Size),
		))

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering survey: %w", err)
	}

	return writeImage(config.OutputFile, config.Format, img)
}

func readSurvey(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (*PlotData, error) {
	session, err := selectSession(ctx, store, config)
	if err != nil {
		return nil, err
	}

	var waypoints []mission.Waypoint
	if session.MissionID != nil {
		waypoints, err = store.Waypoints(ctx, *session.MissionID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("reading mission waypoints: %w", err)
		}
	}

	r, err := store.ReadMeasurements(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	logger.Info("reading measurements", slog.String("session", session.ID.String()))

	measurements, err := storage.ReadAll(ctx, r)
	if err != nil {
		return nil, err
	}

	bounds := ComputeBounds(measurements, config.MinMagnitude, config.MaxMagnitude)

	data, err := NewPlotData(session, waypoints, measurements, bounds, config.Sectors)
	if err != nil {
		return nil, err
	}

	logger.Info("finished reading measurements",
		slog.Group("stats",
			slog.String("minTimestamp", data.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", data.TimestampEnd.Local().Format(time.DateTime)),
			slog.Int("readings", len(measurements)),
			slog.Int("unlocated", data.Unlocated),
			slog.String("minMagnitude", fmt.Sprintf("%0.2fdBm", bounds.Min)),
			slog.String("maxMagnitude", fmt.Sprintf("%0.2fdBm", bounds.Max)),
		))

	if config.Verbose {
		logSectors(logger, data.Sectors)
	}

	return data, nil
}

// selectSession returns the requested session or the most recent one
func selectSession(ctx context.Context, store *storage.SqliteStore, config *Config) (*survey.Session, error) {
	if config.SessionID != nil {
		session, err := store.Session(ctx, *config.SessionID)
		if err != nil {
			return nil, fmt.Errorf("reading session %s: %w", config.SessionID, err)
		}
		return session, nil
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	return sessions[len(sessions)-1], nil
}

func logSectors(logger *slog.Logger, sectors []survey.SectorSummary) {
	for _, s := range sectors {
		if s.Count == 0 {
			logger.Info("sector without readings",
				slog.Float64("from", s.FromAzimuth),
				slog.Float64("to", s.ToAzimuth))
			continue
		}
		logger.Info("sector",
			slog.Float64("from", s.FromAzimuth),
			slog.Float64("to", s.ToAzimuth),
			slog.Int("count", s.Count),
			slog.String("mean", formatMagnitude(s.Mean)),
			slog.String("min", formatMagnitude(s.Min)),
			slog.String("max", formatMagnitude(s.Max)),
			slog.Float64("stdDev", s.StdDev),
			slog.Float64("meanDistance", s.MeanDistance))
	}
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = fmt.Errorf("invalid image format: %s", format)
	}
	return err
}
