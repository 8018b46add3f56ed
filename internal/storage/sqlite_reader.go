package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/antenna-survey/internal/survey"
)

// ErrNoData indicates that no readings exist for the given parameters.
var ErrNoData = errors.New("no data available")

// MeasurementReader provides an iterator-based interface for reading magnitude
// readings with optional time filtering.
type MeasurementReader interface {
	// Session returns metadata about the survey session this reader is accessing.
	Session() *survey.Session

	// Next advances the iterator and returns true if there is another reading
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current reading in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *survey.MeasurementWithTelemetry

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish between
	// end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	// After Close is called, the reader should not be used.
	Close() error
}

// ReaderOption configures a MeasurementReader with specific filtering criteria.
type ReaderOption func(*SqliteMeasurementReader)

// WithStartTime excludes readings taken before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteMeasurementReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes readings taken after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteMeasurementReader) {
		r.endTime = &t
	}
}

// WithTimeRange is a convenience function equivalent to applying both
// WithStartTime and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteMeasurementReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

func newSqliteMeasurementReader(ctx context.Context, db *sql.DB, sessionID uuid.UUID, opts ...ReaderOption) (*SqliteMeasurementReader, error) {
	mr := &SqliteMeasurementReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(mr)
	}
	if err := mr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return mr, nil
}

// SqliteMeasurementReader implements MeasurementReader for SQLite database backend.
type SqliteMeasurementReader struct {
	db *sql.DB

	sessionID uuid.UUID
	session   *survey.Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *survey.MeasurementWithTelemetry
	rows    *sql.Rows
	err     error
}

var _ MeasurementReader = (*SqliteMeasurementReader)(nil)

func (mr *SqliteMeasurementReader) init(ctx context.Context) error {
	if mr.db == nil {
		return errors.New("database connection required")
	}
	if mr.sessionID == uuid.Nil {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: mr.loadSession},
		{msg: "initializing filters", fn: mr.initFilters},
		{msg: "initializing query", fn: mr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (mr *SqliteMeasurementReader) loadSession(ctx context.Context) (err error) {
	stmt, err := mr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	mr.session, err = scanSession(stmt.QueryRowContext(ctx, mr.sessionID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", mr.sessionID, ErrNotFound)
	}
	return err
}

func (mr *SqliteMeasurementReader) initFilters(context.Context) error {
	if mr.startTime != nil && mr.endTime != nil && mr.startTime.After(*mr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", mr.startTime, mr.endTime)
	}
	return nil
}

func (mr *SqliteMeasurementReader) initQuery(ctx context.Context) (err error) {
	start := toNullTime(mr.startTime)
	end := toNullTime(mr.endTime)

	mr.rows, err = mr.db.QueryContext(ctx, selectMeasurementsSQL, mr.sessionID.String(), start, start, end, end)
	return err
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (mr *SqliteMeasurementReader) scan() (*survey.MeasurementWithTelemetry, error) {
	var data measurementWithTelemetryData

	err := mr.rows.Scan(
		&data.measurementData.Timestamp,
		&data.Magnitude,
		&data.ID,
		&data.telemetryData.Timestamp,
		&data.Latitude,
		&data.Longitude,
		&data.Altitude,
		&data.RelativeAltitude,
		&data.Roll,
		&data.Pitch,
		&data.Yaw,
		&data.GroundSpeed,
		&data.GroundCourse,
		&data.RadioRSSI,
		&data.MissionSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning measurement: %w", err)
	}

	return &survey.MeasurementWithTelemetry{
		Measurement: survey.Measurement{
			Timestamp: data.measurementData.Timestamp,
			Magnitude: fromNullType(data.Magnitude.Float64, data.Magnitude.Valid),
		},
		Telemetry: fromTelemetryData(&data.telemetryData),
	}, nil
}

func (mr *SqliteMeasurementReader) Session() *survey.Session {
	return mr.session
}

func (mr *SqliteMeasurementReader) Next(ctx context.Context) bool {
	if mr.err != nil || mr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		mr.err = ctx.Err()
		return false
	default:
	}

	if !mr.rows.Next() {
		mr.current = nil
		return false
	}

	mr.current, mr.err = mr.scan()
	return mr.err == nil
}

func (mr *SqliteMeasurementReader) Current() *survey.MeasurementWithTelemetry {
	return mr.current
}

func (mr *SqliteMeasurementReader) Error() error {
	if mr.err != nil {
		return mr.err
	}
	if mr.rows != nil {
		return mr.rows.Err()
	}
	return nil
}

func (mr *SqliteMeasurementReader) Close() error {
	if mr.rows != nil {
		err := mr.rows.Close()
		mr.current = nil
		mr.rows = nil
		return err
	}
	return nil
}

// ReadAll drains r into a slice. It returns ErrNoData if r yields nothing.
func ReadAll(ctx context.Context, r MeasurementReader) ([]survey.MeasurementWithTelemetry, error) {
	var out []survey.MeasurementWithTelemetry
	for r.Next(ctx) {
		out = append(out, *r.Current())
	}
	if err := r.Error(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
