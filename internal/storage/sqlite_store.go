package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/survey"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

var ErrNotFound = errors.New("not found")

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new store backed by the Sqlite database at dbPath.
// Connections are opened and the schema is initialized on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, session *survey.Session) (err error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.StartTime.IsZero() {
		session.StartTime = time.Now()
	}

	var configData sql.NullString
	if session.Config != nil {
		configData.Valid = true
		configData.String = *session.Config
	}

	var missionID sql.NullString
	if session.MissionID != nil {
		missionID.Valid = true
		missionID.String = session.MissionID.String()
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(
		ctx,
		session.ID.String(),
		session.StartTime.UTC(),
		session.Antenna.Latitude,
		session.Antenna.Longitude,
		session.AntennaElevation,
		missionID,
		session.Radius,
		session.PointCount,
		session.Instrument,
		configData,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*survey.Session, error) {
	var sess survey.Session
	var id string
	var missionID, config sql.NullString

	err := row.Scan(
		&id,
		&sess.StartTime,
		&sess.Antenna.Latitude,
		&sess.Antenna.Longitude,
		&sess.AntennaElevation,
		&missionID,
		&sess.Radius,
		&sess.PointCount,
		&sess.Instrument,
		&config,
	)
	if err != nil {
		return nil, err
	}

	if sess.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing session ID: %w", err)
	}
	if missionID.Valid {
		mID, err := uuid.Parse(missionID.String)
		if err != nil {
			return nil, fmt.Errorf("parsing mission ID: %w", err)
		}
		sess.MissionID = &mID
	}
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}

func (s *SqliteStore) Session(ctx context.Context, id uuid.UUID) (session *survey.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	session, err = scanSession(stmt.QueryRowContext(ctx, id.String()))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = fmt.Errorf("session %s: %w", id, ErrNotFound)
	case err != nil:
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*survey.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *survey.Session
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreMission(ctx context.Context, sessionID uuid.UUID, m *mission.OrbitMission) (err error) {
	if m.Len() == 0 {
		return mission.ErrEmptyMission
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, m.Len()*7)
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertWaypointSQL)

	for i, wp := range m.Waypoints {
		values = append(values,
			m.ID.String(),
			sessionID.String(),
			i,
			wp.Location.Latitude,
			wp.Location.Longitude,
			wp.Altitude,
			wp.CornerRadius,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting waypoints: %w", err)
	}

	result, err := tx.ExecContext(ctx, updateSessionMissionSQL, m.ID.String(), sessionID.String())
	if err != nil {
		return fmt.Errorf("linking mission: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("linking mission: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) Waypoints(ctx context.Context, missionID uuid.UUID) (waypoints []mission.Waypoint, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectWaypointsSQL, missionID.String())
	if err != nil {
		err = fmt.Errorf("querying waypoints: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var wp mission.Waypoint
		if err = rows.Scan(&wp.Location.Latitude, &wp.Location.Longitude, &wp.Altitude, &wp.CornerRadius); err != nil {
			err = fmt.Errorf("scanning waypoint: %w", err)
			return
		}
		waypoints = append(waypoints, wp)
	}
	if err = rows.Err(); err != nil {
		return
	}
	if len(waypoints) == 0 {
		err = fmt.Errorf("mission %s: %w", missionID, ErrNotFound)
	}
	return
}

// ReadMeasurements creates a reader over the magnitude readings of a survey
// session, each joined with the telemetry captured alongside it.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - sessionID: Unique identifier of the survey session to read from
//   - opts: Optional configuration parameters for the reader (WithStartTime, WithEndTime,
//     WithTimeRange)
//
// The returned reader must be closed after use to release database resources.
// Each reader instance should only be used from a single goroutine.
func (s *SqliteStore) ReadMeasurements(ctx context.Context, sessionID uuid.UUID, opts ...ReaderOption) (*SqliteMeasurementReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteMeasurementReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) StoreTelemetry(ctx context.Context, sessionID uuid.UUID, t *telemetry.Telemetry) (telemetryID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertTelemetrySQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	data := toTelemetryData(sessionID.String(), t)

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.Timestamp,
		data.Latitude,
		data.Longitude,
		data.Altitude,
		data.RelativeAltitude,
		data.Roll,
		data.Pitch,
		data.Yaw,
		data.GroundSpeed,
		data.GroundCourse,
		data.RadioRSSI,
		data.MissionSeq,
	)
	if err != nil {
		err = fmt.Errorf("inserting telemetry: %w", err)
		return
	}

	telemetryID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting telemetry ID: %w", err)
	}
	return
}

func (s *SqliteStore) StoreMeasurements(ctx context.Context, sessionID uuid.UUID, telemetryID *int64, measurements ...survey.Measurement) (err error) {
	if len(measurements) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(measurements)*4)
	valuesPlaceholder := "(?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertMeasurementSQL)

	for i, m := range measurements {
		data := toMeasurementData(sessionID.String(), telemetryID, m)
		values = append(values,
			data.SessionID,
			data.Timestamp,
			data.Magnitude,
			data.TelemetryID,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting measurements: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
