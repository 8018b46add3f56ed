package storage

import (
	"context"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/survey"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

// Store provides an interface for managing antenna survey data storage operations.
// It handles sessions, uploaded missions, telemetry data and magnitude readings.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession persists a new survey session. A zero session ID is replaced
	// with a random one and the start time defaults to the current time.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - session: Session to store; its ID and StartTime are filled in
	//
	// Returns:
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, session *survey.Session) error

	// Session retrieves a specific survey session by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: ErrNotFound if there is no such session
	Session(ctx context.Context, id uuid.UUID) (session *survey.Session, err error)

	// Sessions returns all survey sessions stored in the database.
	// Results are ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*survey.Session, err error)

	// StoreMission saves the waypoints of a mission flown during the session
	// and links the mission to the session.
	StoreMission(ctx context.Context, sessionID uuid.UUID, m *mission.OrbitMission) error

	// Waypoints returns the waypoints of a stored mission in flight order.
	Waypoints(ctx context.Context, missionID uuid.UUID) ([]mission.Waypoint, error)

	// StoreTelemetry saves drone telemetry data for a specific session.
	// The telemetry data is linked to magnitude readings for position correlation.
	//
	// Returns:
	//   - telemetryID: Unique identifier for the stored telemetry record
	//   - error: If storage fails or context is cancelled
	StoreTelemetry(ctx context.Context, sessionID uuid.UUID, t *telemetry.Telemetry) (telemetryID int64, err error)

	// StoreMeasurements saves magnitude readings, optionally linked to telemetry.
	// All readings are stored in a single atomic transaction.
	StoreMeasurements(ctx context.Context, sessionID uuid.UUID, telemetryID *int64, measurements ...survey.Measurement) error

	// ReadMeasurements returns a reader over the session readings joined with
	// telemetry, in time order. The reader must be closed after use.
	ReadMeasurements(ctx context.Context, sessionID uuid.UUID, opts ...ReaderOption) (*SqliteMeasurementReader, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
