package storage

import (
	"database/sql"
	"time"
)

type measurementData struct {
	SessionID   string
	Timestamp   time.Time
	Magnitude   sql.NullFloat64
	TelemetryID sql.NullInt64
}

type telemetryData struct {
	ID               sql.NullInt64
	SessionID        string
	Timestamp        sql.NullTime
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	Altitude         sql.NullFloat64
	RelativeAltitude sql.NullFloat64
	Roll             sql.NullFloat64
	Pitch            sql.NullFloat64
	Yaw              sql.NullFloat64
	GroundSpeed      sql.NullFloat64
	GroundCourse     sql.NullFloat64
	RadioRSSI        sql.NullInt64
	MissionSeq       sql.NullInt64
}

type measurementWithTelemetryData struct {
	measurementData
	telemetryData
}
