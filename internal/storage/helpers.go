package storage

import (
	"database/sql"
	"errors"

	"github.com/roman-kulish/antenna-survey/internal/survey"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toTelemetryData(sessionID string, t *telemetry.Telemetry) *telemetryData {
	return &telemetryData{
		SessionID: sessionID,
		Timestamp: sql.NullTime{
			Time:  t.Timestamp.UTC(),
			Valid: true,
		},
		Latitude:         toNullFloat64(t.Latitude),
		Longitude:        toNullFloat64(t.Longitude),
		Altitude:         toNullFloat64(t.Altitude),
		RelativeAltitude: toNullFloat64(t.RelativeAltitude),
		Roll:             toNullFloat64(t.Roll),
		Pitch:            toNullFloat64(t.Pitch),
		Yaw:              toNullFloat64(t.Yaw),
		GroundSpeed:      toNullFloat64(t.GroundSpeed),
		GroundCourse:     toNullFloat64(t.GroundCourse),
		RadioRSSI:        toNullInt64(t.RadioRSSI),
		MissionSeq:       toNullInt64(t.MissionSeq),
	}
}

func toMeasurementData(sessionID string, telemetryID *int64, m survey.Measurement) *measurementData {
	return &measurementData{
		SessionID:   sessionID,
		Timestamp:   m.Timestamp.UTC(),
		Magnitude:   toNullFloat64(m.Magnitude),
		TelemetryID: toNullInt64(telemetryID),
	}
}

func fromTelemetryData(d *telemetryData) *telemetry.Telemetry {
	if !d.ID.Valid {
		return nil
	}

	t := &telemetry.Telemetry{
		Latitude:         fromNullType(d.Latitude.Float64, d.Latitude.Valid),
		Longitude:        fromNullType(d.Longitude.Float64, d.Longitude.Valid),
		Altitude:         fromNullType(d.Altitude.Float64, d.Altitude.Valid),
		RelativeAltitude: fromNullType(d.RelativeAltitude.Float64, d.RelativeAltitude.Valid),
		Roll:             fromNullType(d.Roll.Float64, d.Roll.Valid),
		Pitch:            fromNullType(d.Pitch.Float64, d.Pitch.Valid),
		Yaw:              fromNullType(d.Yaw.Float64, d.Yaw.Valid),
		GroundSpeed:      fromNullType(d.GroundSpeed.Float64, d.GroundSpeed.Valid),
		GroundCourse:     fromNullType(d.GroundCourse.Float64, d.GroundCourse.Valid),
		RadioRSSI:        fromNullType(d.RadioRSSI.Int64, d.RadioRSSI.Valid),
		MissionSeq:       fromNullType(d.MissionSeq.Int64, d.MissionSeq.Valid),
	}
	if d.Timestamp.Valid {
		t.Timestamp = d.Timestamp.Time
	}
	return t
}

func toNullFloat64(f *float64) sql.NullFloat64 {
	return sql.NullFloat64{
		Float64: toSQLNullType[float64](f),
		Valid:   f != nil,
	}
}

func toNullInt64(i *int64) sql.NullInt64 {
	return sql.NullInt64{
		Int64: toSQLNullType[int64](i),
		Valid: i != nil,
	}
}

func toSQLNullType[T float64 | int64, Y float64 | int | int64](f *Y) T {
	if f == nil {
		return 0
	}
	return T(*f)
}

func fromNullType[T any](v T, valid bool) *T {
	if !valid {
		return nil
	}
	return &v
}
