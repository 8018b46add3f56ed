package survey

import (
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

// Session represents a single survey flight around one antenna.
// Each session captures where the antenna was and which mission was flown.
type Session struct {
	ID               uuid.UUID  `json:"ID"`                        // Unique identifier for the session
	StartTime        time.Time  `json:"startTime"`                 // When the survey began
	Antenna          geo.Point  `json:"antenna"`                   // Antenna location
	AntennaElevation float64    `json:"antennaElevation"`          // Survey altitude in meters above home
	MissionID        *uuid.UUID `json:"missionID,omitempty"`       // Mission flown, if any
	Radius           float64    `json:"radius"`                    // Orbit radius in meters
	PointCount       int        `json:"pointCount"`                // Orbit segments
	Instrument       string     `json:"instrument"`                // Instrument resource or relay address
	Config           *string    `json:"config,string,omitempty"`   // Optional run configuration in JSON format
}

// Measurement is a single magnitude reading
type Measurement struct {
	Timestamp time.Time `json:"timestamp"`           // When the reading was taken
	Magnitude *float64  `json:"magnitude,omitempty"` // Marker amplitude in dBm (nil if the reading failed)
}

// MeasurementWithTelemetry associates a reading with the aircraft's state
// at the time it was taken
type MeasurementWithTelemetry struct {
	Measurement `json:"measurement"`
	Telemetry   *telemetry.Telemetry `json:"telemetry,omitempty"` // Drone telemetry data, if exists
}

// Location returns where the reading was taken, if known
func (m MeasurementWithTelemetry) Location() (geo.Point, bool) {
	return m.Telemetry.Location()
}
