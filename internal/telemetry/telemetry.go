package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

type Provider interface {
	Get() *Telemetry
}

// Telemetry is a snapshot of the aircraft state reported by the flight controller
type Telemetry struct {
	Timestamp        time.Time `json:"timestamp"`                  // Timestamp of telemetry measurement
	Altitude         *float64  `json:"altitude,omitempty"`         // Altitude above mean sea level in meters
	RelativeAltitude *float64  `json:"relativeAltitude,omitempty"` // Altitude above home in meters
	Roll             *float64  `json:"roll,omitempty"`             // Roll angle in degrees
	Pitch            *float64  `json:"pitch,omitempty"`            // Pitch angle in degrees
	Yaw              *float64  `json:"yaw,omitempty"`              // Yaw angle in degrees
	Latitude         *float64  `json:"latitude,omitempty"`         // GPS latitude in degrees
	Longitude        *float64  `json:"longitude,omitempty"`        // GPS longitude in degrees
	GroundSpeed      *float64  `json:"groundSpeed,omitempty"`      // Ground speed in m/s
	GroundCourse     *float64  `json:"groundCourse,omitempty"`     // Ground course (heading) in degrees
	RadioRSSI        *int64    `json:"radioRSSI,omitempty"`        // Radio link RSSI in dBm
	MissionSeq       *int64    `json:"missionSeq,omitempty"`       // Last mission item reached
}

// Location returns the GPS position and whether both coordinates are known
func (t *Telemetry) Location() (geo.Point, bool) {
	if t == nil || t.Latitude == nil || t.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *t.Latitude, Longitude: *t.Longitude}, true
}

// Clone returns a deep copy that can be modified while other readers hold
// the snapshot
func (t *Telemetry) Clone() *Telemetry {
	if t == nil {
		return nil
	}

	c := *t
	c.Altitude = clonePtr(t.Altitude)
	c.RelativeAltitude = clonePtr(t.RelativeAltitude)
	c.Roll = clonePtr(t.Roll)
	c.Pitch = clonePtr(t.Pitch)
	c.Yaw = clonePtr(t.Yaw)
	c.Latitude = clonePtr(t.Latitude)
	c.Longitude = clonePtr(t.Longitude)
	c.GroundSpeed = clonePtr(t.GroundSpeed)
	c.GroundCourse = clonePtr(t.GroundCourse)
	c.RadioRSSI = clonePtr(t.RadioRSSI)
	c.MissionSeq = clonePtr(t.MissionSeq)
	return &c
}

// Holder keeps the latest snapshot. Writers replace it whole with Update, so
// readers never see a partially updated value.
type Holder struct {
	v atomic.Pointer[Telemetry]
}

// Get implements Provider. It returns nil until the first update.
func (h *Holder) Get() *Telemetry {
	return h.v.Load()
}

// Update applies fn to a copy of the current snapshot, stamps it with ts and
// publishes it. Update must not be called concurrently.
func (h *Holder) Update(ts time.Time, fn func(*Telemetry)) {
	next := h.v.Load().Clone()
	if next == nil {
		next = &Telemetry{}
	}
	fn(next)
	next.Timestamp = ts
	h.v.Store(next)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
