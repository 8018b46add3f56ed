package mission

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

// ManualCornerRadius is the corner radius used for waypoints captured from
// the aircraft's current position
const ManualCornerRadius = 3.0

// OrbitMission is a waypoint flight plan with a fixed point of interest.
//
// A mission is not safe for concurrent use. Once Lock is called, usually by
// the uploader, the waypoint list can no longer change.
type OrbitMission struct {
	ID              uuid.UUID  `json:"id"`
	Waypoints       []Waypoint `json:"waypoints"`
	PointOfInterest geo.Point  `json:"pointOfInterest"`

	SpeedConfig

	locked bool
}

// AssembleMission bundles waypoints with flight behaviour settings. The
// waypoints are copied so the caller may reuse its slice.
func AssembleMission(waypoints []Waypoint, pointOfInterest geo.Point, cfg SpeedConfig) (*OrbitMission, error) {
	if len(waypoints) == 0 {
		return nil, ErrEmptyMission
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := pointOfInterest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: point of interest: %w", ErrInvalidParameter, err)
	}
	for i, wp := range waypoints {
		if err := wp.validate(); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
	}

	return &OrbitMission{
		ID:              uuid.New(),
		Waypoints:       slices.Clone(waypoints),
		PointOfInterest: pointOfInterest,
		SpeedConfig:     cfg,
	}, nil
}

// AppendCurrentPositionWaypoint adds a waypoint at the aircraft's current
// position to the end of the mission.
func (m *OrbitMission) AppendCurrentPositionWaypoint(location geo.Point, altitude, cornerRadius float64) error {
	if m.locked {
		return ErrMissionLocked
	}

	wp := Waypoint{
		Location:     location,
		Altitude:     altitude,
		CornerRadius: cornerRadius,
	}
	if err := wp.validate(); err != nil {
		return err
	}

	m.Waypoints = append(m.Waypoints, wp)
	return nil
}

// Lock freezes the waypoint list
func (m *OrbitMission) Lock() {
	m.locked = true
}

func (m *OrbitMission) Locked() bool {
	return m.locked
}

// Len returns the number of waypoints
func (m *OrbitMission) Len() int {
	return len(m.Waypoints)
}
