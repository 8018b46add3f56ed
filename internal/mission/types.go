package mission

import (
	"fmt"
	"math"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

const (
	FinishedNoAction         FinishedAction = "noAction"
	FinishedGoHome           FinishedAction = "goHome"
	FinishedAutoLand         FinishedAction = "autoLand"
	FinishedGoFirstWaypoint  FinishedAction = "goFirstWaypoint"
	FinishedContinueUntilEnd FinishedAction = "continueUntilEnd"

	HeadingAuto                  HeadingMode = "auto"
	HeadingInitialDirection      HeadingMode = "usingInitialDirection"
	HeadingControlledByRemote    HeadingMode = "controlledByRemote"
	HeadingWaypointHeading       HeadingMode = "usingWaypointHeading"
	HeadingTowardPointOfInterest HeadingMode = "towardPointOfInterest"

	PathNormal PathMode = "normal"
	PathCurved PathMode = "curved"

	GotoFirstSafely       GotoFirstWaypointMode = "safely"
	GotoFirstPointToPoint GotoFirstWaypointMode = "pointToPoint"
)

// Flight speed limits in m/s
const (
	MaxFlightSpeedLimit = 15.0

	DefaultMaxFlightSpeed  = 15.0
	DefaultAutoFlightSpeed = 10.0
)

var (
	validFinishedActions = map[FinishedAction]struct{}{
		FinishedNoAction:         {},
		FinishedGoHome:           {},
		FinishedAutoLand:         {},
		FinishedGoFirstWaypoint:  {},
		FinishedContinueUntilEnd: {},
	}

	validHeadingModes = map[HeadingMode]struct{}{
		HeadingAuto:                  {},
		HeadingInitialDirection:      {},
		HeadingControlledByRemote:    {},
		HeadingWaypointHeading:       {},
		HeadingTowardPointOfInterest: {},
	}

	validPathModes = map[PathMode]struct{}{
		PathNormal: {},
		PathCurved: {},
	}

	validGotoFirstModes = map[GotoFirstWaypointMode]struct{}{
		GotoFirstSafely:       {},
		GotoFirstPointToPoint: {},
	}
)

// FinishedAction is what the aircraft does after the last waypoint
type FinishedAction string

// HeadingMode controls where the aircraft nose points while flying the mission
type HeadingMode string

// PathMode selects straight legs or legs rounded by the waypoint corner radius
type PathMode string

// GotoFirstWaypointMode controls how the aircraft approaches the first waypoint
type GotoFirstWaypointMode string

// Waypoint is a single commanded stop of a mission
type Waypoint struct {
	Location     geo.Point `yaml:"location" json:"location"`
	Altitude     float64   `yaml:"altitude" json:"altitude"`         // Altitude in meters relative to home
	CornerRadius float64   `yaml:"cornerRadius" json:"cornerRadius"` // Turn smoothing radius in meters
}

func (w Waypoint) validate() error {
	if err := w.Location.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if !isFinite(w.Altitude) {
		return fmt.Errorf("%w: altitude is not finite", ErrInvalidParameter)
	}
	if !isFinite(w.CornerRadius) || w.CornerRadius < 0 {
		return fmt.Errorf("%w: corner radius must not be negative: %f", ErrInvalidParameter, w.CornerRadius)
	}
	return nil
}

// SpeedConfig bundles the flight behaviour parameters of a mission
type SpeedConfig struct {
	MaxFlightSpeed        float64               `yaml:"maxFlightSpeed" json:"maxFlightSpeed"`   // m/s
	AutoFlightSpeed       float64               `yaml:"autoFlightSpeed" json:"autoFlightSpeed"` // m/s
	FinishedAction        FinishedAction        `yaml:"finishedAction" json:"finishedAction"`
	HeadingMode           HeadingMode           `yaml:"headingMode" json:"headingMode"`
	PathMode              PathMode              `yaml:"pathMode" json:"pathMode"`
	GotoFirstWaypointMode GotoFirstWaypointMode `yaml:"gotoFirstWaypointMode" json:"gotoFirstWaypointMode"`
	RepeatTimes           int                   `yaml:"repeatTimes" json:"repeatTimes"`
}

// DefaultSpeedConfig returns the configuration used for antenna orbits:
// camera toward the antenna, curved path, no action when finished.
func DefaultSpeedConfig() SpeedConfig {
	return SpeedConfig{
		MaxFlightSpeed:        DefaultMaxFlightSpeed,
		AutoFlightSpeed:       DefaultAutoFlightSpeed,
		FinishedAction:        FinishedNoAction,
		HeadingMode:           HeadingTowardPointOfInterest,
		PathMode:              PathCurved,
		GotoFirstWaypointMode: GotoFirstSafely,
	}
}

func (c SpeedConfig) Validate() error {
	if !isFinite(c.MaxFlightSpeed) || c.MaxFlightSpeed <= 0 || c.MaxFlightSpeed > MaxFlightSpeedLimit {
		return fmt.Errorf("%w: max flight speed must be in (0, %.0f]: %f", ErrInvalidParameter, MaxFlightSpeedLimit, c.MaxFlightSpeed)
	}
	if !isFinite(c.AutoFlightSpeed) || c.AutoFlightSpeed < 0 {
		return fmt.Errorf("%w: auto flight speed must not be negative: %f", ErrInvalidParameter, c.AutoFlightSpeed)
	}
	if c.AutoFlightSpeed > c.MaxFlightSpeed {
		return fmt.Errorf("%w: auto flight speed %f exceeds max flight speed %f", ErrInvalidParameter, c.AutoFlightSpeed, c.MaxFlightSpeed)
	}
	if _, ok := validFinishedActions[c.FinishedAction]; !ok {
		return fmt.Errorf("%w: unknown finished action: %q", ErrInvalidParameter, c.FinishedAction)
	}
	if _, ok := validHeadingModes[c.HeadingMode]; !ok {
		return fmt.Errorf("%w: unknown heading mode: %q", ErrInvalidParameter, c.HeadingMode)
	}
	if _, ok := validPathModes[c.PathMode]; !ok {
		return fmt.Errorf("%w: unknown path mode: %q", ErrInvalidParameter, c.PathMode)
	}
	if _, ok := validGotoFirstModes[c.GotoFirstWaypointMode]; !ok {
		return fmt.Errorf("%w: unknown goto first waypoint mode: %q", ErrInvalidParameter, c.GotoFirstWaypointMode)
	}
	if c.RepeatTimes < 0 {
		return fmt.Errorf("%w: repeat times must not be negative: %d", ErrInvalidParameter, c.RepeatTimes)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
