package app

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/config"
	"github.com/roman-kulish/antenna-survey/internal/flight"
	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/mission"
)

const (
	defaultFixTimeout   = 2 * time.Minute
	defaultMinRadius    = 5.0
	defaultPointCount   = 8
	defaultDataDir      = "data"
	defaultMaxBatchSize = 100
)

// Config represents the main application configuration
type Config struct {
	Settings Settings          `yaml:"settings"`
	Link     flight.LinkConfig `yaml:"link"`
	Antenna  AntennaConfig     `yaml:"antenna"`
	Orbit    OrbitConfig       `yaml:"orbit"`
	Sampling SamplingConfig    `yaml:"sampling"`
	Storage  StorageConfig     `yaml:"storage"`
	Metrics  MetricsConfig     `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// AntennaConfig tells where the antenna is. Either value may be omitted, in
// which case it is captured from the aircraft's position when the program
// starts, so the aircraft should be sitting on or hovering above the antenna.
type AntennaConfig struct {
	Location   *geo.Point          `yaml:"location"`   // Antenna location (default: live position)
	Elevation  *float64            `yaml:"elevation"`  // Survey altitude above home in meters (default: live relative altitude)
	MinRadius  *float64            `yaml:"minRadius"`  // Smallest orbit radius allowed in meters (default: 5)
	FixTimeout config.TimeDuration `yaml:"fixTimeout"` // How long to wait for a position fix (default: 2m)
}

// OrbitConfig describes the mission flown around the antenna
type OrbitConfig struct {
	Radius           float64              `yaml:"radius"`           // Orbit radius in meters
	PointCount       int                  `yaml:"pointCount"`       // Number of ring waypoints (default: 8)
	CornerRadius     *float64             `yaml:"cornerRadius"`     // Ring waypoint corner radius in meters (default: 1)
	LegacyConversion bool                 `yaml:"legacyConversion"` // Use the fixed 1e-5 degrees per meter conversion
	Speed            *mission.SpeedConfig `yaml:"speed"`            // Flight behaviour (default: mission.DefaultSpeedConfig)
	HomeItem         *bool                `yaml:"homeItem"`         // Upload a home placeholder at sequence 0 (default: true)
	ReturnToOperator bool                 `yaml:"returnToOperator"` // Append a waypoint at the starting position
	TakeoffAltitude  float64              `yaml:"takeoffAltitude"`  // Arm and take off to this altitude before starting, 0 to skip
	Start            bool                 `yaml:"start"`            // Start the mission after upload
	SetHome          bool                 `yaml:"setHome"`          // Make the current position home before upload
	OnInterrupt      InterruptAction      `yaml:"onInterrupt"`      // What a started mission does when the survey ends early
	TestLeg          *TestLegConfig       `yaml:"testLeg"`          // Fly a single leg from above the antenna instead of the orbit
}

// TestLegConfig is the end of a test leg, in meters from the antenna. A one
// meter leg east checks heading and scale before a full orbit is flown.
type TestLegConfig struct {
	North float64 `yaml:"north"`
	East  float64 `yaml:"east"`
}

func (c *TestLegConfig) Validate() error {
	if math.IsNaN(c.North) || math.IsInf(c.North, 0) || math.IsNaN(c.East) || math.IsInf(c.East, 0) {
		return fmt.Errorf("app.TestLegConfig: offset must be finite")
	}
	if c.North == 0 && c.East == 0 {
		return fmt.Errorf("app.TestLegConfig: offset must not be zero")
	}
	return nil
}

func (c *TestLegConfig) length() float64 {
	return math.Hypot(c.North, c.East)
}

// InterruptAction is sent to the autopilot when a started survey ends before
// the last waypoint, on a signal or after too many failed readings
type InterruptAction string

const (
	InterruptNone   InterruptAction = "none"
	InterruptPause  InterruptAction = "pause"
	InterruptGoHome InterruptAction = "goHome"
	InterruptLand   InterruptAction = "land"
)

// SamplingConfig describes how magnitude readings are taken
type SamplingConfig struct {
	RelayURL        string              `yaml:"relayURL"`        // Base URL of the relay, e.g. http://127.0.0.1:8090
	Interval        config.TimeDuration `yaml:"interval"`        // Time between two readings (default: 1s)
	RequestTimeout  config.TimeDuration `yaml:"requestTimeout"`  // Relay request timeout (default: 10s)
	ErrorsThreshold uint8               `yaml:"errorsThreshold"` // Consecutive failed readings allowed (default: 5)
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoadConfig reads and validates the configuration file at path
func LoadConfig(path string) (*Config, error) {
	return config.Load[Config](path)
}

func (c *Config) Validate() error {
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if err := c.Antenna.Validate(); err != nil {
		return err
	}
	if err := c.Orbit.Validate(); err != nil {
		return err
	}
	if err := c.Sampling.Validate(); err != nil {
		return err
	}
	if c.Storage.MaxBatchSize < 0 {
		return fmt.Errorf("app.StorageConfig: max batch size must not be negative")
	}
	if r := c.Orbit.Radius; r < c.Antenna.minRadius() {
		return fmt.Errorf("app.OrbitConfig: radius %f is below the minimum radius %f", r, c.Antenna.minRadius())
	}
	return nil
}

func (c *AntennaConfig) Validate() error {
	if c.Location != nil {
		if err := c.Location.Validate(); err != nil {
			return fmt.Errorf("app.AntennaConfig: %w", err)
		}
	}
	if c.Elevation != nil && (math.IsNaN(*c.Elevation) || math.IsInf(*c.Elevation, 0)) {
		return fmt.Errorf("app.AntennaConfig: elevation must be finite")
	}
	if c.MinRadius != nil && *c.MinRadius < 0 {
		return fmt.Errorf("app.AntennaConfig: min radius must not be negative")
	}
	if err := c.FixTimeout.Validate(); err != nil {
		return fmt.Errorf("app.AntennaConfig: invalid fix timeout: %w", err)
	}
	return nil
}

func (c *AntennaConfig) minRadius() float64 {
	if c.MinRadius == nil {
		return defaultMinRadius
	}
	return *c.MinRadius
}

func (c *OrbitConfig) Validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("app.OrbitConfig: radius must be positive")
	}
	if c.PointCount != 0 && c.PointCount < mission.MinRingPoints {
		return fmt.Errorf("app.OrbitConfig: point count must be at least %d", mission.MinRingPoints)
	}
	if c.CornerRadius != nil && *c.CornerRadius < 0 {
		return fmt.Errorf("app.OrbitConfig: corner radius must not be negative")
	}
	if c.Speed != nil {
		if err := c.Speed.Validate(); err != nil {
			return fmt.Errorf("app.OrbitConfig: %w", err)
		}
	}
	if c.TakeoffAltitude < 0 {
		return fmt.Errorf("app.OrbitConfig: takeoff altitude must not be negative")
	}
	if c.TestLeg != nil {
		if err := c.TestLeg.Validate(); err != nil {
			return err
		}
	}
	switch c.OnInterrupt {
	case "", InterruptNone, InterruptPause, InterruptGoHome, InterruptLand:
	default:
		return fmt.Errorf("app.OrbitConfig: unknown interrupt action %q", c.OnInterrupt)
	}
	return nil
}

func (c *OrbitConfig) pointCount() int {
	if c.PointCount == 0 {
		return defaultPointCount
	}
	return c.PointCount
}

func (c *OrbitConfig) speed() mission.SpeedConfig {
	if c.Speed == nil {
		return mission.DefaultSpeedConfig()
	}
	return *c.Speed
}

func (c *OrbitConfig) homeItem() bool {
	return c.HomeItem == nil || *c.HomeItem
}

func (c *OrbitConfig) ringOptions() []mission.RingOption {
	var opts []mission.RingOption
	if c.CornerRadius != nil {
		opts = append(opts, mission.WithCornerRadius(*c.CornerRadius))
	}
	if c.LegacyConversion {
		opts = append(opts, mission.WithConverter(geo.LegacyConverter))
	}
	return opts
}

func (c *SamplingConfig) Validate() error {
	if c.RelayURL == "" {
		return fmt.Errorf("app.SamplingConfig: relay URL is required")
	}
	if _, err := url.ParseRequestURI(c.RelayURL); err != nil {
		return fmt.Errorf("app.SamplingConfig: invalid relay URL: %w", err)
	}
	if err := c.Interval.Validate(); err != nil {
		return fmt.Errorf("app.SamplingConfig: invalid interval: %w", err)
	}
	if err := c.RequestTimeout.Validate(); err != nil {
		return fmt.Errorf("app.SamplingConfig: invalid request timeout: %w", err)
	}
	return nil
}
