package mission

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

// PlannerOption configures a Planner
type PlannerOption func(*Planner)

// WithSpeedConfig sets the flight behaviour applied to generated missions
func WithSpeedConfig(cfg SpeedConfig) PlannerOption {
	return func(p *Planner) {
		p.speed = cfg
	}
}

// WithRingOptions sets options passed to every ring generation
func WithRingOptions(opts ...RingOption) PlannerOption {
	return func(p *Planner) {
		p.ringOpts = append(p.ringOpts, opts...)
	}
}

func WithLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = logger
	}
}

// Planner generates missions around a known antenna
type Planner struct {
	antenna  AntennaReference
	speed    SpeedConfig
	ringOpts []RingOption
	logger   *slog.Logger
}

func NewPlanner(antenna AntennaReference, opts ...PlannerOption) (*Planner, error) {
	if !antenna.IsSet() {
		return nil, ErrAntennaNotSet
	}

	p := &Planner{
		antenna: antenna,
		speed:   DefaultSpeedConfig(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.speed.Validate(); err != nil {
		return nil, fmt.Errorf("speed config: %w", err)
	}
	return p, nil
}

func (p *Planner) Antenna() AntennaReference {
	return p.antenna
}

// OrbitMission returns a closed ring mission around the antenna with the
// camera pointed at it
func (p *Planner) OrbitMission(radius float64, pointCount int) (*OrbitMission, error) {
	if radius < p.antenna.MinRadius {
		return nil, fmt.Errorf("%w: radius %.2fm is below the minimum of %.2fm", ErrInvalidParameter, radius, p.antenna.MinRadius)
	}

	waypoints, err := GenerateRingWaypoints(p.antenna.Location, radius, p.antenna.Elevation, pointCount, p.ringOpts...)
	if err != nil {
		return nil, fmt.Errorf("generating ring: %w", err)
	}

	m, err := AssembleMission(waypoints, p.antenna.Location, p.speed)
	if err != nil {
		return nil, fmt.Errorf("assembling orbit mission: %w", err)
	}

	p.logger.Debug("orbit mission generated",
		slog.String("id", m.ID.String()),
		slog.Float64("radius", radius),
		slog.Int("waypoints", m.Len()))

	return m, nil
}

// TestLegMission returns a two waypoint mission: directly above the antenna,
// then the given offset from it, both at the antenna elevation. It is used to
// check heading and scale before committing to a full orbit.
func (p *Planner) TestLegMission(north, east float64) (*OrbitMission, error) {
	if !isFinite(north) || !isFinite(east) || (north == 0 && east == 0) {
		return nil, fmt.Errorf("%w: test leg offset must be finite and non-zero", ErrInvalidParameter)
	}

	o := ringOptions{cornerRadius: DefaultCornerRadius}
	for _, opt := range p.ringOpts {
		opt(&o)
	}

	end, err := geo.Offset(p.antenna.Location, north, east, o.converter)
	if err != nil {
		return nil, fmt.Errorf("%w: test leg offset: %w", ErrInvalidParameter, err)
	}

	waypoints := []Waypoint{
		{Location: p.antenna.Location, Altitude: p.antenna.Elevation, CornerRadius: o.cornerRadius},
		{Location: end, Altitude: p.antenna.Elevation, CornerRadius: o.cornerRadius},
	}

	m, err := AssembleMission(waypoints, p.antenna.Location, p.speed)
	if err != nil {
		return nil, fmt.Errorf("assembling test leg mission: %w", err)
	}

	p.logger.Debug("test leg mission generated",
		slog.String("id", m.ID.String()),
		slog.Float64("north", north),
		slog.Float64("east", east))

	return m, nil
}
