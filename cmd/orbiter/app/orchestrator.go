package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/antenna-survey/internal/flight"
	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/metrics"
	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/storage"
	"github.com/roman-kulish/antenna-survey/internal/survey"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

// FlightController is the part of flight.Controller the orchestrator uses
type FlightController interface {
	telemetry.Provider

	Run(ctx context.Context) error
	Location(ctx context.Context) (geo.Point, error)
	Altitude(ctx context.Context) (float64, error)
	UploadMission(ctx context.Context, m *mission.OrbitMission) (*flight.Plan, error)
	Arm(ctx context.Context) error
	Takeoff(ctx context.Context, altitude float64) error
	StartMission(ctx context.Context) error
	StopMission(ctx context.Context) error
	ResumeMission(ctx context.Context) error
	SetHomeHere(ctx context.Context) error
	GoHome(ctx context.Context) error
	Land(ctx context.Context) error
	MissionProgress() <-chan uint16
}

const interruptTimeout = 30 * time.Second

// WithLogger sets the logger for the orchestrator
func WithLogger(logger *slog.Logger) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics records mission uploads and readings
func WithMetrics(m *metrics.Metrics) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithMaxBatchSize sets the maximum number of readings stored within a
// single database transaction.
func WithMaxBatchSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		if size > 0 {
			o.maxBatchSize = size
		}
	}
}

// WithSessionConfig sets the configuration recorded with the survey session
func WithSessionConfig(config string) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.sessionConfig = &config
	}
}

// WithPauseToggle pauses the started mission on the first value received
// from toggle and resumes it on the next
func WithPauseToggle(toggle <-chan struct{}) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.pauseToggle = toggle
	}
}

// Orchestrator flies one survey: it captures the antenna reference, plans and
// uploads the orbit, then records magnitude readings, enriched with the
// aircraft telemetry, until the last waypoint of the last lap is reached.
type Orchestrator struct {
	flight FlightController
	store  storage.Store
	source survey.MagnitudeSource
	config *Config

	sessionConfig *string
	maxBatchSize  int
	pauseToggle   <-chan struct{}

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(fc FlightController, store storage.Store, source survey.MagnitudeSource, config *Config, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		flight:       fc,
		store:        store,
		source:       source,
		config:       config,
		maxBatchSize: defaultMaxBatchSize,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run flies the survey. It returns nil when the mission completes or ctx is
// cancelled. The autopilot link outlives ctx until the interrupt action, if
// any, has been acknowledged.
func (o *Orchestrator) Run(ctx context.Context) error {
	flightCtx, stopFlight := context.WithCancel(context.WithoutCancel(ctx))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer stopFlight()

	flightErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := o.flight.Run(flightCtx); err != nil {
			flightErr <- err
			cancel()
		}
	}()

	err := o.survey(ctx)
	select {
	case fErr := <-flightErr:
		return errors.Join(err, fErr)
	default:
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (o *Orchestrator) survey(ctx context.Context) error {
	antenna, err := o.captureAntenna(ctx)
	if err != nil {
		return fmt.Errorf("capturing antenna reference: %w", err)
	}
	o.logger.Info("antenna reference set",
		slog.String("location", antenna.Location.String()),
		slog.Float64("elevation", antenna.Elevation))

	m, err := o.planMission(ctx, antenna)
	if err != nil {
		return fmt.Errorf("planning mission: %w", err)
	}

	session := survey.Session{
		Antenna:          antenna.Location,
		AntennaElevation: antenna.Elevation,
		MissionID:        &m.ID,
		Radius:           o.config.Orbit.Radius,
		PointCount:       o.config.Orbit.pointCount(),
		Instrument:       o.config.Sampling.RelayURL,
		Config:           o.sessionConfig,
	}
	if leg := o.config.Orbit.TestLeg; leg != nil {
		session.Radius, session.PointCount = leg.length(), 1
	}
	if err = o.store.CreateSession(ctx, &session); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	if o.config.Orbit.SetHome {
		if err = o.flight.SetHomeHere(ctx); err != nil {
			return fmt.Errorf("setting home: %w", err)
		}
	}

	plan, err := o.flight.UploadMission(ctx, m)
	if o.metrics != nil {
		o.metrics.RecordMissionUpload(err)
	}
	if err != nil {
		return fmt.Errorf("uploading mission: %w", err)
	}
	if err = o.store.StoreMission(ctx, session.ID, m); err != nil {
		return fmt.Errorf("storing mission: %w", err)
	}

	if err = o.launch(ctx); err != nil {
		return err
	}

	completed, err := o.sample(ctx, session.ID, plan)
	if !completed && o.config.Orbit.Start {
		err = errors.Join(err, o.interrupt(ctx))
	}
	return err
}

// interrupt sends the configured action to a mission that did not finish
func (o *Orchestrator) interrupt(ctx context.Context) error {
	action := o.config.Orbit.OnInterrupt

	var send func(context.Context) error
	switch action {
	case InterruptPause:
		send = o.flight.StopMission
	case InterruptGoHome:
		send = o.flight.GoHome
	case InterruptLand:
		send = o.flight.Land
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interruptTimeout)
	defer cancel()

	o.logger.Warn("survey interrupted", slog.String("action", string(action)))
	if err := send(ctx); err != nil {
		return fmt.Errorf("sending %s after interruption: %w", action, err)
	}
	return nil
}

// captureAntenna resolves the antenna location and elevation. Values missing
// from the configuration are queried from the autopilot concurrently.
func (o *Orchestrator) captureAntenna(ctx context.Context) (mission.AntennaReference, error) {
	cfg := &o.config.Antenna
	builder := mission.NewAntennaReferenceBuilder(cfg.minRadius())

	if cfg.Location != nil {
		builder.SetLocation(*cfg.Location)
	}
	if cfg.Elevation != nil {
		builder.SetElevation(*cfg.Elevation)
	}
	if builder.Ready() {
		return builder.Build()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.FixTimeout.Or(defaultFixTimeout))
	defer cancel()

	o.logger.Info("waiting for position fix...")

	var wg sync.WaitGroup
	errs := make([]error, 2)

	if cfg.Location == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := o.flight.Location(ctx)
			if err != nil {
				errs[0] = fmt.Errorf("location: %w", err)
				return
			}
			builder.SetLocation(p)
		}()
	}
	if cfg.Elevation == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alt, err := o.flight.Altitude(ctx)
			if err != nil {
				errs[1] = fmt.Errorf("altitude: %w", err)
				return
			}
			builder.SetElevation(alt)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return mission.AntennaReference{}, err
	}
	return builder.Build()
}

func (o *Orchestrator) planMission(ctx context.Context, antenna mission.AntennaReference) (*mission.OrbitMission, error) {
	cfg := &o.config.Orbit

	planner, err := mission.NewPlanner(antenna,
		mission.WithSpeedConfig(cfg.speed()),
		mission.WithRingOptions(cfg.ringOptions()...),
		mission.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	var m *mission.OrbitMission
	if cfg.TestLeg != nil {
		m, err = planner.TestLegMission(cfg.TestLeg.North, cfg.TestLeg.East)
	} else {
		m, err = planner.OrbitMission(cfg.Radius, cfg.pointCount())
	}
	if err != nil {
		return nil, err
	}

	if cfg.ReturnToOperator {
		p, err := o.flight.Location(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading current location: %w", err)
		}
		alt, err := o.flight.Altitude(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading current altitude: %w", err)
		}
		if err = m.AppendCurrentPositionWaypoint(p, alt, mission.ManualCornerRadius); err != nil {
			return nil, err
		}
	}

	o.logger.Info("mission planned",
		slog.String("mission", m.ID.String()),
		slog.Int("waypoints", m.Len()),
		slog.String("radius", humanize.FtoaWithDigits(cfg.Radius, 2)+" m"))

	return m, nil
}

func (o *Orchestrator) launch(ctx context.Context) error {
	cfg := &o.config.Orbit

	if cfg.TakeoffAltitude > 0 {
		if err := o.flight.Arm(ctx); err != nil {
			return fmt.Errorf("arming: %w", err)
		}
		if err := o.flight.Takeoff(ctx, cfg.TakeoffAltitude); err != nil {
			return fmt.Errorf("taking off: %w", err)
		}
	}

	if cfg.Start {
		if err := o.flight.StartMission(ctx); err != nil {
			return fmt.Errorf("starting mission: %w", err)
		}
		o.logger.Info("mission started")
	}
	return nil
}

// sample records readings until the last survey waypoint has been reached
// once per lap, the sampler fails or ctx is done. Without Start the mission
// is flown manually and only ctx ends the survey. It reports whether the
// mission was completed.
func (o *Orchestrator) sample(ctx context.Context, sessionID uuid.UUID, plan *flight.Plan) (bool, error) {
	sampler := survey.NewSampler(o.source,
		survey.WithLogger(o.logger),
		survey.WithInterval(o.config.Sampling.Interval.Or(survey.DefaultInterval)),
		survey.WithErrorsThreshold(o.errorsThreshold()),
		survey.WithTelemetry(o.flight),
		survey.WithMetrics(o.metrics),
	)

	measurements := make(chan survey.MeasurementWithTelemetry, o.maxBatchSize)
	done, err := sampler.BeginSampling(ctx, measurements)
	if err != nil {
		return false, fmt.Errorf("starting sampler: %w", err)
	}

	stored := make(chan error, 1)
	go func() {
		stored <- o.storeMeasurements(sessionID, measurements)
	}()

	progress := o.flight.MissionProgress()
	laps := max(plan.Laps, 1)
	var samplerErr error
	var completed, paused bool
	var lap int

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case seq := <-progress:
			o.logger.Info("waypoint reached", slog.Int("seq", int(seq)))
			if seq < plan.LastWaypoint {
				continue
			}
			if seq == plan.LastWaypoint {
				lap++
				o.logger.Info("lap complete", slog.Int("lap", lap), slog.Int("laps", laps))
			}
			if seq > plan.LastWaypoint || lap >= laps {
				o.logger.Info("survey complete")
				completed = true
				break loop
			}

		case <-o.pauseToggle:
			paused = o.togglePause(ctx, paused)

		case err, ok := <-done:
			if ok {
				samplerErr = err
			}
			break loop
		}
	}

	sampler.Stop()
	close(measurements)

	return completed, errors.Join(samplerErr, <-stored)
}

// togglePause pauses or resumes a started mission and returns the new state.
// A failed command leaves the state unchanged.
func (o *Orchestrator) togglePause(ctx context.Context, paused bool) bool {
	if !o.config.Orbit.Start {
		o.logger.Warn("mission was not started, ignoring pause request")
		return paused
	}

	send, action, done := o.flight.StopMission, "pause", "mission paused"
	if paused {
		send, action, done = o.flight.ResumeMission, "resume", "mission resumed"
	}
	if err := send(ctx); err != nil {
		o.logger.Error(fmt.Sprintf("failed to %s mission: %s", action, err.Error()))
		return paused
	}

	o.logger.Info(done)
	return !paused
}

// storeMeasurements writes readings in batches until the channel is closed.
// Readings taken with the same telemetry snapshot share one telemetry row.
func (o *Orchestrator) storeMeasurements(sessionID uuid.UUID, measurements <-chan survey.MeasurementWithTelemetry) error {
	ctx := context.Background()

	var batch []survey.MeasurementWithTelemetry
	var errs []error

	flush := func() {
		for _, group := range groupByTelemetry(batch) {
			if err := o.storeGroup(ctx, sessionID, group); err != nil {
				o.logger.Error(err.Error())
				errs = append(errs, err)
			}
		}
		batch = batch[:0]
	}

	for m := range measurements {
		batch = append(batch, m)
		if len(batch) >= o.maxBatchSize || len(measurements) == 0 {
			flush()
		}
	}
	if len(batch) > 0 {
		flush()
	}

	if len(errs) > 0 {
		return fmt.Errorf("storing measurements: %w", errors.Join(errs...))
	}
	return nil
}

func (o *Orchestrator) storeGroup(ctx context.Context, sessionID uuid.UUID, group []survey.MeasurementWithTelemetry) error {
	var telemetryID *int64
	if t := group[0].Telemetry; t != nil {
		id, err := o.store.StoreTelemetry(ctx, sessionID, t)
		if err != nil {
			o.logger.Error(err.Error())
		} else {
			telemetryID = &id
		}
	}

	readings := make([]survey.Measurement, len(group))
	for i, m := range group {
		readings[i] = m.Measurement
	}

	for chunk := range slices.Chunk(readings, o.maxBatchSize) {
		if err := o.store.StoreMeasurements(ctx, sessionID, telemetryID, chunk...); err != nil {
			return err
		}
	}
	return nil
}

// groupByTelemetry splits readings into runs taken with the same telemetry
// snapshot. Snapshots are compared by timestamp.
func groupByTelemetry(batch []survey.MeasurementWithTelemetry) [][]survey.MeasurementWithTelemetry {
	var groups [][]survey.MeasurementWithTelemetry

	start := 0
	for i := 1; i <= len(batch); i++ {
		if i < len(batch) && sameSnapshot(batch[start].Telemetry, batch[i].Telemetry) {
			continue
		}
		groups = append(groups, batch[start:i])
		start = i
	}
	return groups
}

func sameSnapshot(a, b *telemetry.Telemetry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Timestamp.Equal(b.Timestamp)
}

func (o *Orchestrator) errorsThreshold() uint8 {
	if o.config.Sampling.ErrorsThreshold == 0 {
		return survey.ErrorsThreshold
	}
	return o.config.Sampling.ErrorsThreshold
}
