package survey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/metrics"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

const (
	// DefaultInterval is the time between two readings
	DefaultInterval = time.Second

	// ErrorsThreshold defines the number of consecutive failed readings allowed
	ErrorsThreshold = 5
)

// ErrTooManyErrors is returned when the number of consecutive failed readings exceeds the threshold
var ErrTooManyErrors = errors.New("too many consecutive failed readings")

// MagnitudeSource returns one instrument reading
type MagnitudeSource interface {
	ReadMagnitude(ctx context.Context) (float64, error)
}

// WithLogger sets the logger for the sampler
func WithLogger(logger *slog.Logger) func(*Sampler) {
	return func(s *Sampler) {
		s.logger = logger.With(slog.String("component", "sampler"))
	}
}

// WithInterval sets the time between two readings
func WithInterval(d time.Duration) func(*Sampler) {
	return func(s *Sampler) {
		s.interval = d
	}
}

// WithErrorsThreshold sets the threshold for consecutive failed readings
func WithErrorsThreshold(threshold uint8) func(*Sampler) {
	return func(s *Sampler) {
		s.errorsThreshold = threshold
	}
}

// WithTelemetry sets the telemetry provider to use for enriching readings
func WithTelemetry(provider telemetry.Provider) func(*Sampler) {
	return func(s *Sampler) {
		s.telemetry = provider
	}
}

func WithMetrics(m *metrics.Metrics) func(*Sampler) {
	return func(s *Sampler) {
		s.metrics = m
	}
}

// Sampler polls a magnitude source at a fixed interval and pairs each
// reading with the latest telemetry snapshot
type Sampler struct {
	source    MagnitudeSource
	telemetry telemetry.Provider
	metrics   *metrics.Metrics

	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	interval        time.Duration
	errorsThreshold uint8
	now             func() time.Time
	logger          *slog.Logger
}

// NewSampler creates a new Sampler instance with a discard logger
func NewSampler(source MagnitudeSource, options ...func(*Sampler)) *Sampler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Sampler{
		source:          source,
		interval:        DefaultInterval,
		errorsThreshold: ErrorsThreshold,
		now:             time.Now,
		logger:          logger,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// BeginSampling starts taking readings and sends them to the measurements
// channel. The returned channel receives an error if sampling stopped for a
// reason other than Stop or ctx, and is closed when sampling ends.
func (s *Sampler) BeginSampling(ctx context.Context, measurements chan<- MeasurementWithTelemetry) (<-chan error, error) {
	if !s.isSampling.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("sampler is already running")
	}
	if s.interval <= 0 {
		s.isSampling.Store(false)
		return nil, fmt.Errorf("sampling interval must be positive: %s", s.interval)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	samplingStopped := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(samplingStopped)
		defer s.isSampling.Store(false)

		s.logger.Info("starting magnitude sampling...", slog.Duration("interval", s.interval))

		if err := s.run(ctx, measurements); err != nil {
			s.logger.Error(err.Error())
			samplingStopped <- err
		}

		s.logger.Info("magnitude sampling stopped")
	}()

	return samplingStopped, nil
}

func (s *Sampler) run(ctx context.Context, measurements chan<- MeasurementWithTelemetry) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var failures uint8
	for {
		m, err := s.sample(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			failures++
			s.logger.Warn(fmt.Sprintf("error reading magnitude: %s", err.Error()))

			if failures >= s.errorsThreshold {
				return fmt.Errorf("%w: %w", ErrTooManyErrors, err)
			}
		} else {
			failures = 0 // reset counter
		}

		select {
		case measurements <- m:
		case <-ctx.Done():
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// sample takes one reading. A failed reading still yields a measurement,
// without a magnitude.
func (s *Sampler) sample(ctx context.Context) (MeasurementWithTelemetry, error) {
	var m MeasurementWithTelemetry

	if s.telemetry != nil {
		m.Telemetry = s.telemetry.Get().Clone()
	}

	v, err := s.source.ReadMagnitude(ctx)
	m.Timestamp = s.now().UTC()
	if err == nil {
		m.Magnitude = &v
	}

	if s.metrics != nil && ctx.Err() == nil {
		s.metrics.RecordMeasurement(v, err)
	}

	return m, err
}

func (s *Sampler) Stop() {
	if !s.isSampling.Load() {
		return // already stopped
	}

	s.cancel()
	s.wg.Wait()
}

// IsSampling returns true if the sampler is running
func (s *Sampler) IsSampling() bool {
	return s.isSampling.Load()
}
