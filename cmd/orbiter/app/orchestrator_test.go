package app

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/config"
	"github.com/roman-kulish/antenna-survey/internal/flight"
	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/storage"
	"github.com/roman-kulish/antenna-survey/internal/survey"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

var antennaLocation = geo.Point{Latitude: -33.8568, Longitude: 151.2153}

type fakeFlight struct {
	holder   telemetry.Holder
	progress chan uint16

	mu       sync.Mutex
	calls    []string
	uploaded *mission.OrbitMission
	plan     *flight.Plan

	uploadErr error
	hold      bool // Never reach the last waypoint
	laps      int  // Laps reported after start, 0 for every lap of the plan
}

func newFakeFlight() *fakeFlight {
	f := &fakeFlight{progress: make(chan uint16, 4)}
	f.holder.Update(time.Now(), func(t *telemetry.Telemetry) {
		t.Latitude = telemetry.Ptr(antennaLocation.Latitude)
		t.Longitude = telemetry.Ptr(antennaLocation.Longitude)
		t.RelativeAltitude = telemetry.Ptr(15.0)
	})
	return f
}

func (f *fakeFlight) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeFlight) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFlight) Get() *telemetry.Telemetry { return f.holder.Get() }

func (f *fakeFlight) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeFlight) Location(context.Context) (geo.Point, error) {
	f.record("location")
	return antennaLocation, nil
}

func (f *fakeFlight) Altitude(context.Context) (float64, error) {
	f.record("altitude")
	return 15, nil
}

func (f *fakeFlight) UploadMission(_ context.Context, m *mission.OrbitMission) (*flight.Plan, error) {
	f.record("upload")
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}

	plan, err := flight.BuildPlan(m, true)
	if err != nil {
		return nil, err
	}
	m.Lock()

	f.mu.Lock()
	f.uploaded, f.plan = m, plan
	f.mu.Unlock()
	return plan, nil
}

func (f *fakeFlight) Arm(context.Context) error { f.record("arm"); return nil }

func (f *fakeFlight) Takeoff(context.Context, float64) error { f.record("takeoff"); return nil }

func (f *fakeFlight) StartMission(context.Context) error {
	f.record("start")

	f.mu.Lock()
	last, laps := f.plan.LastWaypoint, f.plan.Laps
	f.mu.Unlock()

	if f.hold {
		return nil
	}
	if f.laps > 0 {
		laps = f.laps
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		for range laps {
			f.progress <- last - 1
			f.progress <- last
		}
	}()
	return nil
}

func (f *fakeFlight) StopMission(context.Context) error { f.record("pause"); return nil }

func (f *fakeFlight) ResumeMission(context.Context) error { f.record("resume"); return nil }

func (f *fakeFlight) SetHomeHere(context.Context) error { f.record("setHome"); return nil }

func (f *fakeFlight) GoHome(context.Context) error { f.record("goHome"); return nil }

func (f *fakeFlight) Land(context.Context) error { f.record("land"); return nil }

func (f *fakeFlight) MissionProgress() <-chan uint16 { return f.progress }

type fakeSource struct {
	reads atomic.Int32
}

func (s *fakeSource) ReadMagnitude(context.Context) (float64, error) {
	return -40 - float64(s.reads.Add(1)), nil
}

func testConfig() *Config {
	return &Config{
		Antenna: AntennaConfig{},
		Orbit: OrbitConfig{
			Radius:          20,
			PointCount:      6,
			TakeoffAltitude: 15,
			Start:           true,
		},
		Sampling: SamplingConfig{
			RelayURL: "http://127.0.0.1:8090",
			Interval: config.NewTimeDuration(10 * time.Millisecond),
		},
	}
}

func TestOrchestrator_Run(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
	defer store.Close()

	fc := newFakeFlight()
	source := &fakeSource{}
	cfg := testConfig()

	o := NewOrchestrator(fc, store, source, cfg, WithMaxBatchSize(4), WithSessionConfig(`{"test":true}`))
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantCalls := []string{"upload", "arm", "takeoff", "start"}
	calls := fc.Calls()
	if len(calls) < len(wantCalls) {
		t.Fatalf("calls = %v, want suffix %v", calls, wantCalls)
	}
	tail := calls[len(calls)-len(wantCalls):]
	for i := range wantCalls {
		if tail[i] != wantCalls[i] {
			t.Fatalf("calls = %v, want suffix %v", calls, wantCalls)
		}
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	sess := sessions[0]
	if sess.Antenna != antennaLocation || sess.AntennaElevation != 15 {
		t.Errorf("session antenna = %v at %v", sess.Antenna, sess.AntennaElevation)
	}
	if sess.MissionID == nil || *sess.MissionID != fc.uploaded.ID {
		t.Errorf("session mission = %v, want %s", sess.MissionID, fc.uploaded.ID)
	}

	waypoints, err := store.Waypoints(ctx, fc.uploaded.ID)
	if err != nil {
		t.Fatalf("Waypoints() error = %v", err)
	}
	if want := cfg.Orbit.PointCount + 1; len(waypoints) != want {
		t.Errorf("got %d waypoints, want %d", len(waypoints), want)
	}

	r, err := store.ReadMeasurements(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ReadMeasurements() error = %v", err)
	}
	defer r.Close()

	readings, err := storage.ReadAll(ctx, r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	// A reading in flight when the survey ends is dropped
	if n := int32(len(readings)); n > source.reads.Load() || n < source.reads.Load()-1 {
		t.Errorf("stored %d readings, source was read %d times", n, source.reads.Load())
	}
	for i, m := range readings {
		if m.Magnitude == nil {
			t.Errorf("reading %d has no magnitude", i)
		}
		if _, ok := m.Location(); !ok {
			t.Errorf("reading %d has no location", i)
		}
	}
}

func TestOrchestrator_ConfiguredAntenna(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
	defer store.Close()

	fc := newFakeFlight()
	fc.uploadErr = flight.ErrMissionRejected

	location := geo.Point{Latitude: 51.5, Longitude: -0.12}
	elevation := 30.0
	cfg := testConfig()
	cfg.Antenna.Location = &location
	cfg.Antenna.Elevation = &elevation

	o := NewOrchestrator(fc, store, &fakeSource{}, cfg)
	err := o.Run(ctx)
	if !errors.Is(err, flight.ErrMissionRejected) {
		t.Fatalf("Run() error = %v, want ErrMissionRejected", err)
	}

	for _, call := range fc.Calls() {
		if call == "location" || call == "altitude" {
			t.Errorf("autopilot was queried for %s although the antenna is configured", call)
		}
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].Antenna != location || sessions[0].AntennaElevation != elevation {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestOrchestrator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
	defer store.Close()

	cfg := testConfig()
	cfg.Orbit.Start = false
	cfg.Orbit.TakeoffAltitude = 0

	o := NewOrchestrator(newFakeFlight(), store, &fakeSource{}, cfg)

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestOrchestrator_Interrupted(t *testing.T) {
	tests := []struct {
		action InterruptAction
		want   string
	}{
		{InterruptNone, ""},
		{InterruptPause, "pause"},
		{InterruptGoHome, "goHome"},
		{InterruptLand, "land"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())

			store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
			defer store.Close()

			fc := newFakeFlight()
			fc.hold = true

			cfg := testConfig()
			cfg.Orbit.SetHome = true
			cfg.Orbit.OnInterrupt = tt.action

			go func() {
				time.Sleep(100 * time.Millisecond)
				cancel()
			}()

			if err := NewOrchestrator(fc, store, &fakeSource{}, cfg).Run(ctx); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			calls := fc.Calls()
			i := slices.Index(calls, "setHome")
			if i < 0 || i+1 >= len(calls) || calls[i+1] != "upload" {
				t.Fatalf("calls = %v, want setHome right before upload", calls)
			}

			last := calls[len(calls)-1]
			if tt.want == "" {
				if last != "start" {
					t.Errorf("calls = %v, want no action after start", calls)
				}
				return
			}
			if last != tt.want {
				t.Errorf("calls = %v, want %s last", calls, tt.want)
			}
		})
	}
}

func TestOrchestrator_RepeatedLaps(t *testing.T) {
	tests := []struct {
		name    string
		repeat  int
		flown   int
		wantEnd string
	}{
		{name: "single lap", repeat: 0, flown: 1, wantEnd: "start"},
		{name: "all laps", repeat: 2, flown: 3, wantEnd: "start"},
		{name: "first lap only", repeat: 2, flown: 1, wantEnd: "goHome"},
		{name: "two of three laps", repeat: 2, flown: 2, wantEnd: "goHome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
			defer store.Close()

			fc := newFakeFlight()
			fc.laps = tt.flown

			go func() {
				time.Sleep(500 * time.Millisecond)
				cancel()
			}()

			speed := mission.DefaultSpeedConfig()
			speed.RepeatTimes = tt.repeat

			cfg := testConfig()
			cfg.Orbit.Speed = &speed
			cfg.Orbit.OnInterrupt = InterruptGoHome

			if err := NewOrchestrator(fc, store, &fakeSource{}, cfg).Run(ctx); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if fc.plan.Laps != tt.repeat+1 {
				t.Errorf("plan laps = %d, want %d", fc.plan.Laps, tt.repeat+1)
			}
			calls := fc.Calls()
			if last := calls[len(calls)-1]; last != tt.wantEnd {
				t.Errorf("calls = %v, want %s last", calls, tt.wantEnd)
			}
		})
	}
}

func TestOrchestrator_PauseToggle(t *testing.T) {
	tests := []struct {
		name    string
		start   bool
		toggles int
		want    []string
	}{
		{name: "pause", start: true, toggles: 1, want: []string{"start", "pause"}},
		{name: "pause and resume", start: true, toggles: 2, want: []string{"start", "pause", "resume"}},
		{name: "pause twice", start: true, toggles: 3, want: []string{"start", "pause", "resume", "pause"}},
		{name: "not started", start: false, toggles: 2, want: []string{"takeoff"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
			defer store.Close()

			fc := newFakeFlight()
			fc.hold = true

			cfg := testConfig()
			cfg.Orbit.Start = tt.start

			toggle := make(chan struct{})
			runCtx, stop := context.WithCancel(ctx)
			go func() {
				defer stop()
				for range tt.toggles {
					select {
					case toggle <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}()

			o := NewOrchestrator(fc, store, &fakeSource{}, cfg, WithPauseToggle(toggle))
			if err := o.Run(runCtx); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			calls := fc.Calls()
			if len(calls) < len(tt.want) || !slices.Equal(calls[len(calls)-len(tt.want):], tt.want) {
				t.Errorf("calls = %v, want suffix %v", calls, tt.want)
			}
		})
	}
}

func TestOrchestrator_TestLeg(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
	defer store.Close()

	fc := newFakeFlight()
	cfg := testConfig()
	cfg.Orbit.TestLeg = &TestLegConfig{East: 1}

	if err := NewOrchestrator(fc, store, &fakeSource{}, cfg).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	waypoints, err := store.Waypoints(ctx, fc.uploaded.ID)
	if err != nil {
		t.Fatalf("Waypoints() error = %v", err)
	}
	if len(waypoints) != 2 {
		t.Fatalf("got %d waypoints, want 2", len(waypoints))
	}
	if waypoints[0].Location != antennaLocation {
		t.Errorf("first waypoint = %v, want antenna location", waypoints[0].Location)
	}
	if end := waypoints[1].Location; end.Latitude != antennaLocation.Latitude || end.Longitude <= antennaLocation.Longitude {
		t.Errorf("test leg end = %v, want due east of %v", end, antennaLocation)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].Radius != 1 || sessions[0].PointCount != 1 {
		t.Errorf("sessions = %+v, want a 1 m single leg", sessions)
	}
}

func TestGroupByTelemetry(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	a := &telemetry.Telemetry{Timestamp: t0}
	b := &telemetry.Telemetry{Timestamp: t0.Add(time.Second)}

	batch := []survey.MeasurementWithTelemetry{
		{Telemetry: a},
		{Telemetry: a.Clone()},
		{Telemetry: b},
		{},
		{},
		{Telemetry: b},
	}

	groups := groupByTelemetry(batch)
	want := []int{2, 1, 2, 1}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, g := range groups {
		if len(g) != want[i] {
			t.Errorf("group %d has %d readings, want %d", i, len(g), want[i])
		}
	}

	if got := groupByTelemetry(nil); len(got) != 0 {
		t.Errorf("groupByTelemetry(nil) = %v", got)
	}
}
