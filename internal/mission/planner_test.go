package mission

import (
	"errors"
	"sync"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

func testAntenna(t *testing.T) AntennaReference {
	t.Helper()

	a, err := NewAntennaReference(testCenter, 30, 5)
	if err != nil {
		t.Fatalf("NewAntennaReference() error = %v", err)
	}
	return a
}

func TestNewPlanner(t *testing.T) {
	if _, err := NewPlanner(AntennaReference{}); !errors.Is(err, ErrAntennaNotSet) {
		t.Errorf("NewPlanner(zero) error = %v, want %v", err, ErrAntennaNotSet)
	}

	cfg := DefaultSpeedConfig()
	cfg.AutoFlightSpeed = 20
	if _, err := NewPlanner(testAntenna(t), WithSpeedConfig(cfg)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("NewPlanner(bad speed) error = %v, want %v", err, ErrInvalidParameter)
	}

	p, err := NewPlanner(testAntenna(t))
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}
	if p.Antenna().Location != testCenter {
		t.Errorf("antenna location = %v, want %v", p.Antenna().Location, testCenter)
	}
}

func TestPlanner_OrbitMission(t *testing.T) {
	p, err := NewPlanner(testAntenna(t), WithRingOptions(WithCornerRadius(2)))
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}

	m, err := p.OrbitMission(9.144, 8)
	if err != nil {
		t.Fatalf("OrbitMission() error = %v", err)
	}

	if m.Len() != 9 {
		t.Errorf("mission length = %d, want 9", m.Len())
	}
	if m.PointOfInterest != testCenter {
		t.Errorf("point of interest = %v, want %v", m.PointOfInterest, testCenter)
	}
	for i, wp := range m.Waypoints {
		if wp.Altitude != 30 {
			t.Errorf("waypoint %d altitude = %f, want 30", i, wp.Altitude)
		}
		if wp.CornerRadius != 2 {
			t.Errorf("waypoint %d corner radius = %f, want 2", i, wp.CornerRadius)
		}
	}

	if _, err := p.OrbitMission(4, 8); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("radius below minimum error = %v, want %v", err, ErrInvalidParameter)
	}
	if _, err := p.OrbitMission(10, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero points error = %v, want %v", err, ErrInvalidParameter)
	}
}

func TestPlanner_OrbitMissionEdgeLocations(t *testing.T) {
	tests := []struct {
		name    string
		antenna geo.Point
		wantErr error
	}{
		{name: "antimeridian", antenna: geo.Point{Latitude: 10, Longitude: 179.99995}},
		{name: "antimeridian west", antenna: geo.Point{Latitude: 10, Longitude: -179.99995}},
		{name: "near pole", antenna: geo.Point{Latitude: 89.99995, Longitude: 0}, wantErr: ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAntennaReference(tt.antenna, 30, 5)
			if err != nil {
				t.Fatalf("NewAntennaReference() error = %v", err)
			}
			p, err := NewPlanner(a)
			if err != nil {
				t.Fatalf("NewPlanner() error = %v", err)
			}

			m, err := p.OrbitMission(9.144, 8)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("OrbitMission() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if m.Len() != 9 {
				t.Errorf("mission length = %d, want 9", m.Len())
			}
			for i, wp := range m.Waypoints {
				if err := wp.Location.Validate(); err != nil {
					t.Errorf("waypoint %d: %v", i, err)
				}
			}
		})
	}
}

func TestPlanner_TestLegMission(t *testing.T) {
	p, err := NewPlanner(testAntenna(t))
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}

	m, err := p.TestLegMission(1, 0)
	if err != nil {
		t.Fatalf("TestLegMission() error = %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("mission length = %d, want 2", m.Len())
	}
	if m.Waypoints[0].Location != testCenter {
		t.Errorf("first waypoint = %v, want antenna location", m.Waypoints[0].Location)
	}

	d, err := geo.LocalDistance(testCenter, m.Waypoints[1].Location, nil)
	if err != nil {
		t.Fatalf("LocalDistance() error = %v", err)
	}
	if !scalar.EqualWithinAbs(d, 1, 1e-9) {
		t.Errorf("test leg length = %f, want 1", d)
	}

	if _, err := p.TestLegMission(0, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero offset error = %v, want %v", err, ErrInvalidParameter)
	}
}

func TestAntennaReferenceBuilder(t *testing.T) {
	b := NewAntennaReferenceBuilder(5)

	if _, err := b.Build(); !errors.Is(err, ErrAntennaNotSet) {
		t.Errorf("Build() with nothing set error = %v, want %v", err, ErrAntennaNotSet)
	}

	b.SetLocation(testCenter)
	if b.Ready() {
		t.Error("builder ready without elevation")
	}
	if _, err := b.Build(); !errors.Is(err, ErrAntennaNotSet) {
		t.Errorf("Build() without elevation error = %v, want %v", err, ErrAntennaNotSet)
	}

	// Location and elevation usually arrive from separate callbacks
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.SetElevation(30)
	}()
	wg.Wait()

	if !b.Ready() {
		t.Fatal("builder not ready after both values were set")
	}

	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !a.IsSet() || a.Location != testCenter || a.Elevation != 30 || a.MinRadius != 5 {
		t.Errorf("Build() = %+v", a)
	}

	if _, err := NewAntennaReferenceBuilder(0).SetElevation(30).SetLocation(geo.Point{Longitude: 181}).Build(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Build() with invalid location error = %v, want %v", err, ErrInvalidParameter)
	}
}
