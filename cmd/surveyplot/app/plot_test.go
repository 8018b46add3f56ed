package app

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/survey"
	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

var testAntenna = geo.Point{Latitude: 60.1699, Longitude: 24.9384}

func located(t *testing.T, ts time.Time, north, east float64, magnitude *float64) survey.MeasurementWithTelemetry {
	t.Helper()

	p, err := geo.Offset(testAntenna, north, east, nil)
	if err != nil {
		t.Fatal(err)
	}
	return survey.MeasurementWithTelemetry{
		Measurement: survey.Measurement{Timestamp: ts, Magnitude: magnitude},
		Telemetry: &telemetry.Telemetry{
			Timestamp: ts,
			Latitude:  telemetry.Ptr(p.Latitude),
			Longitude: telemetry.Ptr(p.Longitude),
		},
	}
}

func testPlotInput(t *testing.T) (*survey.Session, []mission.Waypoint, []survey.MeasurementWithTelemetry) {
	t.Helper()

	session := &survey.Session{
		ID:               uuid.New(),
		Antenna:          testAntenna,
		AntennaElevation: 15,
		Radius:           20,
		PointCount:       8,
	}
	waypoints, err := mission.GenerateRingWaypoints(testAntenna, session.Radius, session.AntennaElevation, session.PointCount)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	measurements := []survey.MeasurementWithTelemetry{
		located(t, base, 10, 0, telemetry.Ptr(-40.0)),
		{Measurement: survey.Measurement{Timestamp: base.Add(time.Second), Magnitude: telemetry.Ptr(-45.0)}},
		located(t, base.Add(2*time.Second), 0, 30, nil),
		located(t, base.Add(3*time.Second), -20, 0, telemetry.Ptr(-55.0)),
	}
	return session, waypoints, measurements
}

func TestNewPlotData(t *testing.T) {
	session, waypoints, measurements := testPlotInput(t)
	bounds := ComputeBounds(measurements, nil, nil)

	data, err := NewPlotData(session, waypoints, measurements, bounds, 4)
	if err != nil {
		t.Fatalf("NewPlotData() error = %v", err)
	}

	if len(data.Ring) != len(waypoints) {
		t.Fatalf("got %d ring points, want %d", len(data.Ring), len(waypoints))
	}
	for i, p := range data.Ring {
		if d := math.Hypot(p.East, p.North); math.Abs(d-session.Radius) > 0.01 {
			t.Errorf("ring point %d is %f m from the antenna, want %f", i, d, session.Radius)
		}
	}

	if len(data.Samples) != 3 || data.Unlocated != 1 {
		t.Fatalf("got %d samples and %d unlocated, want 3 and 1", len(data.Samples), data.Unlocated)
	}
	if s := data.Samples[0]; math.Abs(s.North-10) > 1e-6 || math.Abs(s.East) > 1e-6 {
		t.Errorf("sample 0 at %+v, want 10 m north", s.LocalPoint)
	}
	if s := data.Samples[1]; math.Abs(s.East-30) > 1e-6 || s.Magnitude != nil {
		t.Errorf("sample 1 = %+v, want 30 m east without magnitude", s)
	}

	if want := 30 * extentMargin; math.Abs(data.Extent-want) > 1e-6 {
		t.Errorf("Extent = %f, want %f", data.Extent, want)
	}
	if !data.TimestampStart.Equal(measurements[0].Timestamp) || !data.TimestampEnd.Equal(measurements[3].Timestamp) {
		t.Errorf("time range = %s - %s", data.TimestampStart, data.TimestampEnd)
	}

	if len(data.Sectors) != 4 {
		t.Fatalf("got %d sectors, want 4", len(data.Sectors))
	}
	// North and south readings, the east one has no magnitude
	if data.Sectors[0].Count != 1 || data.Sectors[1].Count != 0 || data.Sectors[2].Count != 1 {
		t.Errorf("sector counts = %d, %d, %d", data.Sectors[0].Count, data.Sectors[1].Count, data.Sectors[2].Count)
	}

	strongest, weakest, ok := extremeSectors(data.Sectors)
	if !ok || strongest.Mean != -40 || weakest.Mean != -55 {
		t.Errorf("extremeSectors() = %+v, %+v, %v", strongest, weakest, ok)
	}
}

func TestNewPlotData_NoLocatedReadings(t *testing.T) {
	session, waypoints, measurements := testPlotInput(t)

	_, err := NewPlotData(session, waypoints, measurements[1:2], defaultMagnitudeBounds(), 4)
	if !errors.Is(err, ErrNoLocatedReadings) {
		t.Errorf("NewPlotData() error = %v, want ErrNoLocatedReadings", err)
	}
}

func TestPlotData_ScaleStep(t *testing.T) {
	tests := []struct {
		extent float64
		want   float64
	}{
		{4, 1},
		{23, 10},
		{34.5, 10},
		{100, 50},
		{400, 100},
	}

	for _, tt := range tests {
		d := &PlotData{Extent: tt.extent}
		if got := d.ScaleStep(); got != tt.want {
			t.Errorf("ScaleStep(%v) = %v, want %v", tt.extent, got, tt.want)
		}
	}
}
