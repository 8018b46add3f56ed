package app

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/geo"
	"github.com/roman-kulish/antenna-survey/internal/mission"
	"github.com/roman-kulish/antenna-survey/internal/survey"
)

// extentMargin leaves room around the outermost reading or waypoint
const extentMargin = 1.15

var ErrNoLocatedReadings = errors.New("no readings with a known location")

// LocalPoint is a position in meters east and north of the antenna
type LocalPoint struct {
	East  float64
	North float64
}

// Sample is a reading placed on the local plane
type Sample struct {
	LocalPoint
	Magnitude *float64
}

// PlotData is a survey session projected onto the plane around its antenna
type PlotData struct {
	Session        *survey.Session
	Ring           []LocalPoint // Planned waypoints, in flight order
	Samples        []Sample
	Extent         float64 // Half width of the plotted area in meters
	Bounds         MagnitudeBounds
	Sectors        []survey.SectorSummary
	TimestampStart time.Time
	TimestampEnd   time.Time
	Unlocated      int // Readings taken without a position fix
}

// NewPlotData projects the planned ring and every located reading onto the
// local plane around the session antenna.
func NewPlotData(session *survey.Session, waypoints []mission.Waypoint, measurements []survey.MeasurementWithTelemetry, bounds MagnitudeBounds, sectors int) (*PlotData, error) {
	conv := geo.NewEllipsoidConverter()
	project := func(p geo.Point) (LocalPoint, error) {
		dLat, dLon := p.Sub(session.Antenna)
		north, east, err := conv.DegreesToMeters(session.Antenna, dLat, dLon)
		if err != nil {
			return LocalPoint{}, err
		}
		return LocalPoint{East: east, North: north}, nil
	}

	data := &PlotData{
		Session: session,
		Bounds:  bounds,
		Extent:  session.Radius,
	}

	for i, w := range waypoints {
		lp, err := project(w.Location)
		if err != nil {
			return nil, fmt.Errorf("projecting waypoint %d: %w", i, err)
		}
		data.Ring = append(data.Ring, lp)
		data.Extent = math.Max(data.Extent, math.Hypot(lp.East, lp.North))
	}

	for _, m := range measurements {
		if data.TimestampStart.IsZero() || m.Timestamp.Before(data.TimestampStart) {
			data.TimestampStart = m.Timestamp
		}
		if m.Timestamp.After(data.TimestampEnd) {
			data.TimestampEnd = m.Timestamp
		}

		p, ok := m.Location()
		if !ok {
			data.Unlocated++
			continue
		}
		lp, err := project(p)
		if err != nil {
			return nil, fmt.Errorf("projecting reading at %s: %w", m.Timestamp, err)
		}
		data.Samples = append(data.Samples, Sample{LocalPoint: lp, Magnitude: m.Magnitude})
		data.Extent = math.Max(data.Extent, math.Hypot(lp.East, lp.North))
	}

	if len(data.Samples) == 0 {
		return nil, ErrNoLocatedReadings
	}

	summary, err := survey.Summarize(session.Antenna, measurements, sectors)
	if err != nil {
		return nil, fmt.Errorf("summarizing sectors: %w", err)
	}
	data.Sectors = summary

	data.Extent = math.Max(data.Extent*extentMargin, 1)
	return data, nil
}

// ScaleStep returns a round distance in meters between range rings, giving
// at most four rings within the extent.
func (d *PlotData) ScaleStep() float64 {
	raw := d.Extent / 4
	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= raw {
			return step
		}
	}
	return 10 * magnitude
}
