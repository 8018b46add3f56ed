package survey

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

// SectorSummary describes the readings taken within one azimuth sector
// around the antenna
type SectorSummary struct {
	FromAzimuth  float64 `json:"fromAzimuth"` // Degrees clockwise from north, inclusive
	ToAzimuth    float64 `json:"toAzimuth"`   // Degrees clockwise from north, exclusive
	Count        int     `json:"count"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stdDev"`
	MeanDistance float64 `json:"meanDistance"` // Mean distance from the antenna in meters
}

// Summarize groups valid readings with a known position into equal azimuth
// sectors around the antenna. Sectors without readings have a zero Count and
// NaN statistics.
func Summarize(antenna geo.Point, measurements []MeasurementWithTelemetry, sectors int) ([]SectorSummary, error) {
	if sectors < 1 {
		return nil, fmt.Errorf("sector count must be positive: %d", sectors)
	}

	width := 360.0 / float64(sectors)
	magnitudes := make([][]float64, sectors)
	distances := make([][]float64, sectors)

	for _, m := range measurements {
		if m.Magnitude == nil {
			continue
		}
		p, ok := m.Location()
		if !ok {
			continue
		}

		bearing, err := geo.Bearing(antenna, p, nil)
		if err != nil {
			return nil, fmt.Errorf("bearing to measurement: %w", err)
		}
		d, err := geo.LocalDistance(antenna, p, nil)
		if err != nil {
			return nil, fmt.Errorf("distance to measurement: %w", err)
		}

		i := int(bearing / width)
		if i >= sectors {
			i = sectors - 1
		}
		magnitudes[i] = append(magnitudes[i], *m.Magnitude)
		distances[i] = append(distances[i], d)
	}

	out := make([]SectorSummary, sectors)
	for i := range out {
		s := SectorSummary{
			FromAzimuth: float64(i) * width,
			ToAzimuth:   float64(i+1) * width,
			Count:       len(magnitudes[i]),
		}

		if s.Count == 0 {
			s.Min, s.Max, s.Mean, s.StdDev, s.MeanDistance = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
		} else {
			s.Min = floats.Min(magnitudes[i])
			s.Max = floats.Max(magnitudes[i])
			s.Mean, s.StdDev = stat.MeanStdDev(magnitudes[i], nil)
			if s.Count == 1 {
				s.StdDev = 0
			}
			s.MeanDistance = stat.Mean(distances[i], nil)
		}

		out[i] = s
	}

	return out, nil
}
