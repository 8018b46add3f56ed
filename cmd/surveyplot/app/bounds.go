package app

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/antenna-survey/internal/survey"
)

const (
	defaultMinMagnitude = -120.0 // dBm
	defaultMaxMagnitude = -20.0  // dBm

	lowerPercentile = 0.05
	upperPercentile = 0.95

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20

	// minimumSpan keeps a flat survey from collapsing the color range
	minimumSpan = 1.0 // dB
)

// MagnitudeBounds is the magnitude range mapped onto the color theme
type MagnitudeBounds struct {
	Min   float64 // dBm
	Max   float64 // dBm
	Mean  float64 // dBm
	Count int     // Valid readings the bounds were derived from
}

func defaultMagnitudeBounds() MagnitudeBounds {
	return MagnitudeBounds{
		Min:  defaultMinMagnitude,
		Max:  defaultMaxMagnitude,
		Mean: (defaultMinMagnitude + defaultMaxMagnitude) / 2,
	}
}

// ComputeBounds derives the color range from the valid readings. Surveys with
// enough readings are clipped to the 5th and 95th percentiles so a single
// spike does not wash out the plot. Manual limits override the computed ones.
func ComputeBounds(measurements []survey.MeasurementWithTelemetry, minMagnitude, maxMagnitude *float64) MagnitudeBounds {
	values := make([]float64, 0, len(measurements))
	for _, m := range measurements {
		if m.Magnitude != nil {
			values = append(values, *m.Magnitude)
		}
	}

	b := defaultMagnitudeBounds()
	if len(values) > 0 {
		slices.Sort(values)

		b.Count = len(values)
		b.Mean = stat.Mean(values, nil)
		if len(values) >= minimumSampleCount {
			b.Min = stat.Quantile(lowerPercentile, stat.Empirical, values, nil)
			b.Max = stat.Quantile(upperPercentile, stat.Empirical, values, nil)
		} else {
			b.Min = floats.Min(values)
			b.Max = floats.Max(values)
		}
	}

	if minMagnitude != nil {
		b.Min = *minMagnitude
	}
	if maxMagnitude != nil {
		b.Max = *maxMagnitude
	}

	if b.Max-b.Min < minimumSpan {
		switch {
		case maxMagnitude != nil && minMagnitude == nil:
			b.Min = b.Max - minimumSpan
		case minMagnitude != nil && maxMagnitude == nil:
			b.Max = b.Min + minimumSpan
		case minMagnitude == nil && maxMagnitude == nil:
			mid := (b.Min + b.Max) / 2
			b.Min, b.Max = mid-minimumSpan/2, mid+minimumSpan/2
		}
	}

	return b
}
