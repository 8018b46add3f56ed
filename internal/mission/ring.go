package mission

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

// MinRingPoints is the smallest number of ring vertices that still forms a polygon
const MinRingPoints = 3

// DefaultCornerRadius is the corner radius of generated ring waypoints, in meters
const DefaultCornerRadius = 1.0

type ringOptions struct {
	cornerRadius float64
	converter    geo.Converter
}

// RingOption configures ring generation
type RingOption func(*ringOptions)

// WithCornerRadius overrides the corner radius applied to every ring waypoint
func WithCornerRadius(r float64) RingOption {
	return func(o *ringOptions) {
		o.cornerRadius = r
	}
}

// WithConverter sets the meters to degrees conversion. A nil converter keeps
// the default ellipsoid conversion.
func WithConverter(c geo.Converter) RingOption {
	return func(o *ringOptions) {
		if c != nil {
			o.converter = c
		}
	}
}

// GenerateRingWaypoints samples a closed ring of pointCount segments around
// center. The result holds pointCount+1 waypoints at the given elevation; the
// last one coincides with the first so the path closes.
//
// Angles run counter-clockwise from east: the sine of the angle is the north
// offset and the cosine is the east offset.
func GenerateRingWaypoints(center geo.Point, radius, elevation float64, pointCount int, opts ...RingOption) ([]Waypoint, error) {
	o := ringOptions{
		cornerRadius: DefaultCornerRadius,
		converter:    geo.NewEllipsoidConverter(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if pointCount < MinRingPoints {
		return nil, fmt.Errorf("%w: point count must be at least %d: %d", ErrInvalidParameter, MinRingPoints, pointCount)
	}
	if !isFinite(radius) || radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive: %f", ErrInvalidParameter, radius)
	}
	if !isFinite(elevation) {
		return nil, fmt.Errorf("%w: elevation is not finite", ErrInvalidParameter)
	}
	if !isFinite(o.cornerRadius) || o.cornerRadius < 0 {
		return nil, fmt.Errorf("%w: corner radius must not be negative: %f", ErrInvalidParameter, o.cornerRadius)
	}
	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("%w: center: %w", ErrInvalidParameter, err)
	}

	angles := floats.Span(make([]float64, pointCount+1), 0, 2*math.Pi)

	waypoints := make([]Waypoint, 0, len(angles))
	for _, theta := range angles {
		sin, cos := math.Sincos(theta)

		dLat, dLon, err := o.converter.MetersToDegrees(center, sin*radius, cos*radius)
		if err != nil {
			return nil, fmt.Errorf("%w: converting ring offset: %w", ErrInvalidParameter, err)
		}

		loc := center.Add(dLat, dLon)
		if loc.Latitude < -90 || loc.Latitude > 90 {
			return nil, fmt.Errorf("%w: ring crosses a pole at latitude %f", ErrInvalidParameter, loc.Latitude)
		}

		waypoints = append(waypoints, Waypoint{
			Location:     loc,
			Altitude:     elevation,
			CornerRadius: o.cornerRadius,
		})
	}
	return waypoints, nil
}
