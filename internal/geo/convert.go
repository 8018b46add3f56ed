package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/unit"
)

// LegacyDegreesPerMeter is the single scale factor the first survey
// prototype applied to both axes. It ignores meridian convergence.
const LegacyDegreesPerMeter = 0.00001

// ErrPolarLatitude is returned when a longitude offset is requested so close
// to a pole that a degree of longitude has no usable length.
var ErrPolarLatitude = errors.New("longitude offset is undefined at polar latitude")

// minParallelRadius is the smallest radius of parallel, in meters, for which
// longitude offsets are still computed.
const minParallelRadius = 1.0

// Converter converts local metric offsets to latitude/longitude deltas around
// a reference point and back.
type Converter interface {
	MetersToDegrees(ref Point, north, east float64) (dLat, dLon float64, err error)
	DegreesToMeters(ref Point, dLat, dLon float64) (north, east float64, err error)
}

// EllipsoidConverter scales offsets on the IAU 1976 Earth ellipsoid using the
// meridian radius of curvature and the radius of the parallel at the reference
// latitude, so a degree of longitude shrinks with cos(latitude).
type EllipsoidConverter struct{}

// NewEllipsoidConverter returns the default converter.
func NewEllipsoidConverter() EllipsoidConverter {
	return EllipsoidConverter{}
}

// metersPerDegree returns the length of one degree of latitude and longitude
// at the given latitude.
func (c EllipsoidConverter) metersPerDegree(lat float64) (latM, lonM float64, err error) {
	φ := unit.AngleFromDeg(lat)

	latM = globe.OneDegreeOfLatitude(globe.Earth76.RadiusOfCurvature(φ)) * 1000

	rp := globe.Earth76.RadiusAtLatitude(φ) // km
	if rp*1000 < minParallelRadius {
		return 0, 0, fmt.Errorf("%w: %f", ErrPolarLatitude, lat)
	}
	lonM = globe.OneDegreeOfLongitude(rp) * 1000

	return latM, lonM, nil
}

func (c EllipsoidConverter) MetersToDegrees(ref Point, north, east float64) (float64, float64, error) {
	latM, lonM, err := c.metersPerDegree(ref.Latitude)
	if err != nil {
		return 0, 0, err
	}
	return north / latM, east / lonM, nil
}

func (c EllipsoidConverter) DegreesToMeters(ref Point, dLat, dLon float64) (float64, float64, error) {
	latM, lonM, err := c.metersPerDegree(ref.Latitude)
	if err != nil {
		return 0, 0, err
	}
	return dLat * latM, dLon * lonM, nil
}

type legacyConverter struct{}

// LegacyConverter reproduces the fixed 1e-5 degrees per meter scale on both
// axes. Longitude offsets are wrong by a factor of cos(latitude); keep it only
// to replay missions flown with the prototype.
var LegacyConverter Converter = legacyConverter{}

func (legacyConverter) MetersToDegrees(_ Point, north, east float64) (float64, float64, error) {
	return north * LegacyDegreesPerMeter, east * LegacyDegreesPerMeter, nil
}

func (legacyConverter) DegreesToMeters(_ Point, dLat, dLon float64) (float64, float64, error) {
	return dLat / LegacyDegreesPerMeter, dLon / LegacyDegreesPerMeter, nil
}

// Offset returns ref moved north and east by the given number of meters.
func Offset(ref Point, north, east float64, conv Converter) (Point, error) {
	if conv == nil {
		conv = NewEllipsoidConverter()
	}
	dLat, dLon, err := conv.MetersToDegrees(ref, north, east)
	if err != nil {
		return Point{}, err
	}
	return ref.Add(dLat, dLon), nil
}

// LocalDistance returns the planar distance in meters between ref and p,
// measured with the same scale the converter uses for offsets.
func LocalDistance(ref, p Point, conv Converter) (float64, error) {
	if conv == nil {
		conv = NewEllipsoidConverter()
	}
	dLat, dLon := p.Sub(ref)
	north, east, err := conv.DegreesToMeters(ref, dLat, dLon)
	if err != nil {
		return 0, err
	}
	return math.Hypot(north, east), nil
}

// Bearing returns the azimuth of p as seen from ref, in degrees clockwise
// from north in [0, 360).
func Bearing(ref, p Point, conv Converter) (float64, error) {
	if conv == nil {
		conv = NewEllipsoidConverter()
	}
	dLat, dLon := p.Sub(ref)
	north, east, err := conv.DegreesToMeters(ref, dLat, dLon)
	if err != nil {
		return 0, err
	}
	deg := math.Atan2(east, north) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg, nil
}
