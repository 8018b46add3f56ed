package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/unit"
)

// ErrInvalidPoint is returned when a point has non-finite or out of range coordinates
var ErrInvalidPoint = errors.New("invalid geographic point")

// Point is a WGS84-style latitude/longitude pair in decimal degrees
type Point struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`   // Latitude in degrees, positive north
	Longitude float64 `yaml:"longitude" json:"longitude"` // Longitude in degrees, positive east
}

// Validate checks that both coordinates are finite and within their ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return fmt.Errorf("%w: latitude is not finite", ErrInvalidPoint)
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("%w: longitude is not finite", ErrInvalidPoint)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude out of range: %f", ErrInvalidPoint, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude out of range: %f", ErrInvalidPoint, p.Longitude)
	}
	return nil
}

// Add returns the point shifted by the given degree deltas. The longitude is
// wrapped into [-180, 180]; the latitude is not clamped.
func (p Point) Add(dLat, dLon float64) Point {
	return Point{Latitude: p.Latitude + dLat, Longitude: WrapLongitude(p.Longitude + dLon)}
}

// Sub returns the degree deltas from q to p. The longitude delta takes the
// short way around the antimeridian.
func (p Point) Sub(q Point) (dLat, dLon float64) {
	return p.Latitude - q.Latitude, WrapLongitude(p.Longitude - q.Longitude)
}

// WrapLongitude folds lon into [-180, 180].
func WrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func (p Point) String() string {
	return fmt.Sprintf("(%.7f, %.7f)", p.Latitude, p.Longitude)
}

func (p Point) coord() globe.Coord {
	return globe.Coord{
		Lat: unit.AngleFromDeg(p.Latitude),
		Lon: unit.AngleFromDeg(p.Longitude),
	}
}

// Distance returns the geodesic distance in meters between two points on
// the IAU 1976 ellipsoid.
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}
	return globe.Earth76.Distance(a.coord(), b.coord()) * 1000
}
