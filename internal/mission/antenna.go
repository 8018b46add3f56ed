package mission

import (
	"fmt"
	"sync"

	"github.com/roman-kulish/antenna-survey/internal/geo"
)

// AntennaReference is the surveyed antenna. Location is the orbit center and
// point of interest; Elevation is the altitude every orbit waypoint is flown at.
type AntennaReference struct {
	Location  geo.Point
	Elevation float64
	MinRadius float64 // Orbits closer than this are rejected

	set bool
}

// NewAntennaReference validates and returns an antenna reference
func NewAntennaReference(location geo.Point, elevation, minRadius float64) (AntennaReference, error) {
	if err := location.Validate(); err != nil {
		return AntennaReference{}, fmt.Errorf("%w: antenna location: %w", ErrInvalidParameter, err)
	}
	if !isFinite(elevation) {
		return AntennaReference{}, fmt.Errorf("%w: antenna elevation is not finite", ErrInvalidParameter)
	}
	if !isFinite(minRadius) || minRadius < 0 {
		return AntennaReference{}, fmt.Errorf("%w: minimum radius must not be negative: %f", ErrInvalidParameter, minRadius)
	}

	return AntennaReference{
		Location:  location,
		Elevation: elevation,
		MinRadius: minRadius,
		set:       true,
	}, nil
}

// IsSet reports whether the reference came from NewAntennaReference or a
// completed builder
func (a AntennaReference) IsSet() bool {
	return a.set
}

// AntennaReferenceBuilder collects the antenna location and elevation, which
// arrive from separate flight controller queries, possibly on different
// goroutines.
type AntennaReferenceBuilder struct {
	mu        sync.Mutex
	location  *geo.Point
	elevation *float64
	minRadius float64
}

func NewAntennaReferenceBuilder(minRadius float64) *AntennaReferenceBuilder {
	return &AntennaReferenceBuilder{minRadius: minRadius}
}

func (b *AntennaReferenceBuilder) SetLocation(p geo.Point) *AntennaReferenceBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.location = &p
	return b
}

func (b *AntennaReferenceBuilder) SetElevation(e float64) *AntennaReferenceBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.elevation = &e
	return b
}

// Ready reports whether both location and elevation are known
func (b *AntennaReferenceBuilder) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.location != nil && b.elevation != nil
}

func (b *AntennaReferenceBuilder) Build() (AntennaReference, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.location == nil && b.elevation == nil:
		return AntennaReference{}, fmt.Errorf("%w: location and elevation missing", ErrAntennaNotSet)
	case b.location == nil:
		return AntennaReference{}, fmt.Errorf("%w: location missing", ErrAntennaNotSet)
	case b.elevation == nil:
		return AntennaReference{}, fmt.Errorf("%w: elevation missing", ErrAntennaNotSet)
	}

	return NewAntennaReference(*b.location, *b.elevation, b.minRadius)
}
