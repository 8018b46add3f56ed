package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme represents a predefined color scheme for magnitude visualization
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultColorMapSize = 256 // Default number of colors in the map
)

var validThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
	MarineTheme:    {},
}

// thermalStops are blended in Lab space so the ramp stays perceptually even
var thermalStops = []colorful.Color{
	{R: 0, G: 0, B: 0},
	{R: 1, G: 0, B: 0},
	{R: 1, G: 1, B: 0},
	{R: 1, G: 1, B: 1},
}

// ColorMapper maps magnitudes to pre-computed theme colors within the
// configured bounds
type ColorMapper struct {
	colorMap          []color.RGBA
	themeName         ColorTheme
	size              int
	magnitudePerIndex float64
	boundsMin         float64
}

// NewColorMapper creates a new color mapper with the default map size
func NewColorMapper(theme ColorTheme, bounds MagnitudeBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

func NewColorMapperWithSize(theme ColorTheme, bounds MagnitudeBounds, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	cm := &ColorMapper{
		colorMap:  make([]color.RGBA, size),
		themeName: theme,
		size:      size,
	}

	fn := getColorTheme(theme)
	for i := range size {
		c := fn(float64(i) / float64(size-1)).Clamped()
		r, g, b := c.RGB255()
		cm.colorMap[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}

	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds updates the magnitude bounds without rebuilding the color map
func (cm *ColorMapper) UpdateBounds(bounds MagnitudeBounds) {
	cm.boundsMin = bounds.Min
	cm.magnitudePerIndex = (bounds.Max - bounds.Min) / float64(cm.size-1)
}

// GetColor returns a color for the given magnitude. A nil magnitude maps to
// the lowest color.
func (cm *ColorMapper) GetColor(magnitude *float64) color.RGBA {
	if magnitude == nil || cm.magnitudePerIndex <= 0 {
		return cm.colorMap[0]
	}

	index := int(math.Round((*magnitude - cm.boundsMin) / cm.magnitudePerIndex))
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= cm.size {
		return cm.colorMap[cm.size-1]
	}
	return cm.colorMap[index]
}

// Normalized returns the color at position v in [0, 1] of the map
func (cm *ColorMapper) Normalized(v float64) color.RGBA {
	index := int(math.Round(math.Max(0, math.Min(1, v)) * float64(cm.size-1)))
	return cm.colorMap[index]
}

func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

func (cm *ColorMapper) Size() int {
	return cm.size
}

func getColorTheme(theme ColorTheme) func(float64) colorful.Color {
	switch theme {
	case GrayscaleTheme:
		return func(v float64) colorful.Color {
			g := math.Pow(v, 0.7)
			return colorful.Color{R: g, G: g, B: g}
		}

	case JungleTheme:
		return func(v float64) colorful.Color {
			return colorful.Hsv(120-(v*60), 1.0, 0.3+(math.Pow(v, 0.6)*0.7))
		}

	case ThermalTheme:
		return func(v float64) colorful.Color {
			segments := float64(len(thermalStops) - 1)
			i := int(v * segments)
			if i >= len(thermalStops)-1 {
				return thermalStops[len(thermalStops)-1]
			}
			return thermalStops[i].BlendLab(thermalStops[i+1], v*segments-float64(i))
		}

	case MarineTheme:
		return func(v float64) colorful.Color {
			return colorful.Hsv(240-(v*60), 1.0-(v*0.8), 0.3+(math.Pow(v, 0.6)*0.7))
		}

	default:
		return func(v float64) colorful.Color {
			return colorful.Hsv(240-(v*240), 0.9+(v*0.1), 0.35+(math.Pow(v, 0.7)*0.65))
		}
	}
}
