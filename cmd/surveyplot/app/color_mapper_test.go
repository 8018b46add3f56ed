package app

import (
	"image/color"
	"testing"

	"github.com/roman-kulish/antenna-survey/internal/telemetry"
)

func TestColorMapper_GetColor(t *testing.T) {
	bounds := MagnitudeBounds{Min: -80, Max: -40}

	for theme := range validThemes {
		t.Run(string(theme), func(t *testing.T) {
			cm := NewColorMapper(theme, bounds)
			if cm.Size() != DefaultColorMapSize || cm.ThemeName() != theme {
				t.Fatalf("Size() = %d, ThemeName() = %q", cm.Size(), cm.ThemeName())
			}

			low, high := cm.Normalized(0), cm.Normalized(1)
			if low == high {
				t.Fatalf("theme maps both ends to %v", low)
			}

			tests := []struct {
				name      string
				magnitude *float64
				want      color.RGBA
			}{
				{"nil", nil, low},
				{"below range", telemetry.Ptr(-120.0), low},
				{"minimum", telemetry.Ptr(-80.0), low},
				{"maximum", telemetry.Ptr(-40.0), high},
				{"above range", telemetry.Ptr(0.0), high},
			}
			for _, tt := range tests {
				if got := cm.GetColor(tt.magnitude); got != tt.want {
					t.Errorf("GetColor(%s) = %v, want %v", tt.name, got, tt.want)
				}
			}

			if c := cm.GetColor(telemetry.Ptr(-60.0)); c.A != 255 {
				t.Errorf("GetColor(-60) = %v, want an opaque color", c)
			}
		})
	}
}

func TestColorMapper_UpdateBounds(t *testing.T) {
	cm := NewColorMapperWithSize(ClassicTheme, MagnitudeBounds{Min: -80, Max: -40}, 16)

	mid := cm.GetColor(telemetry.Ptr(-60.0))
	cm.UpdateBounds(MagnitudeBounds{Min: -60, Max: -20})

	if got := cm.GetColor(telemetry.Ptr(-60.0)); got != cm.Normalized(0) {
		t.Errorf("GetColor(-60) after update = %v, want lowest color", got)
	}
	if got := cm.GetColor(telemetry.Ptr(-40.0)); got != mid {
		t.Errorf("GetColor(-40) after update = %v, want %v", got, mid)
	}
}
