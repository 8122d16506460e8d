package app

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme is the color scale used for the max bin positions of a pulse,
// from the first FFT sample to the last.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Dark gray to white transition
	ThermalTheme   ColorTheme = "thermal"   // Dark red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultColorMapSize = 64
)

var (
	backgroundColor = color.Black
	gridColor       = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}

	chirpColor     = colorful.Hsv(120, 0.9, 0.85) // Chirp marker
	rejectedColor  = colorful.Hsv(0, 0.9, 0.75)   // Checked, not a chirp
	uncheckedColor = colorful.Hsv(0, 0, 0.35)     // Outside the width gate
)

var validThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	ThermalTheme:   {},
	MarineTheme:    {},
}

// ParseColorTheme returns the named theme
func ParseColorTheme(s string) (ColorTheme, error) {
	if _, ok := validThemes[ColorTheme(s)]; !ok {
		return "", fmt.Errorf("unknown color theme '%s'", s)
	}
	return ColorTheme(s), nil
}

// ColorMapper maps a position in [0,1] to a precomputed theme color
type ColorMapper struct {
	colorMap []color.Color
}

// NewColorMapper creates a color mapper with size precomputed colors
func NewColorMapper(theme ColorTheme, size int) *ColorMapper {
	if size < 2 {
		size = DefaultColorMapSize
	}

	fn := getColorTheme(theme)
	cm := ColorMapper{colorMap: make([]color.Color, size)}
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(size-1)).Clamped()
	}
	return &cm
}

// GetColor returns the color of position v, clamped to [0,1]
func (cm *ColorMapper) GetColor(v float64) color.Color {
	v = math.Max(0, math.Min(1, v))
	return cm.colorMap[int(math.Round(v*float64(len(cm.colorMap)-1)))]
}

// SampleColor returns the color of FFT sample i out of n
func (cm *ColorMapper) SampleColor(i, n int) color.Color {
	if n <= 1 {
		return cm.GetColor(1)
	}
	return cm.GetColor(float64(i) / float64(n-1))
}

// verdictColor returns the marker color of a pulse row
func verdictColor(row TraceRow) color.Color {
	switch {
	case row.Chirp:
		return chirpColor
	case row.Checked:
		return rejectedColor
	default:
		return uncheckedColor
	}
}

func getColorTheme(theme ColorTheme) func(float64) colorful.Color {
	switch theme {
	case GrayscaleTheme:
		return func(v float64) colorful.Color {
			return colorful.Hsv(0, 0, 0.35+0.65*v)
		}

	case ThermalTheme:
		stops := []colorful.Color{
			colorful.Hsv(0, 1, 0.55),
			colorful.Hsv(30, 1, 1),
			colorful.Hsv(60, 1, 1),
			colorful.Hsv(60, 0.1, 1),
		}
		return func(v float64) colorful.Color {
			return blendStops(stops, v)
		}

	case MarineTheme:
		return func(v float64) colorful.Color {
			return colorful.Hsv(240-(v*60), 1.0-(v*0.8), 0.5+(math.Pow(v, 0.6)*0.5))
		}

	default: // Blue -> Red
		return func(v float64) colorful.Color {
			return colorful.Hsv(240-(v*240), 0.9+(v*0.1), 0.95)
		}
	}
}

// blendStops interpolates between evenly spaced color stops in HCL space
func blendStops(stops []colorful.Color, v float64) colorful.Color {
	v = math.Max(0, math.Min(1, v))
	pos := v * float64(len(stops)-1)

	i := int(pos)
	if i >= len(stops)-1 {
		return stops[len(stops)-1]
	}
	return stops[i].BlendHcl(stops[i+1], pos-float64(i))
}
