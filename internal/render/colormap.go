package render

import (
	"image/color"
	"math"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

// ColorScheme selects the gradient used to map amplitudes to colors.
// The same gradient builds both the live waterfall raster and the static
// legend colorbar, so the mapping must stay deterministic.
type ColorScheme string

const (
	SchemeTurbo     ColorScheme = "turbo"
	SchemeViridis   ColorScheme = "viridis"
	SchemeJet       ColorScheme = "jet"
	SchemeGrayscale ColorScheme = "grayscale"

	// DefaultColorMapSize is the number of pre-computed colors in a Mapper.
	DefaultColorMapSize = 256
)

// ValidScheme reports whether s names a known color scheme.
func ValidScheme(s ColorScheme) bool {
	switch s {
	case SchemeTurbo, SchemeViridis, SchemeJet, SchemeGrayscale:
		return true
	}
	return false
}

// Map converts an amplitude to a color. The amplitude is normalized into
// [0, 1] against [minDbm, maxDbm], clamping out-of-range inputs, then passed
// through the scheme gradient. Amplitudes at or above thresholdDbm are
// highlighted by blending toward white; pass NaN to disable the highlight.
//
// Map is pure: identical inputs always yield identical output.
func Map(amplitudeDbm, thresholdDbm, minDbm, maxDbm float64, scheme ColorScheme) color.RGBA {
	c := gradient(scheme)(spectrum.Normalize(amplitudeDbm, minDbm, maxDbm))
	if !math.IsNaN(thresholdDbm) && amplitudeDbm >= thresholdDbm {
		c = highlight(c)
	}
	return c
}

// highlight blends a color halfway toward white to mark amplitudes that
// crossed the threshold.
func highlight(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8((uint16(c.R) + 255) / 2),
		G: uint8((uint16(c.G) + 255) / 2),
		B: uint8((uint16(c.B) + 255) / 2),
		A: 255,
	}
}

// Mapper provides efficient amplitude-to-color mapping over a fixed domain
// using a pre-computed color table, one per waterfall instance.
type Mapper struct {
	colorMap    []color.RGBA
	scheme      ColorScheme
	size        int
	minDbm      float64
	rangeDbm    float64
	dbmPerIndex float64
	threshold   float64 // NaN when no highlight is wanted
	floor       color.RGBA
}

// NewMapper creates a mapper for the given scheme over [minDbm, maxDbm].
// Amplitudes at or above thresholdDbm are highlighted; pass NaN to disable.
func NewMapper(scheme ColorScheme, minDbm, maxDbm, thresholdDbm float64) *Mapper {
	return NewMapperWithSize(scheme, minDbm, maxDbm, thresholdDbm, DefaultColorMapSize)
}

// NewMapperWithSize creates a mapper with an explicit color table size.
func NewMapperWithSize(scheme ColorScheme, minDbm, maxDbm, thresholdDbm float64, size int) *Mapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	m := &Mapper{
		colorMap:  make([]color.RGBA, size),
		scheme:    scheme,
		size:      size,
		minDbm:    minDbm,
		rangeDbm:  maxDbm - minDbm,
		threshold: thresholdDbm,
		floor:     Map(minDbm, math.NaN(), minDbm, maxDbm, scheme),
	}
	m.dbmPerIndex = m.rangeDbm / float64(size-1)

	grad := gradient(scheme)
	for i := 0; i < size; i++ {
		m.colorMap[i] = grad(float64(i) / float64(size-1))
	}
	return m
}

// GetColor returns the color for the given amplitude, applying the
// threshold highlight when configured.
func (m *Mapper) GetColor(amplitudeDbm float64) color.RGBA {
	if math.IsNaN(amplitudeDbm) || math.IsInf(amplitudeDbm, 0) {
		return m.floor
	}

	var c color.RGBA
	index := int((amplitudeDbm - m.minDbm) / m.dbmPerIndex)
	switch {
	case index < 0:
		c = m.colorMap[0]
	case index >= m.size:
		c = m.colorMap[m.size-1]
	default:
		c = m.colorMap[index]
	}

	if !math.IsNaN(m.threshold) && amplitudeDbm >= m.threshold {
		c = highlight(c)
	}
	return c
}

// FloorColor returns the color of the display floor with no threshold
// highlight, used to fill freshly allocated history rows.
func (m *Mapper) FloorColor() color.RGBA {
	return m.floor
}

// Scheme returns the mapper's color scheme.
func (m *Mapper) Scheme() ColorScheme {
	return m.scheme
}

// gradient returns the scheme's normalized-value-to-color function.
func gradient(scheme ColorScheme) func(float64) color.RGBA {
	switch scheme {
	case SchemeViridis:
		return viridisColor
	case SchemeJet:
		return jetColor
	case SchemeGrayscale:
		return grayscaleColor
	default:
		return turboColor
	}
}

// turboColor evaluates the polynomial approximation of the Turbo colormap.
func turboColor(t float64) color.RGBA {
	t = clamp01(t)
	r := 0.13572138 + t*(4.61539260+t*(-42.66032258+t*(132.13108234+t*(-152.94239396+t*59.28637943))))
	g := 0.09140261 + t*(2.19418839+t*(4.84296658+t*(-14.18503333+t*(4.27729857+t*2.82956604))))
	b := 0.10667330 + t*(12.64194608+t*(-60.58204836+t*(110.36276771+t*(-89.90310912+t*27.34824973))))
	return color.RGBA{R: toByte(r), G: toByte(g), B: toByte(b), A: 255}
}

// viridisAnchors are evenly spaced control points of the Viridis colormap.
var viridisAnchors = [9][3]uint8{
	{68, 1, 84},
	{72, 40, 120},
	{62, 74, 137},
	{49, 104, 142},
	{38, 130, 142},
	{31, 158, 137},
	{53, 183, 121},
	{109, 205, 89},
	{253, 231, 37},
}

// viridisColor interpolates linearly between the anchor points.
func viridisColor(t float64) color.RGBA {
	t = clamp01(t)
	pos := t * float64(len(viridisAnchors)-1)
	i := int(pos)
	if i >= len(viridisAnchors)-1 {
		last := viridisAnchors[len(viridisAnchors)-1]
		return color.RGBA{R: last[0], G: last[1], B: last[2], A: 255}
	}
	f := pos - float64(i)

	lo, hi := viridisAnchors[i], viridisAnchors[i+1]
	return color.RGBA{
		R: uint8(float64(lo[0]) + f*(float64(hi[0])-float64(lo[0]))),
		G: uint8(float64(lo[1]) + f*(float64(hi[1])-float64(lo[1]))),
		B: uint8(float64(lo[2]) + f*(float64(hi[2])-float64(lo[2]))),
		A: 255,
	}
}

// jetColor evaluates the classic Jet piecewise gradient.
func jetColor(t float64) color.RGBA {
	t = clamp01(t)
	r := 1.5 - math.Abs(4*t-3)
	g := 1.5 - math.Abs(4*t-2)
	b := 1.5 - math.Abs(4*t-1)
	return color.RGBA{R: toByte(r), G: toByte(g), B: toByte(b), A: 255}
}

// grayscaleColor maps intensity through a 0.7 gamma for better low-level
// contrast on dark displays.
func grayscaleColor(t float64) color.RGBA {
	v := toByte(math.Pow(clamp01(t), 0.7))
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

func toByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(1, v)) * 255)
}
