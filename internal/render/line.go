package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

// DisplayMode selects how the current spectrum curve is drawn.
type DisplayMode string

const (
	ModeBars DisplayMode = "bars"
	ModeFill DisplayMode = "fill"
	ModeLine DisplayMode = "line"
)

// ValidMode reports whether m names a known display mode.
func ValidMode(m DisplayMode) bool {
	switch m {
	case ModeBars, ModeFill, ModeLine:
		return true
	}
	return false
}

// SmoothingAlpha is the single-pole smoothing coefficient applied to each
// incoming frame before drawing.
const SmoothingAlpha = 0.4

const (
	plotPadTop    = 10
	plotPadRight  = 10
	plotPadBottom = 14
	plotPadLeft   = 10

	peakLabelPad = 4
	markerRadius = 2
)

var (
	chartBackground = color.RGBA{R: 12, G: 14, B: 18, A: 255}
	curveColor      = color.RGBA{R: 64, G: 200, B: 255, A: 255}
	glowColor       = color.RGBA{R: 64, G: 200, B: 255, A: 48}
	maxHoldColor    = color.RGBA{R: 255, G: 158, B: 44, A: 255}
	averageColor    = color.RGBA{R: 120, G: 220, B: 120, A: 255}
	thresholdColor  = color.RGBA{R: 235, G: 87, B: 87, A: 255}
	peakGuideColor  = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	peakBoxFill     = color.RGBA{R: 30, G: 34, B: 42, A: 255}
	peakBoxBorder   = color.RGBA{R: 96, G: 102, B: 112, A: 255}
	cursorColor     = color.RGBA{R: 255, G: 255, B: 160, A: 255}
)

// Marker identifies one sample of the visible curve.
type Marker struct {
	Index        int
	FrequencyHz  float64
	AmplitudeDbm float64
}

// Overlays carries the externally owned data drawn on top of the live curve.
type Overlays struct {
	MaxHold []float64 // Index-aligned to the visible curve; nil to skip
	Average []float64 // Index-aligned to the visible curve; nil to skip
	Cursor  *Marker   // Hover marker; nil to skip
}

// LineChart draws the current spectrum frame as bars, a filled curve, or a
// stroked line, with exponential smoothing and a peak marker. The smoothed
// amplitude buffer and the vertical gradient cache are exclusively owned by
// one instance.
type LineChart struct {
	mode         DisplayMode
	thresholdDbm float64

	freqs    []float64
	smoothed []float64

	gradient  []color.RGBA
	gradientH int

	ann *annotator
}

// NewLineChart creates an empty chart. Pass NaN to disable the threshold line.
func NewLineChart(mode DisplayMode, thresholdDbm float64) (*LineChart, error) {
	if !ValidMode(mode) {
		return nil, fmt.Errorf("unknown display mode %q", mode)
	}

	ann, err := newAnnotator(fontSize)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}

	return &LineChart{
		mode:         mode,
		thresholdDbm: thresholdDbm,
		ann:          ann,
	}, nil
}

// Close releases the annotator resources.
func (c *LineChart) Close() error {
	return c.ann.Close()
}

// SetMode switches the drawing mode.
func (c *LineChart) SetMode(mode DisplayMode) error {
	if !ValidMode(mode) {
		return fmt.Errorf("unknown display mode %q", mode)
	}
	c.mode = mode
	return nil
}

// Mode returns the current drawing mode.
func (c *LineChart) Mode() DisplayMode {
	return c.mode
}

// SetThreshold changes the threshold line position. NaN hides it.
func (c *LineChart) SetThreshold(thresholdDbm float64) {
	c.thresholdDbm = thresholdDbm
}

// filterFrame drops samples outside the display band and non-finite values.
// An empty result substitutes a 2-point flat floor placeholder so the
// drawing code never receives empty input.
func filterFrame(frequenciesHz, amplitudesDbm []float64) (freqs, amps []float64) {
	n := min(len(frequenciesHz), len(amplitudesDbm))
	for i := 0; i < n; i++ {
		f, a := frequenciesHz[i], amplitudesDbm[i]
		if f < spectrum.MinDisplayHz || f > spectrum.MaxDisplayHz {
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || math.IsNaN(a) || math.IsInf(a, 0) {
			continue
		}
		freqs = append(freqs, f)
		amps = append(amps, a)
	}

	if len(freqs) == 0 {
		freqs = []float64{spectrum.MinDisplayHz, spectrum.MaxDisplayHz}
		amps = []float64{spectrum.MinAmplitudeDbm, spectrum.MinAmplitudeDbm}
	}
	return freqs, amps
}

// Update folds a new frame into the smoothed curve. A series length change
// resets the smoothing buffer with a direct copy; smoothing never runs
// across a shape change.
func (c *LineChart) Update(frequenciesHz, amplitudesDbm []float64) {
	freqs, amps := filterFrame(frequenciesHz, amplitudesDbm)
	c.freqs = freqs

	if len(c.smoothed) != len(amps) {
		c.smoothed = append(c.smoothed[:0:0], amps...)
		return
	}
	for i, raw := range amps {
		c.smoothed[i] += (raw - c.smoothed[i]) * SmoothingAlpha
	}
}

// Frequencies returns the visible frequency axis after filtering.
func (c *LineChart) Frequencies() []float64 {
	return c.freqs
}

// Smoothed returns the smoothed amplitude buffer, index-aligned to
// Frequencies.
func (c *LineChart) Smoothed() []float64 {
	return c.smoothed
}

// PeakIndex returns argmax of the smoothed curve, or -1 when empty.
func (c *LineChart) PeakIndex() int {
	return peakOf(c.smoothed)
}

func peakOf(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	peak := 0
	for i, v := range values {
		if v > values[peak] {
			peak = i
		}
	}
	return peak
}

// MarkerAt resolves the sample nearest to the given x pixel on a surface of
// the given width. It reports false when no curve is loaded.
func (c *LineChart) MarkerAt(xPx, surfaceWidth int) (Marker, bool) {
	if len(c.freqs) == 0 || surfaceWidth <= plotPadLeft+plotPadRight {
		return Marker{}, false
	}

	plotW := surfaceWidth - plotPadLeft - plotPadRight
	frac := float64(xPx-plotPadLeft) / float64(plotW)
	targetHz := spectrum.MinDisplayHz + clamp01(frac)*(spectrum.MaxDisplayHz-spectrum.MinDisplayHz)

	best := 0
	for i, f := range c.freqs {
		if math.Abs(f-targetHz) < math.Abs(c.freqs[best]-targetHz) {
			best = i
		}
	}
	return Marker{Index: best, FrequencyHz: c.freqs[best], AmplitudeDbm: c.smoothed[best]}, true
}

// Render draws the smoothed curve with the configured mode plus overlays,
// threshold line, and peak marker onto dst.
func (c *LineChart) Render(dst *image.RGBA, ov Overlays) error {
	bounds := dst.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= plotPadLeft+plotPadRight || height <= plotPadTop+plotPadBottom {
		return fmt.Errorf("degenerate surface %dx%d", width, height)
	}

	fillRect(dst, bounds, chartBackground)

	plot := image.Rect(
		bounds.Min.X+plotPadLeft,
		bounds.Min.Y+plotPadTop,
		bounds.Max.X-plotPadRight,
		bounds.Max.Y-plotPadBottom,
	)
	c.ensureGradient(plot.Dy())

	if len(c.freqs) == 0 {
		return nil // nothing received yet
	}

	xs, ys := c.project(plot, c.smoothed)

	switch c.mode {
	case ModeBars:
		c.renderBars(dst, plot)
	case ModeFill:
		c.renderFill(dst, plot, xs, ys)
		c.strokeCurve(dst, xs, ys, curveColor)
		c.strokeGlow(dst, xs, ys)
	default:
		c.strokeCurve(dst, xs, ys, curveColor)
	}

	if ov.MaxHold != nil && len(ov.MaxHold) == len(c.freqs) {
		hx, hy := c.project(plot, ov.MaxHold)
		c.strokeCurve(dst, hx, hy, maxHoldColor)
	}
	if ov.Average != nil && len(ov.Average) == len(c.freqs) {
		ax, ay := c.project(plot, ov.Average)
		c.strokeCurve(dst, ax, ay, averageColor)
	}

	c.renderThreshold(dst, plot)

	if err := c.renderPeak(dst, plot, xs, ys); err != nil {
		return fmt.Errorf("rendering peak marker: %w", err)
	}

	if ov.Cursor != nil && ov.Cursor.Index >= 0 && ov.Cursor.Index < len(xs) {
		i := ov.Cursor.Index
		dashedVLine(dst, xs[i], plot.Min.Y, plot.Max.Y-1, 2, 3, cursorColor)
		fillRect(dst, image.Rect(xs[i]-markerRadius, ys[i]-markerRadius, xs[i]+markerRadius+1, ys[i]+markerRadius+1), cursorColor)
	}

	return nil
}

// ensureGradient rebuilds the vertical gradient only when the chart height
// changes. All modes share this one gradient.
func (c *LineChart) ensureGradient(height int) {
	if height == c.gradientH && c.gradient != nil {
		return
	}

	c.gradient = make([]color.RGBA, max(height, 1))
	for y := range c.gradient {
		t := 1 - float64(y)/float64(max(height-1, 1))
		alpha := 32 + t*160 // stronger near the top of the plot
		c.gradient[y] = color.RGBA{
			R: curveColor.R,
			G: curveColor.G,
			B: curveColor.B,
			A: uint8(alpha),
		}
	}
	c.gradientH = height
}

// project maps the curve into pixel coordinates within plot.
func (c *LineChart) project(plot image.Rectangle, amplitudes []float64) (xs, ys []int) {
	plotW := plot.Dx() - 1
	plotH := plot.Dy() - 1
	band := spectrum.MaxDisplayHz - spectrum.MinDisplayHz

	xs = make([]int, len(c.freqs))
	ys = make([]int, len(amplitudes))
	for i, f := range c.freqs {
		xs[i] = plot.Min.X + int(math.Round((f-spectrum.MinDisplayHz)/band*float64(plotW)))
		norm := spectrum.Normalize(amplitudes[i], spectrum.MinAmplitudeDbm, spectrum.MaxAmplitudeDbm)
		ys[i] = plot.Min.Y + int(math.Round((1-norm)*float64(plotH)))
	}
	return xs, ys
}

// renderBars draws one rectangle per bucket, height proportional to the
// normalized amplitude.
func (c *LineChart) renderBars(dst *image.RGBA, plot image.Rectangle) {
	n := len(c.smoothed)
	if n == 0 {
		return
	}

	for i, amp := range c.smoothed {
		x0 := plot.Min.X + i*plot.Dx()/n
		x1 := plot.Min.X + (i+1)*plot.Dx()/n
		if x1 > x0+1 {
			x1-- // 1px gap between buckets
		}

		norm := spectrum.Normalize(amp, spectrum.MinAmplitudeDbm, spectrum.MaxAmplitudeDbm)
		top := plot.Max.Y - int(math.Round(norm*float64(plot.Dy())))
		for x := x0; x <= x1 && x < plot.Max.X; x++ {
			for y := max(top, plot.Min.Y); y < plot.Max.Y; y++ {
				dst.SetRGBA(x, y, c.gradient[clampInt(y-plot.Min.Y, 0, len(c.gradient)-1)])
			}
		}
	}
}

// renderFill fills the area under the curve column by column with the
// shared vertical gradient.
func (c *LineChart) renderFill(dst *image.RGBA, plot image.Rectangle, xs, ys []int) {
	if len(xs) < 2 {
		if len(xs) == 1 {
			for yy := max(ys[0], plot.Min.Y); yy < plot.Max.Y; yy++ {
				blendPixel(dst, xs[0], yy, c.gradient[clampInt(yy-plot.Min.Y, 0, len(c.gradient)-1)])
			}
		}
		return
	}

	seg := 0
	for x := xs[0]; x <= xs[len(xs)-1] && x < plot.Max.X; x++ {
		for seg < len(xs)-2 && xs[seg+1] <= x {
			seg++
		}

		y := ys[seg]
		if xs[seg+1] != xs[seg] {
			f := float64(x-xs[seg]) / float64(xs[seg+1]-xs[seg])
			y = ys[seg] + int(math.Round(f*float64(ys[seg+1]-ys[seg])))
		}

		for yy := max(y, plot.Min.Y); yy < plot.Max.Y; yy++ {
			blendPixel(dst, x, yy, c.gradient[clampInt(yy-plot.Min.Y, 0, len(c.gradient)-1)])
		}
	}
}

// strokeCurve draws the polyline through the projected points.
func (c *LineChart) strokeCurve(dst *image.RGBA, xs, ys []int, col color.RGBA) {
	if len(xs) == 1 {
		setClipped(dst, xs[0], ys[0], col)
		return
	}
	for i := 1; i < len(xs); i++ {
		drawLine(dst, xs[i-1], ys[i-1], xs[i], ys[i], col)
	}
}

// strokeGlow draws a wide low-opacity stroke around the top line.
func (c *LineChart) strokeGlow(dst *image.RGBA, xs, ys []int) {
	for i := range xs {
		blendVSpan(dst, xs[i], ys[i]-2, ys[i]+2, glowColor)
	}
}

// renderThreshold draws the dashed threshold line when it falls inside the
// display domain.
func (c *LineChart) renderThreshold(dst *image.RGBA, plot image.Rectangle) {
	t := c.thresholdDbm
	if math.IsNaN(t) || t < spectrum.MinAmplitudeDbm || t > spectrum.MaxAmplitudeDbm {
		return
	}
	norm := spectrum.Normalize(t, spectrum.MinAmplitudeDbm, spectrum.MaxAmplitudeDbm)
	y := plot.Min.Y + int(math.Round((1-norm)*float64(plot.Dy()-1)))
	dashedHLine(dst, plot.Min.X, plot.Max.X-1, y, 4, 4, thresholdColor)
}

// renderPeak draws the dashed peak guide, the marker point, and a label box
// that clamps to the plot padding and flips below the marker when it would
// clip the top edge.
func (c *LineChart) renderPeak(dst *image.RGBA, plot image.Rectangle, xs, ys []int) error {
	peak := peakOf(c.smoothed)
	if peak < 0 || peak >= len(xs) {
		return nil
	}
	px, py := xs[peak], ys[peak]

	dashedVLine(dst, px, plot.Min.Y, plot.Max.Y-1, 3, 3, peakGuideColor)
	fillRect(dst, image.Rect(px-markerRadius, py-markerRadius, px+markerRadius+1, py+markerRadius+1), peakGuideColor)

	label := fmt.Sprintf("%s  %.1f dBm", FormatHz(c.freqs[peak]), c.smoothed[peak])
	textW := c.ann.measure(label)
	boxW := textW + 2*peakLabelPad
	boxH := c.ann.lineHeight() + 2*peakLabelPad

	boxX := clampInt(px-boxW/2, plot.Min.X, plot.Max.X-boxW)
	boxY := py - boxH - 6
	if boxY < plot.Min.Y {
		boxY = py + 6 // flip below the marker instead of clipping
	}
	boxY = clampInt(boxY, plot.Min.Y, plot.Max.Y-boxH)

	box := image.Rect(boxX, boxY, boxX+boxW, boxY+boxH)
	fillRect(dst, box, peakBoxFill)
	hline(dst, box.Min.X, box.Max.X-1, box.Min.Y, peakBoxBorder)
	hline(dst, box.Min.X, box.Max.X-1, box.Max.Y-1, peakBoxBorder)
	vline(dst, box.Min.X, box.Min.Y, box.Max.Y-1, peakBoxBorder)
	vline(dst, box.Max.X-1, box.Min.Y, box.Max.Y-1, peakBoxBorder)

	return c.ann.drawString(dst, label, box.Min.X+peakLabelPad, box.Min.Y+peakLabelPad+c.ann.ascent())
}
