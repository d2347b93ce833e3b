package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

const (
	legendPreferredWidth    = 80 // Amplitude legend gutter, px
	timeScalePreferredWidth = 60 // Relative time gutter, px
	minPlotWidth            = 64 // The waterfall pane never collapses below this
	colorBarWidth           = 14

	timeLabelMinRowStep  = 10 // Minimum rows between time labels
	timeLabelSpacingPx   = 40 // Target vertical spacing of time labels, px
	legendTickMarkLength = 4
)

// legendTicksDbm are the fixed amplitude ticks drawn on the legend colorbar.
var legendTicksDbm = [...]float64{-100, -80, -60, -40, -20, 0}

var (
	waterfallBackground = color.RGBA{R: 12, G: 14, B: 18, A: 255}
	dividerColor        = color.RGBA{R: 58, G: 62, B: 70, A: 255}
	labelColor          = color.RGBA{R: 196, G: 200, B: 208, A: 255}
)

// Waterfall maintains a fixed-depth scrolling raster of historical spectrum
// rows, newest on top, and composes it with a legend colorbar and a relative
// time scale into one drawing surface.
//
// The history image is exclusively owned by one Waterfall instance and is
// reallocated, discarding history, whenever width or depth changes.
type Waterfall struct {
	history  *image.RGBA
	rowTimes []time.Time
	width    int
	depth    int

	mapper       *Mapper
	scheme       ColorScheme
	thresholdDbm float64

	ann *annotator
}

// NewWaterfall creates an empty waterfall for the given scheme. Amplitudes at
// or above thresholdDbm are highlighted in pushed rows; pass NaN to disable.
func NewWaterfall(scheme ColorScheme, thresholdDbm float64) (*Waterfall, error) {
	if !ValidScheme(scheme) {
		return nil, fmt.Errorf("unknown color scheme %q", scheme)
	}

	ann, err := newAnnotator(fontSize)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	// Gutter text matches the tick marks.
	ann.setColor(image.NewUniform(labelColor))

	return &Waterfall{
		mapper:       NewMapper(scheme, spectrum.MinAmplitudeDbm, spectrum.MaxAmplitudeDbm, thresholdDbm),
		scheme:       scheme,
		thresholdDbm: thresholdDbm,
		ann:          ann,
	}, nil
}

// Close releases the annotator resources.
func (w *Waterfall) Close() error {
	return w.ann.Close()
}

// SetScheme switches the color scheme. Already-rendered history rows keep
// their pixels; only new rows and the legend use the new gradient.
func (w *Waterfall) SetScheme(scheme ColorScheme) error {
	if !ValidScheme(scheme) {
		return fmt.Errorf("unknown color scheme %q", scheme)
	}
	if scheme == w.scheme {
		return nil
	}
	w.scheme = scheme
	w.mapper = NewMapper(scheme, spectrum.MinAmplitudeDbm, spectrum.MaxAmplitudeDbm, w.thresholdDbm)
	return nil
}

// SetThreshold changes the highlight threshold for subsequently pushed rows.
func (w *Waterfall) SetThreshold(thresholdDbm float64) {
	if thresholdDbm == w.thresholdDbm {
		return
	}
	w.thresholdDbm = thresholdDbm
	w.mapper = NewMapper(w.scheme, spectrum.MinAmplitudeDbm, spectrum.MaxAmplitudeDbm, thresholdDbm)
}

// EnsureCapacity guarantees the history raster is width x depth pixels.
// When dimensions already match, this is a no-op; otherwise the raster is
// reallocated, filled with the floor color, and all row timestamps reset.
// Resizing discards history by design. It reports whether a reallocation
// happened.
func (w *Waterfall) EnsureCapacity(width, depth int) bool {
	if width < 1 || depth < 1 {
		return false
	}
	if w.history != nil && w.width == width && w.depth == depth {
		return false
	}

	w.history = image.NewRGBA(image.Rect(0, 0, width, depth))
	fillRect(w.history, w.history.Bounds(), w.mapper.FloorColor())
	w.rowTimes = make([]time.Time, depth)
	w.width = width
	w.depth = depth
	return true
}

// PushRow scrolls the history down one row and writes amplitudes, resampled
// to the raster width, into the top row. The row shift completes fully before
// the new row is written, so a partially shifted raster is never observable.
func (w *Waterfall) PushRow(amplitudes []float64, width, depth int, now time.Time) {
	w.EnsureCapacity(width, depth)
	if w.history == nil || len(amplitudes) == 0 {
		return
	}

	// Shift rows [0..H-2] to [1..H-1] as one block copy.
	stride := w.history.Stride
	copy(w.history.Pix[stride:], w.history.Pix[:stride*(w.depth-1)])

	n := len(amplitudes)
	for x := 0; x < w.width; x++ {
		src := x * n / w.width // floor(x/width * N)
		w.history.SetRGBA(x, 0, w.mapper.GetColor(amplitudes[src]))
	}

	copy(w.rowTimes[1:], w.rowTimes[:w.depth-1])
	w.rowTimes[0] = now
}

// History exposes the backing raster for tests and direct blitting.
func (w *Waterfall) History() *image.RGBA {
	return w.history
}

// RowTimes exposes the per-row capture times, index-aligned to the raster.
func (w *Waterfall) RowTimes() []time.Time {
	return w.rowTimes
}

// Layout describes the horizontal split of the composed surface.
type Layout struct {
	LegendWidth int
	PlotWidth   int
	TimeWidth   int
}

// PlanLayout reports how a surface of the given total width will be split,
// letting callers size history pushes against the waterfall pane width.
func PlanLayout(totalWidth int) Layout {
	return splitLayout(totalWidth)
}

// splitLayout divides the total width into [legend][waterfall][timeScale].
// Gutters hold their preferred widths until the waterfall pane would fall
// below its minimum, then shrink toward zero; the pane itself never fully
// collapses.
func splitLayout(total int) Layout {
	l := Layout{LegendWidth: legendPreferredWidth, TimeWidth: timeScalePreferredWidth}
	l.PlotWidth = total - l.LegendWidth - l.TimeWidth
	if l.PlotWidth >= minPlotWidth {
		return l
	}

	avail := total - minPlotWidth
	if avail <= 0 {
		return Layout{PlotWidth: max(total, 0)}
	}

	l.LegendWidth = avail * legendPreferredWidth / (legendPreferredWidth + timeScalePreferredWidth)
	l.TimeWidth = avail - l.LegendWidth
	l.PlotWidth = total - l.LegendWidth - l.TimeWidth
	return l
}

// Render composes the waterfall view into dst: background, history raster,
// divider lines, legend colorbar with fixed dBm ticks, and the relative
// time gutter. now anchors the "-Ns" labels.
func (w *Waterfall) Render(dst *image.RGBA, now time.Time) error {
	bounds := dst.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 1 || height < 1 {
		return fmt.Errorf("degenerate surface %dx%d", width, height)
	}

	fillRect(dst, bounds, waterfallBackground)

	layout := splitLayout(width)
	plotArea := image.Rect(
		bounds.Min.X+layout.LegendWidth,
		bounds.Min.Y,
		bounds.Min.X+layout.LegendWidth+layout.PlotWidth,
		bounds.Max.Y,
	)
	if w.history != nil {
		draw.Draw(dst, plotArea, w.history, image.Point{}, draw.Src)
	}

	if layout.LegendWidth > 0 {
		vline(dst, plotArea.Min.X-1, bounds.Min.Y, bounds.Max.Y-1, dividerColor)
		if err := w.renderLegend(dst, bounds, layout); err != nil {
			return fmt.Errorf("rendering legend: %w", err)
		}
	}
	if layout.TimeWidth > 0 {
		vline(dst, plotArea.Max.X, bounds.Min.Y, bounds.Max.Y-1, dividerColor)
		if err := w.renderTimeScale(dst, bounds, layout, now); err != nil {
			return fmt.Errorf("rendering time scale: %w", err)
		}
	}

	return nil
}

// renderLegend draws the colorbar and fixed amplitude ticks into the left
// gutter. Tick positions interpolate linearly over the display domain.
func (w *Waterfall) renderLegend(dst *image.RGBA, bounds image.Rectangle, layout Layout) error {
	height := bounds.Dy()
	barWidth := min(colorBarWidth, layout.LegendWidth)
	barX0 := bounds.Min.X + layout.LegendWidth - barWidth - 1
	if barX0 < bounds.Min.X {
		barX0 = bounds.Min.X
	}

	grad := gradient(w.scheme)
	for y := 0; y < height; y++ {
		t := 1 - float64(y)/float64(max(height-1, 1)) // top = ceiling
		c := grad(t)
		hline(dst, barX0, barX0+barWidth-1, bounds.Min.Y+y, c)
	}

	if layout.LegendWidth <= barWidth+legendTickMarkLength {
		return nil // no room for labels
	}

	span := spectrum.MaxAmplitudeDbm - spectrum.MinAmplitudeDbm
	lineH := w.ann.lineHeight()
	for _, tick := range legendTicksDbm {
		t := (tick - spectrum.MinAmplitudeDbm) / span
		y := bounds.Min.Y + int(math.Round((1-t)*float64(height-1)))
		hline(dst, barX0-legendTickMarkLength, barX0-1, y, labelColor)

		label := fmt.Sprintf("%.0f", tick)
		labelX := barX0 - legendTickMarkLength - w.ann.measure(label) - 2
		labelY := clampInt(y+lineH/2, lineH, bounds.Max.Y-1)
		if labelX < bounds.Min.X {
			continue
		}
		if err := w.ann.drawString(dst, label, labelX, labelY); err != nil {
			return err
		}
	}

	return nil
}

// renderTimeScale draws "-Ns" labels into the right gutter, sampled sparsely
// enough that labels do not overlap.
func (w *Waterfall) renderTimeScale(dst *image.RGBA, bounds image.Rectangle, layout Layout, now time.Time) error {
	height := bounds.Dy()
	rowCount := w.depth
	if rowCount == 0 || height == 0 {
		return nil
	}

	step := int(math.Ceil(float64(timeLabelSpacingPx) * float64(rowCount) / float64(height)))
	if step < timeLabelMinRowStep {
		step = timeLabelMinRowStep
	}

	// Rows are blitted 1:1, so a row's y position is its index.
	x0 := bounds.Min.X + layout.LegendWidth + layout.PlotWidth
	lineH := w.ann.lineHeight()
	for row := 0; row < rowCount && row < height; row += step {
		ts := w.rowTimes[row]
		if ts.IsZero() {
			continue // row never filled
		}

		y := bounds.Min.Y + row
		hline(dst, x0+1, x0+4, y, labelColor)

		label := fmt.Sprintf("-%ds", int(math.Round(now.Sub(ts).Seconds())))
		labelY := clampInt(y+lineH/2, lineH, bounds.Max.Y-1)
		if err := w.ann.drawString(dst, label, x0+7, labelY); err != nil {
			return err
		}
	}

	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
