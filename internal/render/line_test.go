package render

import (
	"image"
	"math"
	"testing"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

func newTestSurface(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func newTestChart(t *testing.T, mode DisplayMode) *LineChart {
	t.Helper()
	c, err := NewLineChart(mode, math.NaN())
	if err != nil {
		t.Fatalf("Failed to create line chart: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestValidMode(t *testing.T) {
	for _, m := range []DisplayMode{ModeBars, ModeFill, ModeLine} {
		if !ValidMode(m) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if ValidMode("scatter") {
		t.Error(`ValidMode("scatter") = true`)
	}
}

func TestNewLineChartRejectsUnknownMode(t *testing.T) {
	if _, err := NewLineChart("scatter", math.NaN()); err == nil {
		t.Error("NewLineChart with unknown mode did not fail")
	}
}

func TestFilterFrame(t *testing.T) {
	tests := []struct {
		name      string
		freqs     []float64
		amps      []float64
		wantFreqs []float64
		wantAmps  []float64
	}{
		{
			name:      "in band passes through",
			freqs:     []float64{0, 5000, 10000},
			amps:      []float64{-90, -40, -90},
			wantFreqs: []float64{0, 5000, 10000},
			wantAmps:  []float64{-90, -40, -90},
		},
		{
			name:      "out of band dropped",
			freqs:     []float64{-100, 5000, 12000},
			amps:      []float64{-10, -40, -10},
			wantFreqs: []float64{5000},
			wantAmps:  []float64{-40},
		},
		{
			name:      "non-finite dropped",
			freqs:     []float64{1000, 2000, 3000},
			amps:      []float64{math.NaN(), -40, math.Inf(1)},
			wantFreqs: []float64{2000},
			wantAmps:  []float64{-40},
		},
		{
			name:      "empty input yields floor placeholder",
			freqs:     nil,
			amps:      nil,
			wantFreqs: []float64{spectrum.MinDisplayHz, spectrum.MaxDisplayHz},
			wantAmps:  []float64{spectrum.MinAmplitudeDbm, spectrum.MinAmplitudeDbm},
		},
		{
			name:      "all filtered yields floor placeholder",
			freqs:     []float64{20000, 30000},
			amps:      []float64{-10, -10},
			wantFreqs: []float64{spectrum.MinDisplayHz, spectrum.MaxDisplayHz},
			wantAmps:  []float64{spectrum.MinAmplitudeDbm, spectrum.MinAmplitudeDbm},
		},
		{
			name:      "mismatched lengths use shorter",
			freqs:     []float64{1000, 2000, 3000},
			amps:      []float64{-50},
			wantFreqs: []float64{1000},
			wantAmps:  []float64{-50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freqs, amps := filterFrame(tt.freqs, tt.amps)
			if len(freqs) != len(tt.wantFreqs) {
				t.Fatalf("got %d samples, want %d", len(freqs), len(tt.wantFreqs))
			}
			for i := range freqs {
				if freqs[i] != tt.wantFreqs[i] || amps[i] != tt.wantAmps[i] {
					t.Errorf("sample %d = (%v, %v), want (%v, %v)", i, freqs[i], amps[i], tt.wantFreqs[i], tt.wantAmps[i])
				}
			}
		})
	}
}

func TestUpdateSmoothing(t *testing.T) {
	c := newTestChart(t, ModeLine)

	freqs := []float64{100, 200, 300}
	first := []float64{-80, -60, -40}
	second := []float64{-40, -40, -40}

	// First update seeds by direct copy.
	c.Update(freqs, first)
	for i, v := range c.Smoothed() {
		if v != first[i] {
			t.Errorf("Smoothed[%d] = %v after seed, want %v", i, v, first[i])
		}
	}

	// Second update applies single-pole smoothing.
	c.Update(freqs, second)
	for i, v := range c.Smoothed() {
		want := first[i] + (second[i]-first[i])*SmoothingAlpha
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("Smoothed[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestUpdateShapeChangeResets(t *testing.T) {
	c := newTestChart(t, ModeLine)

	c.Update([]float64{100, 200, 300}, []float64{-80, -60, -40})
	c.Update([]float64{100, 200}, []float64{-10, -20})

	got := c.Smoothed()
	if len(got) != 2 || got[0] != -10 || got[1] != -20 {
		t.Errorf("Smoothed after shape change = %v, want direct copy [-10 -20]", got)
	}
}

func TestPeakIndex(t *testing.T) {
	c := newTestChart(t, ModeLine)

	if got := c.PeakIndex(); got != -1 {
		t.Errorf("PeakIndex on empty chart = %d, want -1", got)
	}

	c.Update([]float64{100, 200, 300}, []float64{-80, -30, -60})
	if got := c.PeakIndex(); got != 1 {
		t.Errorf("PeakIndex = %d, want 1", got)
	}
}

func TestMarkerAt(t *testing.T) {
	c := newTestChart(t, ModeLine)

	if _, ok := c.MarkerAt(50, 120); ok {
		t.Error("MarkerAt on empty chart reported ok")
	}

	c.Update([]float64{0, 5000, 10000}, []float64{-90, -40, -90})

	// The surface is 120px wide with 10px pads; mid-plot maps to 5 kHz.
	m, ok := c.MarkerAt(plotPadLeft+50, 120)
	if !ok {
		t.Fatal("MarkerAt reported not ok")
	}
	if m.Index != 1 || m.FrequencyHz != 5000 {
		t.Errorf("MarkerAt mid-plot = %+v, want index 1 at 5000 Hz", m)
	}

	// Far left resolves to the first sample even off the plot edge.
	m, _ = c.MarkerAt(0, 120)
	if m.Index != 0 {
		t.Errorf("MarkerAt left edge index = %d, want 0", m.Index)
	}
}

func TestRenderModes(t *testing.T) {
	for _, mode := range []DisplayMode{ModeBars, ModeFill, ModeLine} {
		t.Run(string(mode), func(t *testing.T) {
			c := newTestChart(t, mode)
			c.Update([]float64{0, 2500, 5000, 7500, 10000}, []float64{-90, -60, -30, -60, -90})

			dst := newTestSurface(200, 120)
			if err := c.Render(dst, Overlays{}); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
		})
	}
}

func TestRenderWithOverlays(t *testing.T) {
	c := newTestChart(t, ModeFill)
	c.Update([]float64{0, 5000, 10000}, []float64{-90, -40, -90})

	ov := Overlays{
		MaxHold: []float64{-85, -35, -85},
		Average: []float64{-88, -45, -88},
		Cursor:  &Marker{Index: 1, FrequencyHz: 5000, AmplitudeDbm: -40},
	}
	if err := c.Render(newTestSurface(200, 120), ov); err != nil {
		t.Fatalf("Render with overlays failed: %v", err)
	}

	// Length-mismatched overlays are skipped, not a crash.
	ov.MaxHold = []float64{-85}
	if err := c.Render(newTestSurface(200, 120), ov); err != nil {
		t.Fatalf("Render with mismatched overlay failed: %v", err)
	}
}

func TestRenderPlaceholderNeverCrashes(t *testing.T) {
	c := newTestChart(t, ModeFill)

	// Force the empty-input placeholder through the full draw path.
	c.Update(nil, nil)
	if err := c.Render(newTestSurface(200, 120), Overlays{}); err != nil {
		t.Fatalf("Render of placeholder failed: %v", err)
	}
}

func TestRenderDegenerateSurface(t *testing.T) {
	c := newTestChart(t, ModeLine)
	c.Update([]float64{0, 10000}, []float64{-90, -90})

	if err := c.Render(newTestSurface(10, 10), Overlays{}); err == nil {
		t.Error("Render on degenerate surface did not fail")
	}
}
