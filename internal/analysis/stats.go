// Package analysis derives the numeric readouts shown next to the live
// spectrum view: peak position, -3 dB bandwidth, mean amplitude, and the
// max-hold / average running aggregates.
package analysis

// FrameStats holds the per-frame measurements read off the spectrum.
type FrameStats struct {
	PeakIndex        int
	PeakFrequencyHz  float64
	PeakAmplitudeDbm float64
	AverageDbm       float64
	BandwidthHz      float64
}

// bandwidthDropDb is the level below the peak that bounds the reported
// bandwidth region.
const bandwidthDropDb = 3.0

// Analyze computes peak and bandwidth statistics for one frame. It reports
// false for empty or length-mismatched input.
//
// The -3 dB bandwidth scans left to right for the first sample at or above
// peak-3 dB and right to left for the last one; the scans default to the
// band edges, and since the peak itself always qualifies they terminate at
// or inside the peak. A single qualifying sample reports zero bandwidth.
func Analyze(frequenciesHz, amplitudesDbm []float64) (FrameStats, bool) {
	n := len(amplitudesDbm)
	if n == 0 || len(frequenciesHz) != n {
		return FrameStats{}, false
	}

	peak := 0
	sum := 0.0
	for i, v := range amplitudesDbm {
		sum += v
		if v > amplitudesDbm[peak] {
			peak = i
		}
	}

	threshold := amplitudesDbm[peak] - bandwidthDropDb

	lowFreq := frequenciesHz[0]
	for i := 0; i < n; i++ {
		if amplitudesDbm[i] >= threshold {
			lowFreq = frequenciesHz[i]
			break
		}
	}

	highFreq := frequenciesHz[n-1]
	for i := n - 1; i >= 0; i-- {
		if amplitudesDbm[i] >= threshold {
			highFreq = frequenciesHz[i]
			break
		}
	}

	return FrameStats{
		PeakIndex:        peak,
		PeakFrequencyHz:  frequenciesHz[peak],
		PeakAmplitudeDbm: amplitudesDbm[peak],
		AverageDbm:       sum / float64(n),
		BandwidthHz:      highFreq - lowFreq,
	}, true
}

// Aggregates owns the max-hold and running-average series shared between the
// line renderer and the settings surface. All mutation goes through Update
// and the explicit resets; there is no other writer.
type Aggregates struct {
	maxHold []float64
	average []float64
	count   int
}

// NewAggregates returns empty aggregates; the first Update seeds both series.
func NewAggregates() *Aggregates {
	return &Aggregates{}
}

// Update folds one frame's amplitudes into both aggregates. A series length
// change reseeds rather than mixing shapes.
func (a *Aggregates) Update(amplitudesDbm []float64) {
	if len(amplitudesDbm) == 0 {
		return
	}

	if len(a.maxHold) != len(amplitudesDbm) {
		a.maxHold = append(a.maxHold[:0:0], amplitudesDbm...)
	} else {
		for i, v := range amplitudesDbm {
			if v > a.maxHold[i] {
				a.maxHold[i] = v
			}
		}
	}

	if len(a.average) != len(amplitudesDbm) {
		a.average = append(a.average[:0:0], amplitudesDbm...)
		a.count = 1
	} else {
		a.count++
		inv := 1 / float64(a.count)
		for i, v := range amplitudesDbm {
			a.average[i] += (v - a.average[i]) * inv
		}
	}
}

// MaxHold returns the per-bin running maximum, non-decreasing until reset.
func (a *Aggregates) MaxHold() []float64 {
	return a.maxHold
}

// Average returns the per-bin incremental mean.
func (a *Aggregates) Average() []float64 {
	return a.average
}

// ResetMaxHold clears the max-hold series; the next Update reseeds it.
func (a *Aggregates) ResetMaxHold() {
	a.maxHold = nil
}

// ResetAverage clears the average series; the next Update reseeds it.
func (a *Aggregates) ResetAverage() {
	a.average = nil
	a.count = 0
}

// Reset clears both aggregates.
func (a *Aggregates) Reset() {
	a.ResetMaxHold()
	a.ResetAverage()
}
