package spectrum

import "math"

// Display bounds for the instrument class this viewer targets. The amplitude
// domain and frequency band are fixed constants, not negotiated axes.
const (
	MinAmplitudeDbm = -100.0 // Display floor in dBm
	MaxAmplitudeDbm = 0.0    // Display ceiling in dBm

	MinDisplayHz = 0.0     // Lower edge of the display band in Hz
	MaxDisplayHz = 10000.0 // Upper edge of the display band in Hz
)

// Frame represents a single spectrum measurement pushed by the backend:
// a set of frequency bins with their measured amplitudes at one instant.
type Frame struct {
	TimestampMs   uint64    `json:"timestampMs"`   // Capture time in Unix milliseconds
	FrequenciesHz []float64 `json:"frequenciesHz"` // Bin center frequencies in Hz
	AmplitudesDbm []float64 `json:"amplitudesDbm"` // Measured amplitudes in dBm, index-aligned to FrequenciesHz
}

// Valid reports whether the frame carries a usable, index-aligned spectrum.
func (f *Frame) Valid() bool {
	return len(f.FrequenciesHz) > 0 && len(f.FrequenciesHz) == len(f.AmplitudesDbm)
}

// Clamp limits an amplitude to the display domain.
func Clamp(amplitudeDbm float64) float64 {
	return math.Min(MaxAmplitudeDbm, math.Max(MinAmplitudeDbm, amplitudeDbm))
}

// Normalize maps an amplitude into [0, 1] against the given bounds,
// clamping out-of-range inputs. Non-finite inputs map to 0.
func Normalize(amplitudeDbm, minDbm, maxDbm float64) float64 {
	if maxDbm <= minDbm || math.IsNaN(amplitudeDbm) || math.IsInf(amplitudeDbm, 0) {
		return 0
	}
	n := (amplitudeDbm - minDbm) / (maxDbm - minDbm)
	return math.Min(1, math.Max(0, n))
}
