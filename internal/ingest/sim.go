package ingest

import (
	"context"
	"math"
	"math/cmplx"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

const (
	simSampleRate = 20000 // Hz; Nyquist matches the 10 kHz display band
	simFFTSize    = 512

	simMinCarrierHz = 500.0
	simMaxCarrierHz = 9500.0
)

// WithSeed fixes the simulator's random source, for reproducible streams.
func WithSeed(seed int64) func(*SimSource) {
	return func(s *SimSource) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// SimSource synthesizes spectrum frames from a windowed time-domain signal:
// a slowly drifting carrier over a noise floor, transformed with an FFT.
// It stands in for the live backend during development and tests.
type SimSource struct {
	rateHz float64
	rng    *rand.Rand

	fft    *fourier.FFT
	window []float64
	winSum float64
	freqs  []float64

	carrierHz  float64
	carrierAmp float64

	subscribed atomic.Bool
	ch         chan spectrum.Frame
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewSimSource creates a simulator emitting frames at rateHz.
func NewSimSource(rateHz float64, options ...func(*SimSource)) *SimSource {
	fft := fourier.NewFFT(simFFTSize)

	window := make([]float64, simFFTSize)
	winSum := 0.0
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(simFFTSize-1)))
		winSum += window[i]
	}

	freqs := make([]float64, simFFTSize/2+1)
	for i := range freqs {
		freqs[i] = float64(i) * simSampleRate / simFFTSize
	}

	s := &SimSource{
		rateHz:     rateHz,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		fft:        fft,
		window:     window,
		winSum:     winSum,
		freqs:      freqs,
		carrierHz:  2400,
		carrierAmp: 0.4,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Subscribe establishes the frame channel for one session epoch.
func (s *SimSource) Subscribe(ctx context.Context) (<-chan spectrum.Frame, error) {
	if s.subscribed.Swap(true) {
		return nil, ErrAlreadyRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.ch = make(chan spectrum.Frame, 1)

	s.wg.Add(1)
	go s.run(ctx)

	return s.ch, nil
}

// Start begins emission. The simulator has no session handshake to fail.
func (s *SimSource) Start(ctx context.Context) error {
	return nil
}

// Stop ends the session and releases the channel. The source can be
// subscribed again afterwards for a new epoch.
func (s *SimSource) Stop() error {
	if !s.subscribed.Load() {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.subscribed.Store(false)
	return nil
}

func (s *SimSource) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.ch)

	interval := time.Second / 30
	if s.rateHz > 0 {
		interval = time.Duration(float64(time.Second) / s.rateHz)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame := s.synthesize(now)
			select {
			case s.ch <- frame:
			case <-ctx.Done():
				return
			default:
				// Consumer is behind; drop rather than block the clock.
			}
		}
	}
}

// synthesize produces one frame: drift the carrier, build a windowed time
// signal, and convert the FFT magnitudes to the display's dBm domain.
func (s *SimSource) synthesize(now time.Time) spectrum.Frame {
	s.carrierHz += (s.rng.Float64() - 0.5) * 120
	s.carrierHz = math.Max(simMinCarrierHz, math.Min(simMaxCarrierHz, s.carrierHz))
	s.carrierAmp += (s.rng.Float64() - 0.5) * 0.02
	s.carrierAmp = math.Max(0.1, math.Min(0.8, s.carrierAmp))

	signal := make([]float64, simFFTSize)
	phase := s.rng.Float64() * 2 * math.Pi
	for i := range signal {
		t := float64(i) / simSampleRate
		v := s.carrierAmp * math.Sin(2*math.Pi*s.carrierHz*t+phase)
		v += (s.rng.Float64() - 0.5) * 0.004 // noise floor
		signal[i] = v * s.window[i]
	}

	coeffs := s.fft.Coefficients(nil, signal)
	amps := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mag := cmplx.Abs(c) * 2 / s.winSum
		amps[i] = spectrum.Clamp(20 * math.Log10(mag+1e-10))
	}

	return spectrum.Frame{
		TimestampMs:   uint64(now.UnixMilli()),
		FrequenciesHz: append([]float64(nil), s.freqs...),
		AmplitudesDbm: amps,
	}
}
