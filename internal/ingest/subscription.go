package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

// WithLogger sets the logger for the subscription.
func WithLogger(logger *slog.Logger) func(*Subscription) {
	return func(s *Subscription) {
		s.logger = logger
	}
}

// WithClock overrides the time source used by the throttle, for tests.
func WithClock(now func() time.Time) func(*Subscription) {
	return func(s *Subscription) {
		s.now = now
	}
}

// Subscription is one ingest epoch: a live channel from a Source with a
// throttle and pause gate in front of the consumer callback. A retry after
// failure creates a fresh Subscription rather than reusing this one.
type Subscription struct {
	src      Source
	onFrame  func(spectrum.Frame)
	throttle *Throttle
	now      func() time.Time

	paused  atomic.Bool
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	status  Status
	lastErr error

	logger *slog.Logger
}

// Subscribe establishes the frame channel, starts the backend session, and
// begins forwarding accepted frames to onFrame from a dedicated goroutine.
// A Start failure unwinds the subscription before returning.
func Subscribe(ctx context.Context, src Source, targetRateHz float64, onFrame func(spectrum.Frame), options ...func(*Subscription)) (*Subscription, error) {
	s := &Subscription{
		src:      src,
		onFrame:  onFrame,
		throttle: NewThrottle(targetRateHz),
		now:      time.Now,
		status:   StatusLoading,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(s)
	}

	ctx, s.cancel = context.WithCancel(ctx)

	ch, err := src.Subscribe(ctx)
	if err != nil {
		s.cancel()
		s.setStatus(StatusError, err)
		return nil, fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	if err := src.Start(ctx); err != nil {
		// Unwind the channel before reporting the start failure.
		s.cancel()
		if stopErr := src.Stop(); stopErr != nil {
			s.logger.Warn("stopping source after failed start", slog.String("error", stopErr.Error()))
		}
		s.setStatus(StatusError, err)
		return nil, fmt.Errorf("%w: %w", ErrBackendStart, err)
	}

	s.running.Store(true)
	s.wg.Add(1)
	go s.forward(ch)

	return s, nil
}

// forward drains the source channel, applying the pause gate before the
// throttle so the throttle clock does not advance during pause: the first
// frame after resume may be accepted immediately.
func (s *Subscription) forward(ch <-chan spectrum.Frame) {
	defer s.wg.Done()

	s.logger.Info("frame forwarding started")
	for frame := range ch {
		if s.paused.Load() {
			continue
		}
		// Reject malformed frames before the throttle so they cannot
		// consume the slot a valid frame would have taken.
		if !frame.Valid() {
			s.logger.Warn("dropping malformed frame",
				slog.Int("frequencies", len(frame.FrequenciesHz)),
				slog.Int("amplitudes", len(frame.AmplitudesDbm)))
			continue
		}
		if !s.throttle.Allow(s.now()) {
			continue
		}

		s.markReady()
		s.onFrame(frame)
	}
	s.logger.Info("frame forwarding stopped")

	s.running.Store(false)
}

// SetPaused toggles the pause gate. Paused frames are dropped before the
// throttle check.
func (s *Subscription) SetPaused(paused bool) {
	s.paused.Store(paused)
}

// Paused reports the pause gate state.
func (s *Subscription) Paused() bool {
	return s.paused.Load()
}

// SetRate changes the target forwarding rate.
func (s *Subscription) SetRate(targetRateHz float64) {
	s.throttle.SetRate(targetRateHz)
}

// Status returns the subscription state and the last error, if any.
func (s *Subscription) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// Running reports whether the forwarding goroutine is still draining frames.
func (s *Subscription) Running() bool {
	return s.running.Load()
}

// Unsubscribe cancels the subscription, stops the source session, and waits
// for the forwarding goroutine to exit. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	if err := s.src.Stop(); err != nil {
		s.logger.Warn("stopping source", slog.String("error", err.Error()))
	}
	s.wg.Wait()
}

func (s *Subscription) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusLoading {
		s.status = StatusReady
	}
}

func (s *Subscription) setStatus(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.lastErr = err
}
