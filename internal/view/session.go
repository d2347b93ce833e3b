// Package view hosts the chart lifecycle controller. A Session owns
// the composed drawing surface, the render loop pacing, and the data
// subscription for one spectrum pane: frames arriving from the ingest
// layer are staged and consumed at paint boundaries, never drawn
// synchronously inside the delivery callback.
package view

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Three-summers/spectraview/internal/analysis"
	"github.com/Three-summers/spectraview/internal/ingest"
	"github.com/Three-summers/spectraview/internal/render"
	"github.com/Three-summers/spectraview/internal/spectrum"
)

// ErrRenderInit indicates that a drawing primitive could not be
// constructed, for example because of an invalid scheme or mode.
var ErrRenderInit = errors.New("render init failed")

// ErrClosed is returned by operations on a Session after Close.
var ErrClosed = errors.New("session closed")

// DefaultMaxFPS caps the continuous render loop.
const DefaultMaxFPS = 30.0

// DefaultHistoryDepth is the waterfall history depth in rows.
const DefaultHistoryDepth = 200

// Config carries the initial display parameters of a Session.
type Config struct {
	TargetRateHz float64
	HistoryDepth int
	Scheme       render.ColorScheme
	Mode         render.DisplayMode
	ThresholdDbm float64
	MaxFPS       float64
}

func (c *Config) setDefaults() {
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = DefaultHistoryDepth
	}
	if c.Scheme == "" {
		c.Scheme = render.SchemeTurbo
	}
	if c.Mode == "" {
		c.Mode = render.ModeFill
	}
	if c.MaxFPS <= 0 {
		c.MaxFPS = DefaultMaxFPS
	}
}

// ViewportSize is the observed container box plus device pixel ratio.
// Backing store dimensions are recomputed only when it changes.
type ViewportSize struct {
	WidthPx    int
	HeightPx   int
	PixelRatio float64
}

func (v ViewportSize) backing() (w, h int) {
	r := v.PixelRatio
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		r = 1
	}
	return int(math.Round(float64(v.WidthPx) * r)), int(math.Round(float64(v.HeightPx) * r))
}

// WithLogger sets the logger used by the Session and its subscription.
func WithLogger(logger *slog.Logger) func(*Session) {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) func(*Session) {
	return func(s *Session) {
		s.now = now
	}
}

// WithFrameSink registers a callback invoked for every accepted frame,
// after throttling. Used to feed a recording store.
func WithFrameSink(sink func(spectrum.Frame)) func(*Session) {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithMarkerFunc registers a callback invoked when the hover marker
// changes. Duplicate positions are not re-emitted.
func WithMarkerFunc(fn func(render.Marker)) func(*Session) {
	return func(s *Session) {
		s.onMarker = fn
	}
}

// Session is the lifecycle controller for one spectrum pane: a line
// chart stacked above the waterfall on a single backing surface.
type Session struct {
	logger   *slog.Logger
	now      func() time.Time
	sink     func(spectrum.Frame)
	onMarker func(render.Marker)

	src ingest.Source

	closed atomic.Bool

	mu  sync.Mutex
	cfg Config

	sub     *ingest.Subscription
	subCtx  context.Context
	started bool
	visible bool

	line      *render.LineChart
	waterfall *render.Waterfall
	agg       *analysis.Aggregates

	surface *image.RGBA
	size    ViewportSize
	dirty   bool

	// pending is guarded by its own mutex: onFrame runs on the
	// subscription goroutine and must never contend with teardown
	// paths that hold mu while waiting for that goroutine to exit.
	pendingMu sync.Mutex
	pending   *spectrum.Frame

	lastDraw   time.Time
	stats      analysis.FrameStats
	statsValid bool
	cursor     *render.Marker

	initErr error
}

// NewSession constructs the pane controller and its drawing
// primitives. Construction failures wrap ErrRenderInit; the instance
// is not usable and must not be retried in place, create a new one or
// call Retry on a started session instead.
func NewSession(src ingest.Source, cfg Config, options ...func(*Session)) (*Session, error) {
	cfg.setDefaults()

	s := &Session{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		src:     src,
		cfg:     cfg,
		visible: true,
		agg:     analysis.NewAggregates(),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.buildRenderers(); err != nil {
		return nil, err
	}
	return s, nil
}

// buildRenderers creates the line chart and waterfall, disposing any
// partial instance on failure. Caller holds the lock (or the session
// is not yet shared).
func (s *Session) buildRenderers() error {
	line, err := render.NewLineChart(s.cfg.Mode, s.cfg.ThresholdDbm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRenderInit, err)
	}

	waterfall, err := render.NewWaterfall(s.cfg.Scheme, s.cfg.ThresholdDbm)
	if err != nil {
		_ = line.Close()
		return fmt.Errorf("%w: %w", ErrRenderInit, err)
	}

	s.line = line
	s.waterfall = waterfall
	return nil
}

// Start opens the data subscription. The context bounds the whole
// session; cancellation stops frame delivery.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return nil
	}

	s.subCtx = ctx
	s.started = true
	return s.subscribeLocked()
}

func (s *Session) subscribeLocked() error {
	sub, err := ingest.Subscribe(s.subCtx, s.src, s.cfg.TargetRateHz, s.onFrame, ingest.WithLogger(s.logger), ingest.WithClock(s.now))
	if err != nil {
		s.initErr = err
		return err
	}

	s.initErr = nil
	s.sub = sub
	return nil
}

// onFrame stages the accepted frame for the next paint. It runs on the
// subscription goroutine and must not touch drawing state.
func (s *Session) onFrame(f spectrum.Frame) {
	if s.closed.Load() {
		return
	}

	if s.sink != nil {
		s.sink(f)
	}

	s.pendingMu.Lock()
	s.pending = &f
	s.pendingMu.Unlock()
}

// takePending removes and returns the staged frame, if any.
func (s *Session) takePending() (spectrum.Frame, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if s.pending == nil {
		return spectrum.Frame{}, false
	}
	f := *s.pending
	s.pending = nil
	return f, true
}

// Tick is the paint-boundary callback. It consumes at most one staged
// frame, updates history and analysis, and recomposes the surface.
// Returns true when the surface was redrawn. Hidden sessions and calls
// under the frame-rate budget return immediately.
func (s *Session) Tick() bool {
	if s.closed.Load() {
		return false
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.visible || s.surface == nil {
		return false
	}

	budget := time.Duration(float64(time.Second) / s.cfg.MaxFPS)
	if !s.lastDraw.IsZero() && now.Sub(s.lastDraw) < budget {
		return false
	}

	paused := s.sub != nil && s.sub.Paused()

	if !paused {
		if f, ok := s.takePending(); ok {
			s.ingestLocked(f, now)
			s.dirty = true
		}
	}

	if !s.dirty {
		return false
	}

	s.composeLocked(now)
	s.lastDraw = now
	s.dirty = false
	return true
}

// ingestLocked folds one accepted frame into the smoothed series, the
// running aggregates, the frame stats and the waterfall history.
func (s *Session) ingestLocked(f spectrum.Frame, now time.Time) {
	s.line.Update(f.FrequenciesHz, f.AmplitudesDbm)
	s.agg.Update(s.line.Smoothed())

	if st, ok := analysis.Analyze(s.line.Frequencies(), s.line.Smoothed()); ok {
		s.stats = st
		s.statsValid = true
	}

	w, _ := s.size.backing()
	layout := render.PlanLayout(w)
	s.waterfall.PushRow(f.AmplitudesDbm, layout.PlotWidth, s.cfg.HistoryDepth, now)
}

// composeLocked redraws both panes into the backing surface. Draw-time
// failures are logged and leave the previous pixels in place; one bad
// frame must not kill the loop.
func (s *Session) composeLocked(now time.Time) {
	b := s.surface.Bounds()
	lineH := b.Dy() / 2

	linePane := s.surface.SubImage(image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+lineH)).(*image.RGBA)
	waterPane := s.surface.SubImage(image.Rect(b.Min.X, b.Min.Y+lineH, b.Max.X, b.Max.Y)).(*image.RGBA)

	ov := render.Overlays{
		MaxHold: s.agg.MaxHold(),
		Average: s.agg.Average(),
		Cursor:  s.cursor,
	}
	if err := s.line.Render(linePane, ov); err != nil {
		s.logger.Warn("line chart draw failed", "error", err)
	}
	if err := s.waterfall.Render(waterPane, now); err != nil {
		s.logger.Warn("waterfall draw failed", "error", err)
	}
}

// Resize recomputes the backing store from the observed box. A size
// equal to the cached one is a no-op. An actual change reallocates the
// surface and the waterfall history; prior rows are discarded. The
// repaint happens on the next Tick even while paused.
func (s *Session) Resize(size ViewportSize) {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if size == s.size && s.surface != nil {
		return
	}
	s.size = size

	w, h := size.backing()
	if w <= 0 || h <= 0 {
		s.surface = nil
		return
	}

	s.surface = image.NewRGBA(image.Rect(0, 0, w, h))

	layout := render.PlanLayout(w)
	s.waterfall.EnsureCapacity(layout.PlotWidth, s.cfg.HistoryDepth)

	s.dirty = true
	// Force an immediate repaint regardless of the FPS budget.
	s.lastDraw = time.Time{}
}

// SetVisible gates both the render loop and the subscription. Hiding
// stops frame delivery but keeps the last-drawn surface; showing again
// resubscribes in a fresh epoch.
func (s *Session) SetVisible(visible bool) {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if visible == s.visible {
		return
	}
	s.visible = visible

	if !visible {
		s.unsubscribeLocked()
		return
	}

	if s.started {
		if err := s.subscribeLocked(); err != nil {
			s.logger.Warn("resubscribe on show failed", "error", err)
		}
		s.dirty = true
	}
}

func (s *Session) unsubscribeLocked() {
	if s.sub == nil {
		return
	}
	s.sub.Unsubscribe()
	s.sub = nil

	s.pendingMu.Lock()
	s.pending = nil
	s.pendingMu.Unlock()
}

// Retry tears down any live or failed subscription and re-attempts it
// in a new epoch. Used by the error-state affordance.
func (s *Session) Retry() error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return errors.New("session not started")
	}

	s.unsubscribeLocked()
	return s.subscribeLocked()
}

// SetPaused freezes or resumes frame intake. The frozen surface keeps
// repainting on resize; history and stats do not advance.
func (s *Session) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		s.sub.SetPaused(paused)
	}
}

// TogglePause flips the pause gate and reports the new state.
func (s *Session) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return false
	}
	paused := !s.sub.Paused()
	s.sub.SetPaused(paused)
	return paused
}

// Paused reports whether frame intake is currently frozen.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil && s.sub.Paused()
}

// SetDisplayMode switches the line chart between bars, fill and line.
func (s *Session) SetDisplayMode(mode render.DisplayMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.line.SetMode(mode); err != nil {
		return err
	}
	s.cfg.Mode = mode
	s.dirty = true
	return nil
}

// Mode returns the current line chart display mode.
func (s *Session) Mode() render.DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Mode
}

// Scheme returns the current waterfall color scheme.
func (s *Session) Scheme() render.ColorScheme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Scheme
}

// SetColorScheme switches the waterfall gradient. Existing history
// rows keep their already-mapped colors.
func (s *Session) SetColorScheme(scheme render.ColorScheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.waterfall.SetScheme(scheme); err != nil {
		return err
	}
	s.cfg.Scheme = scheme
	s.dirty = true
	return nil
}

// SetThreshold updates the highlight threshold on both panes. NaN
// disables highlighting.
func (s *Session) SetThreshold(thresholdDbm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.ThresholdDbm = thresholdDbm
	s.line.SetThreshold(thresholdDbm)
	s.waterfall.SetThreshold(thresholdDbm)
	s.dirty = true
}

// SetHistoryDepth changes the waterfall depth. The change is
// destructive: the buffer resets to floor color before the next push.
func (s *Session) SetHistoryDepth(depth int) {
	if depth <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.HistoryDepth = depth

	w, _ := s.size.backing()
	layout := render.PlanLayout(w)
	s.waterfall.EnsureCapacity(layout.PlotWidth, depth)
	s.dirty = true
}

// SetRefreshRate retargets the ingest throttle without resetting its
// clock.
func (s *Session) SetRefreshRate(targetRateHz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.TargetRateHz = targetRateHz
	if s.sub != nil {
		s.sub.SetRate(targetRateHz)
	}
}

// ResetMaxHold clears the running per-bin maximum.
func (s *Session) ResetMaxHold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.ResetMaxHold()
	s.dirty = true
}

// ResetAverage clears the running per-bin mean.
func (s *Session) ResetAverage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.ResetAverage()
	s.dirty = true
}

// Hover resolves the pointer position to the nearest sample and
// updates the cursor marker. Positions outside the surface clear it.
// Marker changes are emitted once via the registered callback.
func (s *Session) Hover(xPx, yPx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface == nil {
		return
	}

	b := s.surface.Bounds()
	if xPx < 0 || xPx >= b.Dx() || yPx < 0 || yPx >= b.Dy()/2 {
		// Hover runs every input tick: only a transition to cleared
		// should schedule a redraw.
		if s.cursor != nil {
			s.cursor = nil
			s.dirty = true
		}
		return
	}

	m, ok := s.line.MarkerAt(xPx, b.Dx())
	if !ok {
		return
	}
	if s.cursor != nil && s.cursor.Index == m.Index {
		return
	}

	s.cursor = &m
	s.dirty = true
	if s.onMarker != nil {
		s.onMarker(m)
	}
}

// Marker returns the current hover marker, if any.
func (s *Session) Marker() (render.Marker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == nil {
		return render.Marker{}, false
	}
	return *s.cursor, true
}

// Status reports the pane status and, in the error state, the cause.
func (s *Session) Status() (ingest.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initErr != nil {
		return ingest.StatusError, s.initErr
	}
	if s.sub == nil {
		return ingest.StatusUnavailable, nil
	}
	return s.sub.Status()
}

// Stats returns the analysis of the most recent accepted frame. While
// paused the values freeze with the picture.
func (s *Session) Stats() (analysis.FrameStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, s.statsValid
}

// Surface returns the composed backing image, nil before the first
// Resize. The caller must treat it as read-only.
func (s *Session) Surface() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Run drives Tick on a timer until the context is cancelled. Intended
// for headless hosts; windowed hosts call Tick from their own paint
// callback instead.
func (s *Session) Run(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / s.cfg.MaxFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Close cancels the subscription, disposes the drawing primitives and
// marks the session dead for any in-flight callbacks. Safe to call
// more than once.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.unsubscribeLocked()

	var errs []error
	if s.line != nil {
		if err := s.line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.waterfall != nil {
		if err := s.waterfall.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.surface = nil
	return errors.Join(errs...)
}
