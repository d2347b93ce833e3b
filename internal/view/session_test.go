package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Three-summers/spectraview/internal/ingest"
	"github.com/Three-summers/spectraview/internal/render"
	"github.com/Three-summers/spectraview/internal/spectrum"
)

// stubSource is a scriptable ingest.Source for controller tests.
type stubSource struct {
	mu           sync.Mutex
	subscribeErr error
	ch           chan spectrum.Frame
	subscribes   int
}

func (s *stubSource) Subscribe(ctx context.Context) (<-chan spectrum.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribes++
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	s.ch = make(chan spectrum.Frame, 16)
	return s.ch, nil
}

func (s *stubSource) Start(ctx context.Context) error { return nil }

func (s *stubSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
	return nil
}

func (s *stubSource) send(f spectrum.Frame) {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	ch <- f
}

func (s *stubSource) setSubscribeErr(err error) {
	s.mu.Lock()
	s.subscribeErr = err
	s.mu.Unlock()
}

func (s *stubSource) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testFrame(ts uint64) spectrum.Frame {
	return spectrum.Frame{
		TimestampMs:   ts,
		FrequenciesHz: []float64{0, 2500, 5000, 7500, 10000},
		AmplitudesDbm: []float64{-90, -60, -30, -60, -90},
	}
}

func newTestSession(t *testing.T, src ingest.Source, options ...func(*Session)) *Session {
	t.Helper()
	s, err := NewSession(src, Config{}, options...)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// waitPending polls until a staged frame is visible to Tick.
func waitPending(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.pendingMu.Lock()
		staged := s.pending != nil
		s.pendingMu.Unlock()
		if staged {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for a staged frame")
}

func TestNewSessionRejectsBadConfig(t *testing.T) {
	_, err := NewSession(&stubSource{}, Config{Mode: "scatter"})
	if !errors.Is(err, ErrRenderInit) {
		t.Errorf("error = %v, want ErrRenderInit", err)
	}

	_, err = NewSession(&stubSource{}, Config{Scheme: "plasma"})
	if !errors.Is(err, ErrRenderInit) {
		t.Errorf("error = %v, want ErrRenderInit", err)
	}
}

func TestResizeCachesViewport(t *testing.T) {
	s := newTestSession(t, &stubSource{})

	if s.Surface() != nil {
		t.Fatal("surface exists before first resize")
	}

	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 1})
	first := s.Surface()
	if first == nil {
		t.Fatal("no surface after resize")
	}
	if b := first.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("surface is %v, want 400x300", b)
	}

	// The same observed box must not reallocate.
	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 1})
	if s.Surface() != first {
		t.Error("unchanged viewport reallocated the surface")
	}

	// An actual change reallocates at size x pixel ratio.
	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 2})
	second := s.Surface()
	if second == first {
		t.Error("changed pixel ratio did not reallocate")
	}
	if b := second.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Errorf("surface is %v, want 800x600", b)
	}
}

func TestTickConsumesStagedFrame(t *testing.T) {
	src := &stubSource{}
	clock := newTestClock()
	s := newTestSession(t, src, WithClock(clock.Now))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 1})

	src.send(testFrame(1))
	waitPending(t, s)

	if !s.Tick() {
		t.Fatal("Tick did not draw a staged frame")
	}

	stats, ok := s.Stats()
	if !ok {
		t.Fatal("no stats after first frame")
	}
	if stats.PeakFrequencyHz != 5000 {
		t.Errorf("PeakFrequencyHz = %v, want 5000", stats.PeakFrequencyHz)
	}

	// Nothing new staged: the next tick has nothing to draw.
	clock.Advance(time.Second)
	if s.Tick() {
		t.Error("Tick redrew with no staged frame")
	}
}

func TestTickFrameRateCap(t *testing.T) {
	src := &stubSource{}
	clock := newTestClock()
	s := newTestSession(t, src, WithClock(clock.Now))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 1})

	src.send(testFrame(1))
	waitPending(t, s)
	if !s.Tick() {
		t.Fatal("first Tick did not draw")
	}

	src.send(testFrame(2))
	waitPending(t, s)

	// Under the ~33ms budget at 30 FPS: reschedule without drawing.
	clock.Advance(10 * time.Millisecond)
	if s.Tick() {
		t.Error("Tick drew under the frame budget")
	}

	clock.Advance(30 * time.Millisecond)
	if !s.Tick() {
		t.Error("Tick did not draw once past the frame budget")
	}
}

func TestPauseFreezesPicture(t *testing.T) {
	src := &stubSource{}
	clock := newTestClock()
	s := newTestSession(t, src, WithClock(clock.Now))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 1})

	src.send(testFrame(1))
	waitPending(t, s)
	s.Tick()
	before, _ := s.Stats()

	if !s.TogglePause() {
		t.Fatal("TogglePause did not pause")
	}

	// Paused frames are dropped upstream; stats must not drift.
	src.send(spectrum.Frame{
		TimestampMs:   2,
		FrequenciesHz: []float64{0, 5000, 10000},
		AmplitudesDbm: []float64{-10, -10, -10},
	})
	clock.Advance(time.Second)
	s.Tick()

	after, _ := s.Stats()
	if after != before {
		t.Errorf("stats drifted while paused: %+v != %+v", after, before)
	}

	// A resize still repaints the frozen raster.
	s.Resize(ViewportSize{WidthPx: 500, HeightPx: 300, PixelRatio: 1})
	if !s.Tick() {
		t.Error("resize while paused did not repaint")
	}
}

func TestVisibilityGating(t *testing.T) {
	src := &stubSource{}
	clock := newTestClock()
	s := newTestSession(t, src, WithClock(clock.Now))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 1})

	src.send(testFrame(1))
	waitPending(t, s)
	s.Tick()
	surface := s.Surface()

	s.SetVisible(false)

	// Hidden: the loop idles and the last-drawn surface is retained.
	clock.Advance(time.Second)
	if s.Tick() {
		t.Error("Tick drew while hidden")
	}
	if s.Surface() != surface {
		t.Error("hidden session dropped its surface")
	}

	// Showing again opens a fresh subscription epoch.
	s.SetVisible(true)
	if got := src.subscribeCount(); got != 2 {
		t.Errorf("source subscribed %d times, want 2", got)
	}
}

func TestRetryAfterFailure(t *testing.T) {
	src := &stubSource{subscribeErr: errors.New("backend down")}
	s := newTestSession(t, src)

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start with failing source did not error")
	}

	status, statusErr := s.Status()
	if status != ingest.StatusError || statusErr == nil {
		t.Errorf("status = %v (%v), want error state with cause", status, statusErr)
	}

	src.setSubscribeErr(nil)
	if err := s.Retry(); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	if status, _ = s.Status(); status != ingest.StatusLoading {
		t.Errorf("status after retry = %v, want loading", status)
	}
}

func TestHoverMarker(t *testing.T) {
	src := &stubSource{}
	clock := newTestClock()

	var emitted []render.Marker
	var mu sync.Mutex
	onMarker := func(m render.Marker) {
		mu.Lock()
		emitted = append(emitted, m)
		mu.Unlock()
	}

	s := newTestSession(t, src, WithClock(clock.Now), WithMarkerFunc(onMarker))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Resize(ViewportSize{WidthPx: 400, HeightPx: 300, PixelRatio: 1})

	src.send(testFrame(1))
	waitPending(t, s)
	s.Tick()

	// Mid-surface resolves to the 5 kHz sample.
	s.Hover(200, 50)
	m, ok := s.Marker()
	if !ok {
		t.Fatal("no marker after hover")
	}
	if m.FrequencyHz != 5000 {
		t.Errorf("marker frequency = %v, want 5000", m.FrequencyHz)
	}

	// Hovering the same sample again is deduplicated.
	s.Hover(201, 50)
	mu.Lock()
	n := len(emitted)
	mu.Unlock()
	if n != 1 {
		t.Errorf("marker emitted %d times, want 1", n)
	}

	// Leaving the chart pane clears the marker.
	s.Hover(200, 299)
	if _, ok = s.Marker(); ok {
		t.Error("marker survived leaving the chart pane")
	}

	// A pointer resting outside the pane must not keep scheduling
	// redraws once the marker is already cleared.
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	s.Hover(200, 299)
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if dirty {
		t.Error("off-pane hover with no marker scheduled a redraw")
	}
}

func TestFrameSink(t *testing.T) {
	src := &stubSource{}

	sunk := make(chan spectrum.Frame, 1)
	s := newTestSession(t, src, WithFrameSink(func(f spectrum.Frame) { sunk <- f }))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.send(testFrame(42))
	select {
	case f := <-sunk:
		if f.TimestampMs != 42 {
			t.Errorf("sunk frame timestamp = %d, want 42", f.TimestampMs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("accepted frame never reached the sink")
	}
}

func TestClosedSessionRejectsWork(t *testing.T) {
	src := &stubSource{}
	s := newTestSession(t, src)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := s.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after close = %v, want ErrClosed", err)
	}
	if s.Tick() {
		t.Error("Tick drew after close")
	}
}
