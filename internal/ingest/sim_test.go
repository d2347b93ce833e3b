package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

func TestSimSourceSynthesize(t *testing.T) {
	s := NewSimSource(30, WithSeed(1))

	f := s.synthesize(time.Now())
	if !f.Valid() {
		t.Fatal("synthesized frame is not valid")
	}
	if len(f.FrequenciesHz) != simFFTSize/2+1 {
		t.Errorf("frame has %d bins, want %d", len(f.FrequenciesHz), simFFTSize/2+1)
	}
	if f.FrequenciesHz[0] != 0 {
		t.Errorf("first bin = %v Hz, want 0", f.FrequenciesHz[0])
	}
	if last := f.FrequenciesHz[len(f.FrequenciesHz)-1]; last != simSampleRate/2 {
		t.Errorf("last bin = %v Hz, want %v", last, simSampleRate/2)
	}

	for i, a := range f.AmplitudesDbm {
		if a < spectrum.MinAmplitudeDbm || a > spectrum.MaxAmplitudeDbm {
			t.Fatalf("amplitude %d = %v outside display domain", i, a)
		}
	}
}

func TestSimSourceCarrierStaysInBand(t *testing.T) {
	s := NewSimSource(30, WithSeed(42))

	for i := 0; i < 500; i++ {
		s.synthesize(time.Now())
		if s.carrierHz < simMinCarrierHz || s.carrierHz > simMaxCarrierHz {
			t.Fatalf("carrier drifted to %v Hz after %d frames", s.carrierHz, i+1)
		}
	}
}

func TestSimSourceSessionEpochs(t *testing.T) {
	s := NewSimSource(200, WithSeed(7))

	ch, err := s.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if _, err = s.Subscribe(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Subscribe error = %v, want ErrAlreadyRunning", err)
	}

	select {
	case f := <-ch:
		if !f.Valid() {
			t.Error("emitted frame is not valid")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame emitted")
	}

	if err = s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// The channel closes with the session.
	for range ch {
	}

	// A stopped source accepts a new epoch.
	if _, err = s.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe after Stop failed: %v", err)
	}
	if err = s.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestReplaySourcePlaysRecording(t *testing.T) {
	frames := []spectrum.Frame{
		{TimestampMs: 1000, FrequenciesHz: []float64{0, 100}, AmplitudesDbm: []float64{-90, -80}},
		{TimestampMs: 1010, FrequenciesHz: []float64{0, 100}, AmplitudesDbm: []float64{-70, -60}},
	}
	r := NewReplaySource(&sliceIterator{frames: frames})

	ch, err := r.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err = r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var got []spectrum.Frame
	for f := range ch {
		got = append(got, f)
	}

	if len(got) != len(frames) {
		t.Fatalf("replayed %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		if got[i].TimestampMs != frames[i].TimestampMs {
			t.Errorf("frame %d timestamp = %d, want %d", i, got[i].TimestampMs, frames[i].TimestampMs)
		}
	}

	if err = r.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

// sliceIterator replays an in-memory recording.
type sliceIterator struct {
	frames []spectrum.Frame
	pos    int
	closed bool
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if ctx.Err() != nil || it.pos >= len(it.frames) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Current() spectrum.Frame {
	return it.frames[it.pos-1]
}

func (it *sliceIterator) Error() error { return nil }

func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}
