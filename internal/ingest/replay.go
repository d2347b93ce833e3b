package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

// FrameIterator walks recorded frames in capture order. The storage package
// FrameReader satisfies it.
type FrameIterator interface {
	Next(ctx context.Context) bool
	Current() spectrum.Frame
	Error() error
	Close() error
}

// maxReplayGap caps the pause between replayed frames so sparse recordings
// still play back at a watchable pace.
const maxReplayGap = 2 * time.Second

// ReplaySource plays a recorded session back through the ingest pipeline,
// pacing frames by their captured timestamp deltas.
type ReplaySource struct {
	iter FrameIterator

	subscribed atomic.Bool
	ch         chan spectrum.Frame
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewReplaySource wraps a frame iterator. The source takes ownership of the
// iterator and closes it when stopped.
func NewReplaySource(iter FrameIterator) *ReplaySource {
	return &ReplaySource{iter: iter}
}

// Subscribe establishes the frame channel for the replay session.
func (r *ReplaySource) Subscribe(ctx context.Context) (<-chan spectrum.Frame, error) {
	if r.subscribed.Swap(true) {
		return nil, ErrAlreadyRunning
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.ch = make(chan spectrum.Frame, 1)

	r.wg.Add(1)
	go r.run(ctx)

	return r.ch, nil
}

// Start begins playback; pulling the first frame validates the recording.
func (r *ReplaySource) Start(ctx context.Context) error {
	return nil
}

// Stop ends playback and closes the underlying iterator.
func (r *ReplaySource) Stop() error {
	if !r.subscribed.Load() {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	r.subscribed.Store(false)
	return r.iter.Close()
}

func (r *ReplaySource) run(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.ch)

	var prevTs uint64
	for r.iter.Next(ctx) {
		frame := r.iter.Current()

		if prevTs != 0 && frame.TimestampMs > prevTs {
			gap := time.Duration(frame.TimestampMs-prevTs) * time.Millisecond
			if gap > maxReplayGap {
				gap = maxReplayGap
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(gap):
			}
		}
		prevTs = frame.TimestampMs

		select {
		case r.ch <- frame:
		case <-ctx.Done():
			return
		}
	}
}
