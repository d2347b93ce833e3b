// Package ingest subscribes to a push-style frame backend, rate-limits the
// stream to a target frequency, and forwards accepted frames in arrival
// order. Excess frames are dropped, never queued or batched.
package ingest

import (
	"context"
	"errors"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

var (
	// ErrSubscription is returned when the frame channel could not be
	// established.
	ErrSubscription = errors.New("subscription could not be established")

	// ErrBackendStart is returned when the backend session failed to start
	// after the subscription succeeded; the subscription is unwound first.
	ErrBackendStart = errors.New("backend session start failed")

	// ErrAlreadyRunning is returned by sources on a second Subscribe without
	// an intervening Stop.
	ErrAlreadyRunning = errors.New("source is already running")
)

// Status describes the ingest state surfaced to the pane.
type Status string

const (
	// StatusUnavailable means no backend is present. Terminal.
	StatusUnavailable Status = "unavailable"
	// StatusLoading means subscribed but no frame received yet.
	StatusLoading Status = "loading"
	// StatusReady means at least one frame has been received.
	StatusReady Status = "ready"
	// StatusError means the subscription or session start failed.
	StatusError Status = "error"
)

// Source delivers spectrum frames over a push channel. Subscribe establishes
// the channel, Start begins the backend session, and Stop tears both down.
// The source closes the channel when the session ends or its context is
// cancelled.
type Source interface {
	Subscribe(ctx context.Context) (<-chan spectrum.Frame, error)
	Start(ctx context.Context) error
	Stop() error
}
