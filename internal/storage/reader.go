package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Three-summers/spectraview/internal/spectrum"
)

// ErrNoData indicates that no spectrum data exists for the given
// session and filters.
var ErrNoData = errors.New("no data available")

// ReaderOption configures a FrameReader with filtering criteria.
type ReaderOption func(*FrameReader)

// WithTimeRange restricts the reader to frames whose capture timestamp
// falls within [startMs, endMs].
func WithTimeRange(startMs, endMs uint64) ReaderOption {
	return func(r *FrameReader) {
		r.startMs = &startMs
		r.endMs = &endMs
	}
}

// WithFreqRange restricts the reader to frequency bins within
// [minHz, maxHz]. Frames keep their timestamps; only bins outside the
// range are dropped.
func WithFreqRange(minHz, maxHz float64) ReaderOption {
	return func(r *FrameReader) {
		r.minHz = &minHz
		r.maxHz = &maxHz
	}
}

// FrameReader iterates over the frames of a recorded session. Sample
// rows sharing a timestamp are grouped back into a single frame. Each
// reader instance should only be used from a single goroutine.
type FrameReader struct {
	db        *sql.DB
	sessionID int64
	session   *Session

	startMs *uint64
	endMs   *uint64
	minHz   *float64
	maxHz   *float64

	current spectrum.Frame

	// First row of the next frame, read ahead of the group boundary.
	nextRow       sampleRow
	nextRowExists bool

	rows *sql.Rows
	err  error
}

func newFrameReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*FrameReader, error) {
	if db == nil {
		return nil, errors.New("database connection required")
	}
	if sessionID <= 0 {
		return nil, errors.New("session ID required")
	}

	fr := &FrameReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(fr)
	}

	if err := fr.loadSession(ctx); err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if err := fr.initQuery(ctx); err != nil {
		return nil, fmt.Errorf("initializing query: %w", err)
	}
	return fr, nil
}

func (r *FrameReader) loadSession(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, r.sessionID).Scan(&sess.ID, &sess.StartTime, &sess.SourceType, &sess.SourceID, &config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoData
		}
		return fmt.Errorf("querying session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	r.session = &sess
	return
}

func (r *FrameReader) initQuery(ctx context.Context) error {
	var sb strings.Builder
	sb.WriteString(`
SELECT
    timestamp_ms,
    frequency_hz,
    amplitude_dbm
FROM samples
WHERE
    session_id = ?`)

	args := []any{r.sessionID}

	if r.startMs != nil {
		sb.WriteString(" AND timestamp_ms >= ?")
		args = append(args, int64(*r.startMs))
	}
	if r.endMs != nil {
		sb.WriteString(" AND timestamp_ms <= ?")
		args = append(args, int64(*r.endMs))
	}
	if r.minHz != nil {
		sb.WriteString(" AND frequency_hz >= ?")
		args = append(args, *r.minHz)
	}
	if r.maxHz != nil {
		sb.WriteString(" AND frequency_hz <= ?")
		args = append(args, *r.maxHz)
	}

	sb.WriteString(" ORDER BY timestamp_ms, frequency_hz, id")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}

	r.rows = rows
	return nil
}

// Session returns metadata about the capture session being read.
func (r *FrameReader) Session() *Session {
	return r.session
}

// Next advances the iterator and returns true if another frame is
// available. When it returns false, Error distinguishes end of data
// from a failure.
func (r *FrameReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}

	frame := spectrum.Frame{}

	if r.nextRowExists {
		frame.TimestampMs = uint64(r.nextRow.TimestampMs)
		frame.FrequenciesHz = append(frame.FrequenciesHz, r.nextRow.FrequencyHz)
		frame.AmplitudesDbm = append(frame.AmplitudesDbm, r.nextRow.AmplitudeDbm)
		r.nextRowExists = false
	}

	for r.rows.Next() {
		var row sampleRow
		if err := r.rows.Scan(&row.TimestampMs, &row.FrequencyHz, &row.AmplitudeDbm); err != nil {
			r.err = fmt.Errorf("scanning sample: %w", err)
			return false
		}

		if len(frame.FrequenciesHz) == 0 {
			frame.TimestampMs = uint64(row.TimestampMs)
		} else if uint64(row.TimestampMs) != frame.TimestampMs {
			r.nextRow = row
			r.nextRowExists = true
			break
		}

		frame.FrequenciesHz = append(frame.FrequenciesHz, row.FrequencyHz)
		frame.AmplitudesDbm = append(frame.AmplitudesDbm, row.AmplitudeDbm)
	}

	if err := r.rows.Err(); err != nil {
		r.err = fmt.Errorf("iterating samples: %w", err)
		return false
	}

	if len(frame.FrequenciesHz) == 0 {
		return false
	}

	r.current = frame
	return true
}

// Current returns the frame assembled by the last successful Next.
func (r *FrameReader) Current() spectrum.Frame {
	return r.current
}

// Error returns the first error encountered during iteration.
func (r *FrameReader) Error() error {
	return r.err
}

// Close releases the underlying result set. The database connection is
// owned by the store and stays open.
func (r *FrameReader) Close() error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	return err
}
