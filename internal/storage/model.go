package storage

import (
	"time"
)

// Session describes a recorded capture session.
type Session struct {
	ID         int64
	StartTime  time.Time
	SourceType string
	SourceID   string
	Config     *string
}

type sampleRow struct {
	TimestampMs  int64
	FrequencyHz  float64
	AmplitudeDbm float64
}
