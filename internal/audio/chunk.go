// Package audio holds the rolling window of raw voice-channel audio. Chunks
// arrive continuously from the ingestion layer and expire once they fall
// outside the configured window.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidChunk is returned by Put for chunks that violate the chunk
// invariants (zero times, end before start, empty payload).
var ErrInvalidChunk = errors.New("invalid audio chunk")

// Chunk is one discrete segment of raw audio from a single source. Chunks are
// immutable once stored; the store owns them until they are read or expire.
type Chunk struct {
	SessionID string
	SourceID  string
	StartTime time.Time
	EndTime   time.Time
	Payload   []byte
	Sequence  uint64
}

// Validate checks the chunk invariants shared by every producer.
func (c Chunk) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidChunk)
	}
	if c.SourceID == "" {
		return fmt.Errorf("%w: empty source id", ErrInvalidChunk)
	}
	if c.StartTime.IsZero() || c.EndTime.IsZero() {
		return fmt.Errorf("%w: zero timestamps", ErrInvalidChunk)
	}
	if !c.EndTime.After(c.StartTime) {
		return fmt.Errorf("%w: end time %s not after start time %s", ErrInvalidChunk, c.EndTime.Format(time.RFC3339), c.StartTime.Format(time.RFC3339))
	}
	if len(c.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidChunk)
	}
	return nil
}

// Duration returns the span of audio the chunk covers.
func (c Chunk) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}
