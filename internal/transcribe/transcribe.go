// Package transcribe converts stored audio chunks into timestamped text via an
// external speech-to-text backend.
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
)

// Segment is one utterance of transcribed speech derived from a single chunk.
// Immutable once produced.
type Segment struct {
	SessionID  string    `json:"session_id"`
	SourceID   string    `json:"source_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence,omitempty"`
	Sequence   uint64    `json:"sequence"`
}

// Gateway sends a chunk's payload to a speech-to-text backend. A single chunk
// may split into multiple segments when the backend detects several
// utterances. Implementations classify failures with ErrTransient,
// ErrPermanent and ErrUnavailable so callers can pick a recovery policy.
type Gateway interface {
	Transcribe(ctx context.Context, chunk audio.Chunk) ([]Segment, error)
}

// Options selects and configures a transcription backend.
type Options struct {
	// Provider is "deepgram" or "http".
	Provider string
	// APIKey authenticates against hosted providers.
	APIKey string
	// BaseURL points the http provider at its backend, or overrides the
	// hosted provider's default host.
	BaseURL string
	Model    string
	Language string
	// Timeout bounds each backend call.
	Timeout time.Duration
	// MaxAttempts bounds retries of transient failures, including the first
	// attempt. Zero means 3.
	MaxAttempts int
}

// NewGateway builds the configured backend wrapped with per-call timeout and
// bounded retry of transient failures.
func NewGateway(opts Options) (Gateway, error) {
	var backend Gateway
	switch opts.Provider {
	case "deepgram":
		backend = newDeepgramGateway(opts)
	case "http":
		g, err := newHTTPGateway(opts)
		if err != nil {
			return nil, err
		}
		backend = g
	default:
		return nil, fmt.Errorf("unknown transcription provider %q: supported providers are deepgram, http", opts.Provider)
	}
	return newRetryingGateway(backend, opts.Timeout, opts.MaxAttempts), nil
}

// segmentFromRelative places a backend utterance, expressed in seconds from
// the start of the chunk, onto the chunk's absolute timeline.
func segmentFromRelative(chunk audio.Chunk, startSec, endSec float64, text string, confidence float64) Segment {
	start := chunk.StartTime.Add(time.Duration(startSec * float64(time.Second)))
	end := chunk.StartTime.Add(time.Duration(endSec * float64(time.Second)))
	if !end.After(start) {
		end = chunk.EndTime
	}
	return Segment{
		SessionID:  chunk.SessionID,
		SourceID:   chunk.SourceID,
		StartTime:  start,
		EndTime:    end,
		Text:       text,
		Confidence: confidence,
		Sequence:   chunk.Sequence,
	}
}
