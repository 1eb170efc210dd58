// Package session coordinates the capture-buffer-transcribe-summarize
// pipeline for every active voice session.
package session

import (
	"context"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
	"github.com/MizukiMachine/discord-VC-minutes/internal/summary"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcribe"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcript"
)

// ChunkStore is the rolling audio window the coordinator reads and drops
// sessions from.
type ChunkStore interface {
	Put(chunk audio.Chunk) error
	Window(sessionID string, since time.Time) []audio.Chunk
	DropSession(sessionID string)
}

// Transcriber converts one stored chunk into text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk audio.Chunk) ([]transcribe.Segment, error)
}

// Summarizer condenses an assembled transcript into minutes.
type Summarizer interface {
	Summarize(ctx context.Context, tr transcript.Transcript, info summary.SessionInfo) (summary.Minutes, error)
}

// Archive persists produced artifacts: minutes on success, the rendered
// transcript as a fallback when summarization fails.
type Archive interface {
	SaveMinutes(m summary.Minutes) error
	SaveTranscript(tr transcript.Transcript, note string) error
}

// EventSink receives pipeline lifecycle events for the posting layer.
type EventSink interface {
	SessionOpened(sessionID string)
	SessionClosed(sessionID string)
	MinutesReady(m summary.Minutes)
	MinutesFailed(sessionID, reason string)
}

// Result is what one summarization request hands back. Transcript is always
// populated once assembly succeeded, so the caller keeps the underlying text
// even when the condensation step failed.
type Result struct {
	Minutes    summary.Minutes
	Transcript transcript.Transcript
}

// Info is a point-in-time snapshot of one session's coordinator state.
type Info struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	State         string    `json:"state"`
	ActiveSources []string  `json:"active_sources"`
	LastWriteAt   time.Time `json:"last_write_at,omitempty"`
}
