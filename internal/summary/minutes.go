// Package summary condenses an assembled transcript into written minutes via
// an external text-generation backend.
package summary

import "time"

// Minutes is the condensed record produced from one summarization request.
// Immutable once produced; ownership transfers to the caller.
type Minutes struct {
	SessionID    string    `json:"session_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	Body         string    `json:"body"`
	SegmentCount int       `json:"segment_count"`
	// Stages is 1 for a single-pass summary, 2 when the transcript exceeded
	// the prompt limit and went through partial summaries plus a condensing
	// pass.
	Stages int `json:"stages"`
}

// Empty reports whether the request found nothing to summarize. This is a
// defined result for an empty window, distinct from a failure.
func (m Minutes) Empty() bool {
	return m.SegmentCount == 0
}

// SessionInfo carries the session metadata woven into the prompt.
type SessionInfo struct {
	SessionID   string
	ChannelName string
	SourceCount int
}
