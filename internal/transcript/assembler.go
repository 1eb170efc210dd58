// Package transcript assembles transcribed segments from all sources of a
// session into one chronologically ordered record.
package transcript

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/transcribe"
)

// Gap documents a hole in the transcript left by a chunk that could not be
// transcribed. Gaps never remove or reorder surviving segments.
type Gap struct {
	SourceID  string    `json:"source_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
}

// Transcript is the ordered text record for a session's current window.
// Segments are sorted by start time, ties broken by source ID then sequence,
// and are never reordered after assembly.
type Transcript struct {
	SessionID string               `json:"session_id"`
	Segments  []transcribe.Segment `json:"segments"`
	Gaps      []Gap                `json:"gaps,omitempty"`
}

// Assemble builds a Transcript from an unordered collection of segments.
// The result is deterministic for a given input set: permuting the input
// yields an identical transcript. Empty input yields an empty transcript,
// which downstream code treats as "nothing to summarize", not a failure.
func Assemble(sessionID string, segments []transcribe.Segment, gaps []Gap) Transcript {
	ordered := append([]transcribe.Segment(nil), segments...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		// Utterances split from one chunk share source and sequence and may
		// share a start time; end time then text keep the order total.
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
		return a.Text < b.Text
	})

	orderedGaps := append([]Gap(nil), gaps...)
	sort.SliceStable(orderedGaps, func(i, j int) bool {
		if !orderedGaps[i].StartTime.Equal(orderedGaps[j].StartTime) {
			return orderedGaps[i].StartTime.Before(orderedGaps[j].StartTime)
		}
		return orderedGaps[i].SourceID < orderedGaps[j].SourceID
	})

	return Transcript{SessionID: sessionID, Segments: ordered, Gaps: orderedGaps}
}

// Empty reports whether the transcript has no spoken content.
func (t Transcript) Empty() bool {
	return len(t.Segments) == 0
}

// Window returns the time range covered by the transcript's segments.
func (t Transcript) Window() (start, end time.Time) {
	if len(t.Segments) == 0 {
		return time.Time{}, time.Time{}
	}
	start = t.Segments[0].StartTime
	end = t.Segments[0].EndTime
	for _, seg := range t.Segments[1:] {
		if seg.EndTime.After(end) {
			end = seg.EndTime
		}
	}
	return start, end
}

// Render produces the per-speaker turn text handed to the summarization
// backend. Consecutive segments from the same source merge into one turn.
func (t Transcript) Render() string {
	var b strings.Builder
	lastSource := ""
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.SourceID != lastSource {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%s] %s: ", seg.StartTime.UTC().Format("15:04:05"), seg.SourceID)
			lastSource = seg.SourceID
		} else {
			b.WriteString(" ")
		}
		b.WriteString(text)
	}
	for _, gap := range t.Gaps {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] (%s: audio from %s could not be transcribed)",
			gap.StartTime.UTC().Format("15:04:05"), gap.Reason, gap.SourceID)
	}
	return b.String()
}

// Slice returns a sub-transcript holding the segments in [from, to) of the
// ordered segment list, plus the gaps falling into that stretch of time. Used
// to split long transcripts into time-ordered sub-ranges for two-level
// summarization; contiguous slices partition the gaps exactly once.
func (t Transcript) Slice(from, to int) Transcript {
	if from < 0 {
		from = 0
	}
	if to > len(t.Segments) {
		to = len(t.Segments)
	}
	if from >= to {
		return Transcript{SessionID: t.SessionID}
	}

	sub := Transcript{SessionID: t.SessionID, Segments: t.Segments[from:to]}
	for _, gap := range t.Gaps {
		// A gap belongs to the slice whose span it starts in; the first and
		// last slices absorb gaps outside the segment range.
		if from > 0 && gap.StartTime.Before(t.Segments[from].StartTime) {
			continue
		}
		if to < len(t.Segments) && !gap.StartTime.Before(t.Segments[to].StartTime) {
			continue
		}
		sub.Gaps = append(sub.Gaps, gap)
	}
	return sub
}
