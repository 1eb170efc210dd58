package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/llm"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcript"
)

// ErrSummarizationFailed wraps backend failures that survive retries. The
// transcript the summary was built from stays available to the caller, so no
// work is lost when condensation fails.
var ErrSummarizationFailed = errors.New("summarization failed")

// ClientFactory builds an LLM client for a provider/model pair.
type ClientFactory func(provider, model string) (llm.Client, error)

// Config tunes the summarizer.
type Config struct {
	// Model is a "provider/model" string, e.g. "openai/gpt-4o-mini".
	Model string
	// ChunkThreshold is the rendered transcript length in characters above
	// which the two-level map-reduce path is taken. Zero means 12000.
	ChunkThreshold int
	// Timeout bounds each backend call.
	Timeout time.Duration
	// MaxAttempts bounds retries per backend call, including the first
	// attempt. Zero means 3.
	MaxAttempts int
}

// Summarizer turns an ordered transcript into Minutes with a fixed
// instruction template. Transcripts longer than the chunk threshold are split
// into time-ordered sub-ranges, summarized independently, then condensed in a
// final pass.
type Summarizer struct {
	cfg     Config
	factory ClientFactory
	sleep   func(time.Duration)
	now     func() time.Time
}

// New creates a Summarizer. The factory is typically llm.NewClient bound to
// an API key.
func New(cfg Config, factory ClientFactory) *Summarizer {
	if cfg.ChunkThreshold <= 0 {
		cfg.ChunkThreshold = 12000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Summarizer{
		cfg:     cfg,
		factory: factory,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// Summarize condenses the transcript into Minutes. An empty transcript yields
// an empty Minutes value and no error: there is nothing to summarize, which
// is not a failure.
func (s *Summarizer) Summarize(ctx context.Context, tr transcript.Transcript, info SessionInfo) (Minutes, error) {
	generatedAt := s.now().UTC()
	if tr.Empty() {
		return Minutes{SessionID: tr.SessionID, GeneratedAt: generatedAt}, nil
	}

	windowStart, windowEnd := tr.Window()
	minutes := Minutes{
		SessionID:    tr.SessionID,
		GeneratedAt:  generatedAt,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		SegmentCount: len(tr.Segments),
		Stages:       1,
	}

	provider, model, err := llm.ParseModel(s.cfg.Model)
	if err != nil {
		return Minutes{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	client, err := s.factory(provider, model)
	if err != nil {
		return Minutes{}, fmt.Errorf("%w: create client: %v", ErrSummarizationFailed, err)
	}

	rendered := tr.Render()
	if len(rendered) <= s.cfg.ChunkThreshold {
		body, err := s.complete(ctx, client, minutesPrompt(info), rendered)
		if err != nil {
			return Minutes{}, err
		}
		minutes.Body = body
		return minutes, nil
	}

	// Map-reduce: summarize time-ordered sub-ranges, then condense the
	// partial summaries into the final minutes.
	parts := splitTranscript(tr, s.cfg.ChunkThreshold)
	partials := make([]string, 0, len(parts))
	for i, part := range parts {
		partial, err := s.complete(ctx, client, partialPrompt(info), part.Render())
		if err != nil {
			return Minutes{}, fmt.Errorf("sub-range %d of %d: %w", i+1, len(parts), err)
		}
		partials = append(partials, partial)
	}

	body, err := s.complete(ctx, client, condensePrompt(info), strings.Join(partials, "\n\n---\n\n"))
	if err != nil {
		return Minutes{}, err
	}
	minutes.Body = body
	minutes.Stages = 2
	return minutes, nil
}

func (s *Summarizer) complete(ctx context.Context, client llm.Client, system, user string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			s.sleep(backoff)
			backoff *= 4
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		result, err := client.Complete(callCtx, messages)
		cancel()
		if err == nil {
			return strings.TrimSpace(result), nil
		}
		// A rejected key or unknown model fails identically on every attempt;
		// retrying only burns backend quota.
		if errors.Is(err, llm.ErrInvalidRequest) {
			return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: after %d attempts: %v", ErrSummarizationFailed, s.cfg.MaxAttempts, lastErr)
}

// splitTranscript cuts the transcript into contiguous sub-ranges whose
// rendered length stays near the threshold. At least two parts come back for
// any transcript over the threshold, so the condensing pass always has
// something to merge.
func splitTranscript(tr transcript.Transcript, threshold int) []transcript.Transcript {
	total := len(tr.Render())
	parts := (total + threshold - 1) / threshold
	if parts < 2 {
		parts = 2
	}
	if parts > len(tr.Segments) {
		parts = len(tr.Segments)
	}
	if parts <= 1 {
		return []transcript.Transcript{tr}
	}

	per := (len(tr.Segments) + parts - 1) / parts
	var out []transcript.Transcript
	for from := 0; from < len(tr.Segments); from += per {
		out = append(out, tr.Slice(from, from+per))
	}
	return out
}
