package transcribe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
)

type scriptedGateway struct {
	calls int
	errs  []error
}

func (g *scriptedGateway) Transcribe(_ context.Context, chunk audio.Chunk) ([]Segment, error) {
	g.calls++
	if g.calls <= len(g.errs) && g.errs[g.calls-1] != nil {
		return nil, g.errs[g.calls-1]
	}
	return []Segment{{
		SessionID: chunk.SessionID,
		SourceID:  chunk.SourceID,
		StartTime: chunk.StartTime,
		EndTime:   chunk.EndTime,
		Text:      "hello",
	}}, nil
}

func retryTestChunk() audio.Chunk {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return audio.Chunk{
		SessionID: "s1",
		SourceID:  "alice",
		StartTime: start,
		EndTime:   start.Add(15 * time.Second),
		Payload:   []byte{1, 2, 3},
		Sequence:  1,
	}
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	backend := &scriptedGateway{errs: []error{
		fmt.Errorf("%w: 503", ErrTransient),
		fmt.Errorf("%w: 503", ErrTransient),
	}}

	g := newRetryingGateway(backend, time.Second, 3)
	var slept []time.Duration
	g.sleep = func(d time.Duration) { slept = append(slept, d) }

	segments, err := g.Transcribe(context.Background(), retryTestChunk())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "hello" {
		t.Fatalf("unexpected segments: %+v", segments)
	}
	if backend.calls != 3 {
		t.Errorf("expected 3 backend calls, got %d", backend.calls)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(slept))
	}
	if slept[1] <= slept[0] {
		t.Errorf("expected growing backoff, got %v then %v", slept[0], slept[1])
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	backend := &scriptedGateway{errs: []error{
		fmt.Errorf("%w: 503", ErrTransient),
		fmt.Errorf("%w: 503", ErrTransient),
		fmt.Errorf("%w: 503", ErrTransient),
	}}

	g := newRetryingGateway(backend, time.Second, 3)
	g.sleep = func(time.Duration) {}

	_, err := g.Transcribe(context.Background(), retryTestChunk())
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected wrapped ErrTransient, got %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("expected 3 backend calls, got %d", backend.calls)
	}
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"permanent", fmt.Errorf("%w: bad payload", ErrPermanent)},
		{"unavailable", fmt.Errorf("%w: connection refused", ErrUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &scriptedGateway{errs: []error{tt.err, tt.err, tt.err}}
			g := newRetryingGateway(backend, time.Second, 3)
			g.sleep = func(time.Duration) {}

			_, err := g.Transcribe(context.Background(), retryTestChunk())
			if !errors.Is(err, tt.err) && !errors.Is(err, ErrPermanent) && !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected original error back, got %v", err)
			}
			if backend.calls != 1 {
				t.Errorf("expected 1 backend call, got %d", backend.calls)
			}
		})
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	backend := &scriptedGateway{errs: []error{fmt.Errorf("%w: 503", ErrTransient)}}
	g := newRetryingGateway(backend, time.Second, 3)

	ctx, cancel := context.WithCancel(context.Background())
	g.sleep = func(time.Duration) { cancel() }

	_, err := g.Transcribe(ctx, retryTestChunk())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("expected 1 backend call before cancellation, got %d", backend.calls)
	}
}

func TestNewGatewayRejectsUnknownProvider(t *testing.T) {
	if _, err := NewGateway(Options{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
