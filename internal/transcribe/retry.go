package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
)

// retryingGateway wraps a backend with a per-call timeout and bounded
// exponential backoff on transient failures. Permanent and unavailable errors
// pass through immediately.
type retryingGateway struct {
	backend  Gateway
	timeout  time.Duration
	attempts int
	sleep    func(time.Duration)
}

func newRetryingGateway(backend Gateway, timeout time.Duration, attempts int) *retryingGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &retryingGateway{
		backend:  backend,
		timeout:  timeout,
		attempts: attempts,
		sleep:    time.Sleep,
	}
}

func (g *retryingGateway) Transcribe(ctx context.Context, chunk audio.Chunk) ([]Segment, error) {
	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt < g.attempts; attempt++ {
		if attempt > 0 {
			g.sleep(backoff)
			backoff *= 4
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		segments, err := g.backend.Transcribe(callCtx, chunk)
		cancel()

		if err == nil {
			return segments, nil
		}
		lastErr = err
		if !errors.Is(err, ErrTransient) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("transcription failed after %d attempts: %w", g.attempts, lastErr)
}
