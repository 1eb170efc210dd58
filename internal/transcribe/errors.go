package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, 5xx responses,
	// rate limits.
	ErrTransient = errors.New("transient transcription error")

	// ErrPermanent marks failures that will not succeed on retry, such as a
	// malformed or unsupported payload. Callers drop the chunk and record the
	// gap instead of blocking the pipeline.
	ErrPermanent = errors.New("permanent transcription error")

	// ErrUnavailable marks an unreachable backend. The whole summarization
	// request fails rather than presenting partial output as complete.
	ErrUnavailable = errors.New("transcription backend unavailable")
)

// classifyStatus maps an HTTP response status to the error taxonomy.
func classifyStatus(status int, detail string) error {
	switch {
	case status == 429 || status >= 500:
		return fmt.Errorf("%w: backend returned %d: %s", ErrTransient, status, detail)
	case status >= 400:
		return fmt.Errorf("%w: backend returned %d: %s", ErrPermanent, status, detail)
	default:
		return fmt.Errorf("%w: unexpected backend status %d: %s", ErrTransient, status, detail)
	}
}

// classifyTransport maps connection-level failures. Anything that never
// reached the backend counts as unavailable; timeouts count as transient.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrPermanent) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
