package session

import "errors"

var (
	// ErrNotFound is returned for operations on a session that was never
	// opened or has been closed.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyOpen is returned by Open when the session id is already
	// recording.
	ErrAlreadyOpen = errors.New("session already open")

	// ErrSummarizationInProgress is returned when a summarize trigger arrives
	// while another one is still running for the same session. At most one
	// summarization runs per session at a time.
	ErrSummarizationInProgress = errors.New("summarization already in progress")

	// ErrClosedDuringSummarization is returned when the session was closed
	// while its summarization was in flight; the result is discarded rather
	// than published for a session that no longer exists.
	ErrClosedDuringSummarization = errors.New("session closed during summarization")
)
