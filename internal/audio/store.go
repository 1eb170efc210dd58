package audio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrChunkTooLarge is returned by Put when a single payload exceeds the
	// configured per-chunk byte limit.
	ErrChunkTooLarge = errors.New("audio chunk too large")

	// ErrCapacityExceeded is returned by Put when storing the chunk would push
	// the session past its byte cap. Existing chunks are never evicted to make
	// room; the write fails instead.
	ErrCapacityExceeded = errors.New("session capacity exceeded")

	// ErrStaleSequence is returned by Put when a chunk's sequence number does
	// not advance past the last stored sequence for its (session, source) pair.
	ErrStaleSequence = errors.New("stale chunk sequence")
)

// StoreConfig bounds the rolling window kept per session.
type StoreConfig struct {
	// Window is how far back chunks remain readable relative to their start
	// time. Expiry is a time guarantee, not a capacity policy.
	Window time.Duration

	// MaxSessionBytes caps the live payload bytes held per session.
	MaxSessionBytes int64

	// MaxChunkBytes caps a single chunk payload.
	MaxChunkBytes int64
}

// Store is an in-memory time-windowed chunk store. Chunks older than the
// window are never served; reclamation happens both lazily on access and via
// the background sweep in Run, so memory release is eventual rather than
// instantaneous.
type Store struct {
	cfg StoreConfig
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionBuffer
}

type sessionBuffer struct {
	sources    map[string]*sourceBuffer
	totalBytes int64
}

type sourceBuffer struct {
	chunks  []Chunk // ordered by sequence
	lastSeq uint64
	started bool
}

// NewStore creates an empty store. Zero or negative config values fall back to
// permissive defaults so tests can configure only what they exercise.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Window <= 0 {
		cfg.Window = 2 * time.Hour
	}
	return &Store{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*sessionBuffer),
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put stores the chunk under its session and source. The chunk becomes
// unreadable once its start time falls behind the rolling window.
func (s *Store) Put(chunk Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	if s.cfg.MaxChunkBytes > 0 && int64(len(chunk.Payload)) > s.cfg.MaxChunkBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrChunkTooLarge, len(chunk.Payload), s.cfg.MaxChunkBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[chunk.SessionID]
	if sess == nil {
		sess = &sessionBuffer{sources: make(map[string]*sourceBuffer)}
		s.sessions[chunk.SessionID] = sess
	}

	// Trim expired chunks first so the byte cap applies to the live window
	// only, not to audio that is already unreadable.
	s.trimSessionLocked(sess, s.now().Add(-s.cfg.Window))

	src := sess.sources[chunk.SourceID]
	if src == nil {
		src = &sourceBuffer{}
		sess.sources[chunk.SourceID] = src
	}

	if src.started && chunk.Sequence <= src.lastSeq {
		return fmt.Errorf("%w: sequence %d not after %d for source %s", ErrStaleSequence, chunk.Sequence, src.lastSeq, chunk.SourceID)
	}

	if s.cfg.MaxSessionBytes > 0 && sess.totalBytes+int64(len(chunk.Payload)) > s.cfg.MaxSessionBytes {
		return fmt.Errorf("%w: session %s at %d of %d bytes", ErrCapacityExceeded, chunk.SessionID, sess.totalBytes, s.cfg.MaxSessionBytes)
	}

	src.chunks = append(src.chunks, chunk)
	src.lastSeq = chunk.Sequence
	src.started = true
	sess.totalBytes += int64(len(chunk.Payload))
	return nil
}

// Window returns every non-expired chunk for the session, ordered by source ID
// then sequence number. A non-zero since restricts the result to chunks
// starting at or after it. Window never blocks waiting for more audio; it
// returns whatever is currently present, which may be nothing.
func (s *Store) Window(sessionID string, since time.Time) []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionID]
	if sess == nil {
		return nil
	}

	cutoff := s.now().Add(-s.cfg.Window)
	s.trimSessionLocked(sess, cutoff)

	sourceIDs := make([]string, 0, len(sess.sources))
	for id := range sess.sources {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	var out []Chunk
	for _, id := range sourceIDs {
		for _, chunk := range sess.sources[id].chunks {
			// trimSessionLocked removes the expired prefix per source; this
			// filter upholds the window guarantee even for chunks recorded
			// out of time order within a source.
			if chunk.StartTime.Before(cutoff) {
				continue
			}
			if !since.IsZero() && chunk.StartTime.Before(since) {
				continue
			}
			out = append(out, chunk)
		}
	}
	return out
}

// SessionBytes reports the live payload bytes currently held for the session.
func (s *Store) SessionBytes(sessionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionID]
	if sess == nil {
		return 0
	}
	s.trimSessionLocked(sess, s.now().Add(-s.cfg.Window))
	return sess.totalBytes
}

// DropSession removes all chunks for the session immediately. Dropping an
// unknown session is a no-op.
func (s *Store) DropSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Sweep trims expired chunks across all sessions and reports how many were
// reclaimed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.cfg.Window)
	reclaimed := 0
	for _, sess := range s.sessions {
		reclaimed += s.trimSessionLocked(sess, cutoff)
	}
	return reclaimed
}

// Run sweeps expired chunks on the given interval until ctx is cancelled.
// Reads already filter expired chunks, so the sweep only bounds memory growth
// for idle sessions.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) trimSessionLocked(sess *sessionBuffer, cutoff time.Time) int {
	reclaimed := 0
	for _, src := range sess.sources {
		kept := 0
		for kept < len(src.chunks) && src.chunks[kept].StartTime.Before(cutoff) {
			sess.totalBytes -= int64(len(src.chunks[kept].Payload))
			kept++
		}
		if kept > 0 {
			// Reslice into a fresh backing array so expired payloads can be
			// collected. The source entry itself stays so sequence tracking
			// survives quiet periods within a session.
			src.chunks = append([]Chunk(nil), src.chunks[kept:]...)
			reclaimed += kept
		}
	}
	return reclaimed
}
