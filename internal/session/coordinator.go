package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
	"github.com/MizukiMachine/discord-VC-minutes/internal/summary"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcribe"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcript"
)

const (
	stateRecording   = "recording"
	stateSummarizing = "summarizing"
)

type session struct {
	id          string
	createdAt   time.Time
	channelName string
	sources     map[string]struct{}
	lastWriteAt time.Time
	summarizing bool
}

// Coordinator owns the lifecycle of every active session and drives the
// pipeline on demand. Sessions live in an explicit map keyed by id; there is
// no process-wide current session. Audio writes only touch the chunk store
// and never wait on a network call; transcription and summarization are the
// only blocking operations and run outside the coordinator lock.
type Coordinator struct {
	store       ChunkStore
	transcriber Transcriber
	summarizer  Summarizer
	archive     Archive
	events      EventSink
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewCoordinator wires the pipeline stages together. archive and events may
// be nil; logger falls back to slog.Default.
func NewCoordinator(store ChunkStore, transcriber Transcriber, summarizer Summarizer, archive Archive, events EventSink, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:       store,
		transcriber: transcriber,
		summarizer:  summarizer,
		archive:     archive,
		events:      events,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// Open begins recording for a new session.
func (c *Coordinator) Open(sessionID, channelName string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrNotFound)
	}

	c.mu.Lock()
	if _, ok := c.sessions[sessionID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, sessionID)
	}
	c.sessions[sessionID] = &session{
		id:          sessionID,
		createdAt:   c.now().UTC(),
		channelName: channelName,
		sources:     make(map[string]struct{}),
	}
	c.mu.Unlock()

	c.logger.Info("session opened", "session_id", sessionID, "channel", channelName)
	if c.events != nil {
		c.events.SessionOpened(sessionID)
	}
	return nil
}

// Ingest stores one audio chunk for its session. It never blocks on network
// I/O; failures come straight from the store's own validation.
func (c *Coordinator) Ingest(chunk audio.Chunk) error {
	c.mu.Lock()
	sess, ok := c.sessions[chunk.SessionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, chunk.SessionID)
	}
	c.mu.Unlock()

	if err := c.store.Put(chunk); err != nil {
		return err
	}

	c.mu.Lock()
	// Re-check: the session may have closed between the store write and this
	// bookkeeping update. The dropped chunk is gone with the session either way.
	if current, ok := c.sessions[chunk.SessionID]; ok && current == sess {
		sess.sources[chunk.SourceID] = struct{}{}
		sess.lastWriteAt = c.now().UTC()
	}
	c.mu.Unlock()
	return nil
}

// RemoveSource marks a speaker as gone. Chunks already stored for other
// sources (and for the removed one, until they expire) stay readable.
func (c *Coordinator) RemoveSource(sessionID, sourceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	delete(sess.sources, sourceID)
	return nil
}

// Summarize runs the full pipeline over the session's current window: pull
// chunks, transcribe each, assemble, condense. At most one summarization runs
// per session; concurrent triggers get ErrSummarizationInProgress while
// different sessions proceed independently. On a summarization failure the
// assembled transcript still comes back in the Result.
func (c *Coordinator) Summarize(ctx context.Context, sessionID string) (Result, error) {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if sess.summarizing {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("%w: session %s", ErrSummarizationInProgress, sessionID)
	}
	sess.summarizing = true
	channelName := sess.channelName
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		// Only clear the flag on the same session instance; a close+reopen
		// under the same id must not be unlocked by a stale request.
		if current, ok := c.sessions[sessionID]; ok && current == sess {
			current.summarizing = false
		}
		c.mu.Unlock()
	}()

	chunks := c.store.Window(sessionID, time.Time{})
	c.logger.Info("summarization started", "session_id", sessionID, "chunks", len(chunks))

	segments, gaps, err := c.transcribeWindow(ctx, sessionID, chunks)
	if err != nil {
		return Result{}, err
	}

	tr := transcript.Assemble(sessionID, segments, gaps)
	info := summary.SessionInfo{
		SessionID:   sessionID,
		ChannelName: channelName,
		SourceCount: countSources(chunks),
	}

	minutes, err := c.summarizer.Summarize(ctx, tr, info)
	if err != nil {
		// The liveness gate covers both the archive and the event: a session
		// closed mid-flight publishes nothing, success or failure alike.
		if !c.alive(sessionID, sess) {
			c.logger.Info("discarding failed summarization for closed session", "session_id", sessionID)
			return Result{}, fmt.Errorf("%w: %s", ErrClosedDuringSummarization, sessionID)
		}
		c.logger.Warn("summarization failed, transcript retained", "session_id", sessionID, "error", err)
		if c.archive != nil {
			if archiveErr := c.archive.SaveTranscript(tr, "summarization failed"); archiveErr != nil {
				c.logger.Error("fallback transcript archive failed", "session_id", sessionID, "error", archiveErr)
			}
		}
		if c.events != nil {
			c.events.MinutesFailed(sessionID, err.Error())
		}
		return Result{Transcript: tr}, err
	}

	// The session may have closed while the backend call was in flight; a
	// result must never be published for a session that no longer exists.
	if !c.alive(sessionID, sess) {
		c.logger.Info("discarding minutes for closed session", "session_id", sessionID)
		return Result{}, fmt.Errorf("%w: %s", ErrClosedDuringSummarization, sessionID)
	}

	if c.archive != nil {
		if err := c.archive.SaveMinutes(minutes); err != nil {
			c.logger.Error("minutes archive failed", "session_id", sessionID, "error", err)
		}
	}
	if c.events != nil {
		c.events.MinutesReady(minutes)
	}

	c.logger.Info("summarization finished", "session_id", sessionID,
		"segments", minutes.SegmentCount, "stages", minutes.Stages)
	return Result{Minutes: minutes, Transcript: tr}, nil
}

// transcribeWindow runs every chunk through the gateway. Permanent failures
// become documented gaps; transient exhaustion and unavailable backends abort
// the whole request.
func (c *Coordinator) transcribeWindow(ctx context.Context, sessionID string, chunks []audio.Chunk) ([]transcribe.Segment, []transcript.Gap, error) {
	var segments []transcribe.Segment
	var gaps []transcript.Gap

	for _, chunk := range chunks {
		segs, err := c.transcriber.Transcribe(ctx, chunk)
		if err != nil {
			if errors.Is(err, transcribe.ErrPermanent) {
				c.logger.Warn("chunk dropped, gap recorded", "session_id", sessionID,
					"source_id", chunk.SourceID, "sequence", chunk.Sequence, "error", err)
				gaps = append(gaps, transcript.Gap{
					SourceID:  chunk.SourceID,
					StartTime: chunk.StartTime,
					EndTime:   chunk.EndTime,
					Reason:    "untranscribable audio",
				})
				continue
			}
			return nil, nil, fmt.Errorf("transcribe chunk %s/%d: %w", chunk.SourceID, chunk.Sequence, err)
		}
		segments = append(segments, segs...)
	}
	return segments, gaps, nil
}

// Close ends the session and drops its chunks immediately. An in-flight
// summarization is left to finish; its result will not be published.
func (c *Coordinator) Close(sessionID string) error {
	c.mu.Lock()
	_, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	c.store.DropSession(sessionID)
	c.logger.Info("session closed", "session_id", sessionID)
	if c.events != nil {
		c.events.SessionClosed(sessionID)
	}
	return nil
}

// CloseAll closes every open session. Used at shutdown.
func (c *Coordinator) CloseAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		_ = c.Close(id)
	}
}

// Sessions returns snapshots of all open sessions, ordered by id.
func (c *Coordinator) Sessions() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Info, 0, len(c.sessions))
	for _, sess := range c.sessions {
		out = append(out, c.infoLocked(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Session returns the snapshot for one session.
func (c *Coordinator) Session(sessionID string) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return c.infoLocked(sess), nil
}

func (c *Coordinator) infoLocked(sess *session) Info {
	state := stateRecording
	if sess.summarizing {
		state = stateSummarizing
	}
	sources := make([]string, 0, len(sess.sources))
	for id := range sess.sources {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	return Info{
		SessionID:     sess.id,
		CreatedAt:     sess.createdAt,
		State:         state,
		ActiveSources: sources,
		LastWriteAt:   sess.lastWriteAt,
	}
}

// alive reports whether the exact session instance is still open.
func (c *Coordinator) alive(sessionID string, sess *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.sessions[sessionID]
	return ok && current == sess
}

func countSources(chunks []audio.Chunk) int {
	seen := make(map[string]struct{})
	for _, chunk := range chunks {
		seen[chunk.SourceID] = struct{}{}
	}
	return len(seen)
}
