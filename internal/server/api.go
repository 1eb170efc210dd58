package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
	"github.com/MizukiMachine/discord-VC-minutes/internal/session"
	"github.com/MizukiMachine/discord-VC-minutes/internal/storage"
	"github.com/MizukiMachine/discord-VC-minutes/internal/summary"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Coordinator is the slice of the session layer the HTTP surface drives.
type Coordinator interface {
	Open(sessionID, channelName string) error
	Ingest(chunk audio.Chunk) error
	RemoveSource(sessionID, sourceID string) error
	Summarize(ctx context.Context, sessionID string) (session.Result, error)
	Close(sessionID string) error
	Sessions() []session.Info
	Session(sessionID string) (session.Info, error)
}

// ArtifactStore serves archived minutes and fallback transcripts.
type ArtifactStore interface {
	MinutesBySession(sessionID string) ([]summary.Minutes, error)
	LatestTranscript(sessionID string) (storage.ArchivedTranscript, error)
}

type openSessionRequest struct {
	SessionID   string `json:"session_id"`
	ChannelName string `json:"channel_name"`
}

type ingestChunkRequest struct {
	SourceID  string    `json:"source_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Sequence  uint64    `json:"sequence"`
	Payload   []byte    `json:"payload"`
}

func registerAPIRoutes(mux *http.ServeMux, coord Coordinator, artifacts ArtifactStore, warnings []string) {
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		ws := warnings
		if ws == nil {
			ws = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": len(coord.Sessions()),
			"warnings": ws,
		})
	})

	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, coord.Sessions())
	})

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req openSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		if !validSessionID(req.SessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		if err := coord.Open(req.SessionID, req.ChannelName); err != nil {
			writeCoordinatorError(w, err)
			return
		}

		info, err := coord.Session(req.SessionID)
		if err != nil {
			writeCoordinatorError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, info)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		info, err := coord.Session(sessionID)
		if err != nil {
			writeCoordinatorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	mux.HandleFunc("POST /api/sessions/{id}/chunks", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		var req ingestChunkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}

		err := coord.Ingest(audio.Chunk{
			SessionID: sessionID,
			SourceID:  req.SourceID,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Sequence:  req.Sequence,
			Payload:   req.Payload,
		})
		if err != nil {
			writeCoordinatorError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/sessions/{id}/minutes", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		result, err := coord.Summarize(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, summary.ErrSummarizationFailed) {
				// The transcript survived; hand it back so the text is not lost.
				writeJSON(w, http.StatusBadGateway, map[string]any{
					"error":      err.Error(),
					"transcript": result.Transcript.Render(),
				})
				return
			}
			writeCoordinatorError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"minutes":    result.Minutes,
			"transcript": result.Transcript.Render(),
		})
	})

	mux.HandleFunc("GET /api/sessions/{id}/minutes", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		minutes, err := artifacts.MinutesBySession(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list minutes: %v", err))
			return
		}
		if minutes == nil {
			minutes = []summary.Minutes{}
		}
		writeJSON(w, http.StatusOK, minutes)
	})

	mux.HandleFunc("GET /api/sessions/{id}/transcript", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		tr, err := artifacts.LatestTranscript(sessionID)
		if err != nil {
			if errors.Is(err, storage.ErrNotArchived) {
				writeJSONError(w, http.StatusNotFound, "no archived transcript")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get transcript: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, tr)
	})

	mux.HandleFunc("DELETE /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		if err := coord.Close(sessionID); err != nil {
			writeCoordinatorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /api/sessions/{id}/sources/{source}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		sourceID := r.PathValue("source")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusBadRequest, "invalid session id")
			return
		}

		if err := coord.RemoveSource(sessionID, sourceID); err != nil {
			writeCoordinatorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// writeCoordinatorError maps pipeline errors onto HTTP statuses.
func writeCoordinatorError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyOpen),
		errors.Is(err, session.ErrSummarizationInProgress),
		errors.Is(err, audio.ErrStaleSequence):
		status = http.StatusConflict
	case errors.Is(err, session.ErrClosedDuringSummarization):
		status = http.StatusGone
	case errors.Is(err, audio.ErrInvalidChunk):
		status = http.StatusBadRequest
	case errors.Is(err, audio.ErrChunkTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, audio.ErrCapacityExceeded):
		status = http.StatusInsufficientStorage
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		// Transcription backend trouble surfaces as a gateway failure.
		status = http.StatusBadGateway
	}
	writeJSONError(w, status, err.Error())
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
