package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/summary"
)

// Hub fans pipeline events out to websocket subscribers. It satisfies the
// coordinator's event sink, so minutes and lifecycle changes reach clients
// without the coordinator knowing about websockets.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Broadcast delivers to every subscriber, dropping the message for any
// subscriber whose buffer is full.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) SessionOpened(sessionID string) {
	h.broadcastEvent(SessionOpenedEvent{
		Event:     newEvent("session_opened", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) SessionClosed(sessionID string) {
	h.broadcastEvent(SessionClosedEvent{
		Event:     newEvent("session_closed", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) MinutesReady(m summary.Minutes) {
	h.broadcastEvent(MinutesReadyEvent{
		Event:        newEvent("minutes_ready", m.GeneratedAt),
		SessionID:    m.SessionID,
		Body:         m.Body,
		WindowStart:  m.WindowStart.UTC().Format(time.RFC3339Nano),
		WindowEnd:    m.WindowEnd.UTC().Format(time.RFC3339Nano),
		SegmentCount: m.SegmentCount,
		Stages:       m.Stages,
	})
}

func (h *Hub) MinutesFailed(sessionID, reason string) {
	h.broadcastEvent(MinutesFailedEvent{
		Event:     newEvent("minutes_failed", time.Now().UTC()),
		SessionID: sessionID,
		Reason:    reason,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("event marshal failed", "error", err)
		return
	}
	h.Broadcast(payload)
}
