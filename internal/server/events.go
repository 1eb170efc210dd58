package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type SessionOpenedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type SessionClosedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type MinutesReadyEvent struct {
	Event
	SessionID    string `json:"session_id"`
	Body         string `json:"body"`
	WindowStart  string `json:"window_start"`
	WindowEnd    string `json:"window_end"`
	SegmentCount int    `json:"segment_count"`
	Stages       int    `json:"stages"`
}

type MinutesFailedEvent struct {
	Event
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
