// Package server exposes the pipeline over HTTP: a JSON API for session
// control and chunk ingestion, plus a websocket feed of lifecycle events.
package server

import (
	"log/slog"
	"net/http"
)

// Handler builds the full route table. warnings are configuration validation
// messages surfaced on the health endpoint.
func Handler(hub *Hub, coord Coordinator, artifacts ArtifactStore, warnings []string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	registerWSRoute(mux, hub, logger)
	registerAPIRoutes(mux, coord, artifacts, warnings)
	return mux
}
