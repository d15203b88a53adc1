package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Moudilu/audio-controller/internal/audit"
	"github.com/Moudilu/audio-controller/internal/events"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/bluetooth", func(r chi.Router) {
			r.Get("/on", s.fireHandler(events.APIBluetoothOn))
			r.Get("/off", s.fireHandler(events.APIBluetoothOff))
			r.Get("/discoverable", s.fireHandler(events.APIBluetoothDiscoverable))
		})

		r.Get("/pairings", s.handleListPairings)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"routing": s.bus.Started(),
	})
}

// fireHandler returns a handler that fires the given event on the bus.
//
// The handler blocks until the event is fully delivered (or the request is
// cancelled), so a 200 means every subscribed component has already acted.
func (s *Server) fireHandler(event events.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := "REST API call from " + r.RemoteAddr
		if err := s.bus.Fire(r.Context(), event, origin); err != nil {
			s.logger.Warn("event not delivered", "event", event.String(), "error", err)
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event routing not available")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"event":  event.String(),
			"status": "delivered",
		})
	}
}

// handleListPairings returns the pairing authorization audit trail.
//
// Query parameters:
//   - decision: filter by "granted" or "denied"
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListPairings(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "pairing audit is not enabled")
		return
	}

	filter := audit.Filter{
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}
	switch decision := r.URL.Query().Get("decision"); decision {
	case "":
	case string(audit.DecisionGranted), string(audit.DecisionDenied):
		filter.Decision = audit.Decision(decision)
	default:
		writeBadRequest(w, "decision must be granted or denied")
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list pairing records", "error", err)
		writeInternalError(w, "failed to list pairing records")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
