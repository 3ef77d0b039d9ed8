// Package api serves the dashboard over HTTP: the page itself, its live
// state stream and the consistency-check form target.
package api

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/flightboard/internal/domain/display"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the poller implementation.
type Dependencies interface {
	StatsProvider

	// Board exposes the display context to render.
	Board() *display.Board

	// TriggerConsistencyCheck starts a consistency check in the background.
	TriggerConsistencyCheck() error
}

// Server wires HTTP routes for the dashboard.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	dashboardHandler   *dashboardHandler
	stateHandler       *StateHandler
	streamHandler      *StreamHandler
	consistencyHandler *ConsistencyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		dashboardHandler:   newDashboardHandler(deps.Board()),
		stateHandler:       NewStateHandler(deps.Board()),
		streamHandler:      NewStreamHandler(deps.Board()),
		consistencyHandler: NewConsistencyHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. Cancelling ctx ends open event
// streams, which http.Server.Shutdown alone would wait for.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	s.streamHandler.serverCtx = ctx

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /api/state", MetricsMiddleware(s.stateHandler.HandleState, "state"))
	mux.HandleFunc("GET /api/events", s.streamHandler.HandleStream)
	mux.HandleFunc("POST /consistency-check", MetricsMiddleware(s.consistencyHandler.HandleSubmit, "consistency_check"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))
	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.dashboardHandler.HandleDashboard, "dashboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
