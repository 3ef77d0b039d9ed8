package api

import (
	"net/http"

	"github.com/okian/flightboard/internal/domain/display"
)

// StateHandler serves the current board snapshot.
type StateHandler struct {
	board *display.Board
}

// NewStateHandler creates a new state handler.
func NewStateHandler(board *display.Board) *StateHandler {
	return &StateHandler{board: board}
}

// HandleState handles GET /api/state requests.
func (h *StateHandler) HandleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, h.board.Snapshot())
}
