package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/flightboard/internal/domain/display"
	"github.com/okian/flightboard/pkg/metrics"
)

// StreamHandler pushes board snapshots as server-sent events.
type StreamHandler struct {
	board     *display.Board
	serverCtx context.Context
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(board *display.Board) *StreamHandler {
	return &StreamHandler{board: board, serverCtx: context.Background()}
}

// HandleStream handles GET /api/events. Every change of the board is sent
// as a "state" event carrying the full snapshot.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "stream", fmt.Errorf("%w: streaming unsupported", ErrUnavailable))
		return
	}

	updates, cancel := h.board.Subscribe()
	defer func() {
		cancel()
		metrics.UpdateStreamSubscribers(h.board.Subscribers())
	}()
	metrics.UpdateStreamSubscribers(h.board.Subscribers())

	// The server's write timeout would otherwise cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.serverCtx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
