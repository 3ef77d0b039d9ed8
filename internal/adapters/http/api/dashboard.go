package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/okian/flightboard/internal/domain/display"
)

// regionView is one region as the page template sees it.
type regionView struct {
	ID    string
	Title string
	Text  string
}

type pageView struct {
	LastUpdated     string
	Regions         []regionView
	Banners         []display.Banner
	MessagesVisible bool
}

var regionTitles = map[string]string{
	"processing-stats":  "Processing Statistics",
	"analyzer-stats":    "Analyzer Statistics",
	"event-flight":      "Flight Schedule Event",
	"event-passenger":   "Passenger Check-in Event",
	"consistency-stats": "Consistency Checks",
}

// dashboardHandler renders the dashboard page from the current board.
type dashboardHandler struct {
	board *display.Board
	page  *template.Template
}

func newDashboardHandler(board *display.Board) *dashboardHandler {
	return &dashboardHandler{
		board: board,
		page:  template.Must(template.ParseFS(staticFS, "index.html")),
	}
}

// HandleDashboard handles GET / requests.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, _ *http.Request) {
	snap := h.board.Snapshot()
	view := pageView{
		LastUpdated:     snap.LastUpdated,
		Banners:         snap.Banners,
		MessagesVisible: snap.MessagesVisible,
	}
	for _, id := range h.board.RegionIDs() {
		title, ok := regionTitles[id]
		if !ok {
			title = id
		}
		view.Regions = append(view.Regions, regionView{ID: id, Title: title, Text: snap.Regions[id].Text})
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, view); err != nil {
		writeError(w, http.StatusInternalServerError, "render", fmt.Errorf("%w: %w", ErrRender, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}
