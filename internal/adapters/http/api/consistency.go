package api

import (
	"errors"
	"net/http"
	"strings"
)

// ConsistencyTrigger starts a consistency check without waiting for it.
type ConsistencyTrigger interface {
	TriggerConsistencyCheck() error
}

// ConsistencyHandler is the target of the consistency-check form.
type ConsistencyHandler struct {
	trigger ConsistencyTrigger
}

// NewConsistencyHandler creates a new consistency handler.
func NewConsistencyHandler(trigger ConsistencyTrigger) *ConsistencyHandler {
	return &ConsistencyHandler{trigger: trigger}
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// HandleSubmit handles POST /consistency-check. Scripted submissions get
// 202 Accepted and stay on the page; plain form posts are redirected back
// to the dashboard. The result arrives through the state stream.
func (h *ConsistencyHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := h.trigger.TriggerConsistencyCheck(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", errors.Join(ErrUnavailable, err))
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") != "" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
