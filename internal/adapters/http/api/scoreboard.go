package api

import (
	"errors"
	"net/http"
)

// ScoreboardHandler serves the complete scored view of an event.
type ScoreboardHandler struct {
	deps Dependencies
}

// NewScoreboardHandler creates a scoreboard handler.
func NewScoreboardHandler(deps Dependencies) *ScoreboardHandler {
	return &ScoreboardHandler{deps: deps}
}

// HandleGetScoreboard returns the event's panels, totals and gold division,
// in whichever mode the event is currently in.
func (h *ScoreboardHandler) HandleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "missing_event", errors.New("missing event id"))
		return
	}

	report, err := h.deps.Scoreboard(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
