package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// UpdatesHandler streams change notifications over server-sent events so
// clients viewing the same event see each other's locks and edits.
type UpdatesHandler struct {
	broker    Subscriber
	heartbeat time.Duration
}

// NewUpdatesHandler creates an SSE updates handler.
func NewUpdatesHandler(broker Subscriber, heartbeat time.Duration) *UpdatesHandler {
	return &UpdatesHandler{broker: broker, heartbeat: heartbeat}
}

// HandleStream subscribes the client to the event's change feed. The
// stream carries notifications only; clients refetch the scoreboard on
// receipt.
func (h *UpdatesHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The broker accounts for stream clients; no extra metrics here.
	events, cancel := h.broker.Subscribe(eventID)
	defer cancel()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			body, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, body)
			flusher.Flush()
		}
	}
}
