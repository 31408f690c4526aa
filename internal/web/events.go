package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kuitang/pocketnotes/internal/obs"
)

const (
	// eventBuffer is the per-connection change buffer; a stalled client drops changes.
	eventBuffer = 32
	// keepAliveInterval spaces SSE comments that stop proxies from closing idle streams.
	keepAliveInterval = 25 * time.Second
)

// HandleEvents handles GET /events - a server-sent event stream of store changes.
// Each change is sent as an event named "change" whose data is the JSON Change.
func (h *WebHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	changes, cancel := h.store.Subscribe(eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 2000\n\n")
	flusher.Flush()

	logger := obs.From(r.Context())
	logger.Debug("web.events_connected")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("web.events_disconnected")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case change, ok := <-changes:
			if !ok {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				logger.Error("web.events_encode_failed", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
