package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"example.com/wellness/internal/cooldown"
)

// streamCooldown emits a server-sent "cooldown" event every tick while the
// activity type is blocked, then a final "ready" event.
func (h *Handler) streamCooldown(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", "streaming unsupported")
		return
	}

	p := principal(r)
	activityType := pathParam(r, "type")
	if p.UserID == "" && p.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "X-Device-ID header is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	remaining := func() (time.Duration, bool) {
		d := h.svc.Activities.Remaining(p, activityType)
		return d, d > 0
	}
	for left := range cooldown.Countdown(r.Context(), remaining, h.tick) {
		if err := writeEvent(w, "cooldown", CooldownView{ActivityType: activityType, RemainingSeconds: seconds(left)}); err != nil {
			return
		}
		flusher.Flush()
	}
	if r.Context().Err() != nil {
		return
	}
	_ = writeEvent(w, "ready", CooldownView{ActivityType: activityType})
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
