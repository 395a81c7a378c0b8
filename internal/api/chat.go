package api

import (
	"net/http"
	"strings"
	"time"

	"example.com/wellness/internal/domain"
)

func (h *Handler) chatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Chats.History(r.Context(), principal(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": msgs})
}

func (h *Handler) sendChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	ex, err := h.svc.Chats.Send(r.Context(), principal(r), domain.SendInput{
		Message:        req.Message,
		IncludeContext: req.IncludeContext,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (h *Handler) clearChats(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Chats.Clear(r.Context(), principal(r)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) chatTranscript(w http.ResponseWriter, r *http.Request) {
	loc := h.location
	if tz := strings.TrimSpace(r.URL.Query().Get("tz")); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown time zone")
			return
		}
		loc = parsed
	}

	text, err := h.svc.Chats.Transcript(r.Context(), principal(r), loc)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// setAPIKey stores a per-device key that takes precedence over the service key.
func (h *Handler) setAPIKey(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "X-Device-ID header is required")
		return
	}
	var req APIKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if err := h.svc.Offline.SetAPIKey(r.Context(), p.DeviceID, strings.TrimSpace(req.APIKey)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearAPIKey(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "X-Device-ID header is required")
		return
	}
	if err := h.svc.Offline.ClearAPIKey(r.Context(), p.DeviceID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
