package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"example.com/wellness/internal/domain"
)

// LoginResponse carries the new session and the outcome of the post-login sync.
type LoginResponse struct {
	Session domain.Session    `json:"session"`
	Sync    domain.SyncReport `json:"sync"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	session, report, err := h.svc.Login.Login(r.Context(), principal(r).DeviceID, req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Session: session, Sync: report})
}

// syncNow runs the offline-to-remote migration for an already signed-in caller.
// Partial failures are returned as notices with 200.
func (h *Handler) syncNow(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	report, err := h.svc.Sync.Sync(r.Context(), p)
	if err != nil {
		if errors.Is(err, domain.ErrAuthRequired) {
			h.writeDomainError(w, err)
			return
		}
		h.logger.Warn("sync incomplete", zap.String("user_id", p.UserID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, report)
}
