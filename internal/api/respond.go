package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"example.com/wellness/internal/domain"
)

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// CooldownResponse is returned with 429 when a type is still cooling down.
type CooldownResponse struct {
	Type             string `json:"type"`
	Detail           string `json:"detail"`
	ActivityType     string `json:"activity_type"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var cooldownErr *domain.CooldownError
	switch {
	case errors.As(err, &cooldownErr):
		writeJSON(w, http.StatusTooManyRequests, CooldownResponse{
			Type:             "cooldown_active",
			Detail:           cooldownErr.Error(),
			ActivityType:     cooldownErr.ActivityType,
			RemainingSeconds: seconds(cooldownErr.Remaining),
		})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrStorage):
		h.logger.Warn("storage failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "storage_failure", err.Error())
	case errors.Is(err, domain.ErrAIGateway):
		writeError(w, http.StatusBadGateway, "ai_gateway_failure", err.Error())
	default:
		h.logger.Error("unexpected error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// seconds rounds d up so a pending wait never reports zero.
func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
