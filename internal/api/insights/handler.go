package insights

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"kitakita/internal/services/advisor"
	"kitakita/pkg/errors"
	"kitakita/pkg/logger"
)

// Handler serves dashboard insights over HTTP.
type Handler struct {
	advisor *advisor.Service
	log     *logger.Logger
}

// New creates an insights handler.
func New(svc *advisor.Service, log *logger.Logger) *Handler {
	return &Handler{advisor: svc, log: log}
}

// HandleDashboard serves GET /v1/users/{user_id}/insights.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	dashboard, err := h.advisor.DashboardInsights(r.Context(), userID)
	if errors.Is(err, errors.ErrBudgetExhausted) {
		writeError(w, http.StatusTooManyRequests, "refresh budget exhausted, try again shortly")
		return
	}
	if err != nil {
		h.log.Errorf("Dashboard insights failed for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "insights unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dashboard)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
