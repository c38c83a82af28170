package advice

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"kitakita/internal/agents"
	"kitakita/internal/services/orchestrator"
	"kitakita/pkg/errors"
	"kitakita/pkg/logger"
)

// Handler routes advice requests to the agent orchestrator.
type Handler struct {
	orchestrator *orchestrator.Service
	log          *logger.Logger
}

// New creates an advice handler.
func New(svc *orchestrator.Service, log *logger.Logger) *Handler {
	return &Handler{orchestrator: svc, log: log}
}

type adviceRequest struct {
	Question string `json:"question"`
}

type adviceResponse struct {
	DecisionID           uuid.UUID      `json:"decision_id"`
	AgentID              string         `json:"agent_id"`
	Chosen               string         `json:"chosen"`
	Confidence           float64        `json:"confidence"`
	Degraded             bool           `json:"degraded"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	Reasoning            []string       `json:"reasoning,omitempty"`
	Conclusion           string         `json:"conclusion"`
	FollowUpActions      []string       `json:"follow_up_actions,omitempty"`
	FollowUpTimeline     string         `json:"follow_up_timeline,omitempty"`
	Options              []adviceOption `json:"options,omitempty"`
}

type adviceOption struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// HandleAdvise serves POST /v1/users/{user_id}/agents/{agent}/advice.
func (h *Handler) HandleAdvise(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	kind := r.PathValue("agent")

	// An empty body means "no question"; malformed JSON is a client error
	var req adviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.orchestrator.Advise(r.Context(), userID, kind, req.Question)
	if errors.Is(err, errors.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "unknown agent kind")
		return
	}
	if err != nil {
		h.log.Errorf("Advice failed for user %s agent %s: %v", userID, kind, err)
		writeError(w, http.StatusInternalServerError, "advice unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toResponse(decision))
}

func toResponse(d agents.Decision) adviceResponse {
	resp := adviceResponse{
		DecisionID:           d.ID,
		AgentID:              d.AgentID,
		Chosen:               d.Chosen,
		Confidence:           d.Confidence,
		Degraded:             d.Degraded,
		RequiresConfirmation: d.RequiresConfirmation,
		Reasoning:            d.Reasoning.Steps,
		Conclusion:           d.Reasoning.Conclusion,
		FollowUpActions:      d.FollowUp.Actions,
		FollowUpTimeline:     d.FollowUp.Timeline,
	}
	for _, o := range d.Options {
		resp.Options = append(resp.Options, adviceOption{
			Name: o.Name, Score: o.Score, Rationale: o.Rationale,
		})
	}
	return resp
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
