package events

import (
	"time"

	"github.com/google/uuid"
)

// DecisionEvent is the audit-stream record for one completed decision.
type DecisionEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	DecisionID uuid.UUID `json:"decision_id"`
	AgentID    string    `json:"agent_id"`
	UserID     uuid.UUID `json:"user_id"`
	Chosen     string    `json:"chosen"`
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecoveryEvent marks an agent entering or leaving self-heal.
type RecoveryEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	AgentID   string    `json:"agent_id"`
	UserID    uuid.UUID `json:"user_id"`
	Phase     string    `json:"phase"` // started|completed|offline
	Timestamp time.Time `json:"timestamp"`
}

// InsightsRefreshedEvent signals that a user's dashboard insights were rebuilt.
type InsightsRefreshedEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	UserID    uuid.UUID `json:"user_id"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}
