package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"kitakita/internal/agents"
	"kitakita/pkg/errors"
)

// Compile-time check that we implement the interface
var _ agents.DecisionSink = (*DecisionRepository)(nil)

// DecisionRepository persists decision records for the audit trail.
type DecisionRepository struct {
	db DBTX
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db DBTX) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// decisionRow is the flattened storage shape of a decision.
type decisionRow struct {
	Context   json.RawMessage `json:"context"`
	Options   json.RawMessage `json:"options"`
	Reasoning json.RawMessage `json:"reasoning"`
	FollowUp  json.RawMessage `json:"follow_up"`
}

// SaveDecision inserts one decision record. The structured parts go into a
// JSONB payload; the fields the dashboard filters on get their own columns.
func (r *DecisionRepository) SaveDecision(ctx context.Context, userID uuid.UUID, d agents.Decision) error {
	payload, err := marshalDecisionPayload(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO agent_decisions (
			id, agent_id, user_id, chosen, confidence, degraded,
			requires_confirmation, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		d.ID, d.AgentID, userID, d.Chosen, d.Confidence, d.Degraded,
		d.RequiresConfirmation, payload, d.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "save decision")
	}

	return nil
}

// CountRecent returns how many decisions the user accumulated since the
// cutoff, split by degraded flag.
func (r *DecisionRepository) CountRecent(ctx context.Context, userID uuid.UUID) (total, degraded int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE degraded)
		FROM agent_decisions
		WHERE user_id = $1 AND created_at > NOW() - INTERVAL '24 hours'`

	row := r.db.QueryRowContext(ctx, query, userID)
	if err := row.Scan(&total, &degraded); err != nil {
		return 0, 0, errors.Wrap(err, "count recent decisions")
	}

	return total, degraded, nil
}

func marshalDecisionPayload(d agents.Decision) ([]byte, error) {
	contextJSON, err := json.Marshal(d.Context)
	if err != nil {
		return nil, errors.Wrap(err, "marshal decision context")
	}
	optionsJSON, err := json.Marshal(d.Options)
	if err != nil {
		return nil, errors.Wrap(err, "marshal decision options")
	}
	reasoningJSON, err := json.Marshal(d.Reasoning)
	if err != nil {
		return nil, errors.Wrap(err, "marshal reasoning chain")
	}
	followUpJSON, err := json.Marshal(d.FollowUp)
	if err != nil {
		return nil, errors.Wrap(err, "marshal follow-up plan")
	}

	return json.Marshal(decisionRow{
		Context:   contextJSON,
		Options:   optionsJSON,
		Reasoning: reasoningJSON,
		FollowUp:  followUpJSON,
	})
}
