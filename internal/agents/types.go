package agents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AutonomyLevel controls whether a decision needs human confirmation.
type AutonomyLevel string

const (
	AutonomyHigh   AutonomyLevel = "high"   // auto-commit above the decision threshold
	AutonomyMedium AutonomyLevel = "medium" // confirm below the decision threshold
	AutonomyLow    AutonomyLevel = "low"    // always confirm
)

// State is the agent lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateRecovering   State = "recovering"
	StateOffline      State = "offline"
)

// DecisionSeekHumanAssistance is the sentinel decision returned when the
// pipeline fails. Consumers are expected to special-case it.
const DecisionSeekHumanAssistance = "seek_human_assistance"

// degradedConfidence is the confidence attached to the sentinel decision.
const degradedConfidence = 0.5

// DecisionContext carries free-form situational data into the pipeline.
type DecisionContext map[string]interface{}

// Analysis is the output of the AnalyzeSituation stage.
type Analysis struct {
	Summary string
	Urgency float64 // 0-1
	Fields  map[string]interface{}
}

// Option is one candidate action with its evaluation score.
type Option struct {
	Name      string
	Score     float64
	Rationale string
}

// Selection is the outcome of SelectAction: the chosen option and the
// confidence the stage reports for it. Confidence is not normalized across
// agent types.
type Selection struct {
	Option     Option
	Confidence float64
}

// ReasoningChain explains a decision step by step.
type ReasoningChain struct {
	Steps      []string
	Conclusion string
}

// FollowUpPlan lists actions to take after a decision.
type FollowUpPlan struct {
	Actions  []string
	Timeline string
}

// Decision is the immutable record of one completed pipeline invocation.
type Decision struct {
	ID                   uuid.UUID
	AgentID              string
	Context              DecisionContext
	Options              []Option
	Chosen               string
	Confidence           float64
	Reasoning            ReasoningChain
	FollowUp             FollowUpPlan
	Timestamp            time.Time
	Degraded             bool
	RequiresConfirmation bool
}

// Strategy holds the four mandatory pipeline stages. There are no default
// implementations: a specialized agent must provide all four. Embed
// UnimplementedStrategy to satisfy the interface while stages are being
// built out.
type Strategy interface {
	AnalyzeSituation(ctx context.Context, dctx DecisionContext) (Analysis, error)
	GenerateOptions(ctx context.Context, dctx DecisionContext, analysis Analysis) ([]Option, error)
	EvaluateOptions(ctx context.Context, options []Option, dctx DecisionContext) ([]Option, error)
	SelectAction(ctx context.Context, evaluated []Option, dctx DecisionContext) (Selection, error)
}

// OptionalStages are pipeline stages with inert defaults.
type OptionalStages interface {
	BuildReasoningChain(ctx context.Context, dctx DecisionContext, analysis Analysis, chosen Selection) (ReasoningChain, error)
	PlanFollowUp(ctx context.Context, dctx DecisionContext, chosen Selection) (FollowUpPlan, error)
}

// DecisionSink persists completed decision records. Failures are logged and
// never propagate into the pipeline.
type DecisionSink interface {
	SaveDecision(ctx context.Context, userID uuid.UUID, d Decision) error
}
