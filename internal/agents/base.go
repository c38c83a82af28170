package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitakita/internal/adapters/ai"
	"kitakita/internal/domain/finance"
	"kitakita/internal/metrics"
	"kitakita/pkg/errors"
	"kitakita/pkg/logger"
)

// Config carries the identity and tuning knobs of one agent instance.
type Config struct {
	Type              string
	Autonomy          AutonomyLevel
	DecisionThreshold float64 // 0-1, below it a decision needs confirmation
	LearningRate      float64
	ErrorThreshold    int
	QuietPeriod       time.Duration
	HistoryCapacity   int
}

// Deps are the collaborators every agent needs.
type Deps struct {
	Gateway   ai.Gateway
	Store     finance.Store
	Decisions DecisionSink      // optional
	Publisher DecisionPublisher // optional
}

// DecisionPublisher emits completed decisions to the audit stream.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, agentID string, userID uuid.UUID, d Decision) error
}

// RecoveryPublisher is optionally implemented by a DecisionPublisher that also
// carries self-heal lifecycle events.
type RecoveryPublisher interface {
	PublishRecovery(ctx context.Context, agentID string, userID uuid.UUID, phase string) error
}

// Recovery phases emitted around self-heal.
const (
	RecoveryPhaseStarted   = "started"
	RecoveryPhaseCompleted = "completed"
	RecoveryPhaseOffline   = "offline"
)

// BaseAgent runs the fixed decision pipeline: analyze, generate options,
// evaluate, select, explain, plan follow-up. The mandatory stages come from
// the Strategy; optional stages default to inert results. Decide never
// returns an error: any stage failure degrades to the seek_human_assistance
// sentinel.
type BaseAgent struct {
	id        string
	config    Config
	userID    uuid.UUID
	createdAt time.Time

	gateway   ai.Gateway
	store     finance.Store
	decisions DecisionSink
	publisher DecisionPublisher

	memory   *Memory
	recovery *RecoveryTracker
	history  *decisionHistory

	strategy Strategy
	optional OptionalStages

	stateMu sync.RWMutex
	state   State

	perfMu            sync.Mutex
	decisionsMade     int64
	autonomousActions int64

	healMu  sync.Mutex
	healing bool

	log *logger.Logger
}

// newBaseAgent wires the shared machinery. Specialized agents construct it
// through their own async factories and must call initialize before use.
func newBaseAgent(userID uuid.UUID, cfg Config, deps Deps, strategy Strategy, optional OptionalStages) (*BaseAgent, error) {
	if deps.Gateway == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gateway is required")
	}
	if deps.Store == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "store is required")
	}
	if strategy == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "strategy is required")
	}
	if optional == nil {
		optional = DefaultOptionalStages{}
	}
	if cfg.DecisionThreshold <= 0 {
		cfg.DecisionThreshold = 0.6
	}
	if cfg.Autonomy == "" {
		cfg.Autonomy = AutonomyMedium
	}

	now := time.Now()
	a := &BaseAgent{
		id:        fmt.Sprintf("%s_%d", cfg.Type, now.UnixMilli()),
		config:    cfg,
		userID:    userID,
		createdAt: now,
		gateway:   deps.Gateway,
		store:     deps.Store,
		decisions: deps.Decisions,
		publisher: deps.Publisher,
		memory:    NewMemory(),
		recovery:  NewRecoveryTracker(cfg.ErrorThreshold, cfg.QuietPeriod),
		history:   newDecisionHistory(cfg.HistoryCapacity),
		strategy:  strategy,
		optional:  optional,
		state:     StateInitializing,
		log:       logger.Get().With("agent", cfg.Type, "user_id", userID),
	}
	return a, nil
}

// initialize loads cached profile and transaction data into memory and moves
// the agent to active. Store failures are treated as missing data, not as
// initialization failures.
func (a *BaseAgent) initialize(ctx context.Context, semanticLoader func() map[string]interface{}) error {
	a.setState(StateInitializing)

	profile, err := a.store.GetUserData(ctx, a.userID)
	if err != nil {
		a.log.Warnf("Profile load failed, continuing without: %v", err)
	} else if profile != nil {
		a.memory.LoadLongTerm(map[string]interface{}{
			"profile":        profile,
			"currency":       profile.Currency,
			"monthly_budget": profile.MonthlyBudget,
			"savings_goal":   profile.SavingsGoal,
			"risk_tolerance": profile.RiskTolerance,
		})
	}

	snapshot := a.loadSnapshot(ctx)
	a.memory.SetShort("snapshot", snapshot)

	a.memory.LoadSemantic(semanticLoader)

	a.setState(StateActive)
	a.log.Info("Agent initialized")
	return nil
}

// loadSnapshot fetches accounts and transactions, tolerating per-call
// failures, and derives aggregates.
func (a *BaseAgent) loadSnapshot(ctx context.Context) *finance.Snapshot {
	profile, err := a.store.GetUserData(ctx, a.userID)
	if err != nil {
		profile = nil
	}

	txs, err := a.store.GetUserTransactions(ctx, a.userID)
	if err != nil {
		a.log.Warnf("Transaction load failed, treating as empty: %v", err)
		txs = nil
	}

	accounts, err := a.store.GetUserBankAccounts(ctx, a.userID)
	if err != nil {
		a.log.Warnf("Account load failed, treating as empty: %v", err)
		accounts = nil
	}

	return finance.BuildSnapshot(profile, accounts, txs, time.Now())
}

// ID returns the agent instance identifier (type tag plus generation time).
func (a *BaseAgent) ID() string { return a.id }

// Type returns the agent type tag.
func (a *BaseAgent) Type() string { return a.config.Type }

// UserID returns the owning user.
func (a *BaseAgent) UserID() uuid.UUID { return a.userID }

// Memory exposes the agent's memory subsystem.
func (a *BaseAgent) Memory() *Memory { return a.memory }

// Snapshot returns the last loaded financial snapshot, or an empty one.
func (a *BaseAgent) Snapshot() *finance.Snapshot {
	if v, ok := a.memory.GetShort("snapshot"); ok {
		if s, ok := v.(*finance.Snapshot); ok {
			return s
		}
	}
	return finance.BuildSnapshot(nil, nil, nil, time.Now())
}

// State returns the current lifecycle state.
func (a *BaseAgent) State() State {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

func (a *BaseAgent) setState(s State) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.state = s
}

// ErrorCounters returns the current error/recovery counters.
func (a *BaseAgent) ErrorCounters() Counters { return a.recovery.Snapshot() }

// DecisionHistory returns up to n most recent decisions, newest last.
func (a *BaseAgent) DecisionHistory(n int) []Decision { return a.history.Recent(n) }

// Decide turns a context and candidate options into one chosen action.
// It never fails: stage errors are caught here, logged into episodic memory,
// counted, and converted into the degraded sentinel decision.
func (a *BaseAgent) Decide(ctx context.Context, dctx DecisionContext, options []Option) Decision {
	decision, err := a.runPipeline(ctx, dctx, options)
	if err != nil {
		a.log.Warnf("Decision pipeline failed: %v", err)
		a.memory.RecordEpisode(Episode{
			Experience:   "decision_failure",
			Context:      err.Error(),
			EmotionalTag: "negative",
			Importance:   0.8,
		})

		if a.recovery.RecordError() {
			go a.selfHeal(context.WithoutCancel(ctx))
		}

		metrics.Decisions.WithLabelValues(a.config.Type, "degraded").Inc()
		return Decision{
			ID:                   uuid.New(),
			AgentID:              a.id,
			Context:              dctx,
			Chosen:               DecisionSeekHumanAssistance,
			Confidence:           degradedConfidence,
			Reasoning:            ReasoningChain{Conclusion: DecisionSeekHumanAssistance},
			Timestamp:            time.Now(),
			Degraded:             true,
			RequiresConfirmation: true,
		}
	}

	a.recovery.RecordSuccess()
	a.history.Append(decision)
	a.recordPerf(decision)
	metrics.Decisions.WithLabelValues(a.config.Type, "decided").Inc()

	a.persistAndPublish(ctx, decision)
	return decision
}

// runPipeline executes the stages in fixed order; stage N+1 only starts once
// stage N has fully completed.
func (a *BaseAgent) runPipeline(ctx context.Context, dctx DecisionContext, options []Option) (Decision, error) {
	analysis, err := a.strategy.AnalyzeSituation(ctx, dctx)
	if err != nil {
		return Decision{}, errors.Wrap(err, "analyze situation")
	}

	generated, err := a.strategy.GenerateOptions(ctx, dctx, analysis)
	if err != nil {
		return Decision{}, errors.Wrap(err, "generate options")
	}
	merged := mergeOptions(options, generated)

	evaluated, err := a.strategy.EvaluateOptions(ctx, merged, dctx)
	if err != nil {
		return Decision{}, errors.Wrap(err, "evaluate options")
	}

	selection, err := a.strategy.SelectAction(ctx, evaluated, dctx)
	if err != nil {
		return Decision{}, errors.Wrap(err, "select action")
	}

	chain, err := a.optional.BuildReasoningChain(ctx, dctx, analysis, selection)
	if err != nil {
		return Decision{}, errors.Wrap(err, "build reasoning chain")
	}

	followUp, err := a.optional.PlanFollowUp(ctx, dctx, selection)
	if err != nil {
		return Decision{}, errors.Wrap(err, "plan follow-up")
	}

	return Decision{
		ID:                   uuid.New(),
		AgentID:              a.id,
		Context:              dctx,
		Options:              evaluated,
		Chosen:               selection.Option.Name,
		Confidence:           selection.Confidence,
		Reasoning:            chain,
		FollowUp:             followUp,
		Timestamp:            time.Now(),
		RequiresConfirmation: a.needsConfirmation(selection.Confidence),
	}, nil
}

// needsConfirmation applies the autonomy policy.
func (a *BaseAgent) needsConfirmation(confidence float64) bool {
	switch a.config.Autonomy {
	case AutonomyHigh:
		return false
	case AutonomyLow:
		return true
	default:
		return confidence < a.config.DecisionThreshold
	}
}

func (a *BaseAgent) recordPerf(d Decision) {
	a.perfMu.Lock()
	defer a.perfMu.Unlock()
	a.decisionsMade++
	if !d.RequiresConfirmation {
		a.autonomousActions++
	}
}

// PerformanceCounters returns total decisions and autonomous actions.
func (a *BaseAgent) PerformanceCounters() (decisions, autonomous int64) {
	a.perfMu.Lock()
	defer a.perfMu.Unlock()
	return a.decisionsMade, a.autonomousActions
}

// persistAndPublish writes the record to the sink and audit stream,
// best effort.
func (a *BaseAgent) persistAndPublish(ctx context.Context, d Decision) {
	if a.decisions != nil {
		if err := a.decisions.SaveDecision(ctx, a.userID, d); err != nil {
			a.log.Warnf("Failed to persist decision %s: %v", d.ID, err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.PublishDecision(ctx, a.id, a.userID, d); err != nil {
			a.log.Warnf("Failed to publish decision %s: %v", d.ID, err)
		}
	}
}

// selfHeal re-runs the full initialization sequence after too many
// consecutive errors. Blunt full reset, per the platform's recovery design.
func (a *BaseAgent) selfHeal(ctx context.Context) {
	a.healMu.Lock()
	if a.healing {
		a.healMu.Unlock()
		return
	}
	a.healing = true
	a.healMu.Unlock()

	defer func() {
		a.healMu.Lock()
		a.healing = false
		a.healMu.Unlock()
	}()

	a.log.Warn("Error threshold crossed, re-running initialization")
	a.setState(StateRecovering)
	metrics.AgentRecoveries.WithLabelValues(a.config.Type).Inc()
	a.publishRecovery(ctx, RecoveryPhaseStarted)

	a.memory.ClearShort()
	if err := a.initialize(ctx, nil); err != nil {
		a.log.Errorf("Self-heal failed, going offline: %v", err)
		a.setState(StateOffline)
		a.publishRecovery(ctx, RecoveryPhaseOffline)
		return
	}

	a.recovery.Reset()
	a.publishRecovery(ctx, RecoveryPhaseCompleted)
	a.memory.RecordEpisode(Episode{
		Experience:   "self_heal",
		Context:      "reinitialized after error threshold",
		EmotionalTag: "neutral",
		Importance:   0.6,
	})
}

// publishRecovery emits a lifecycle event when the publisher supports it,
// best effort.
func (a *BaseAgent) publishRecovery(ctx context.Context, phase string) {
	rp, ok := a.publisher.(RecoveryPublisher)
	if !ok {
		return
	}
	if err := rp.PublishRecovery(ctx, a.id, a.userID, phase); err != nil {
		a.log.Warnf("Failed to publish recovery %s event: %v", phase, err)
	}
}

// QuietPeriodMaintenance resets stale error streaks. Called by the recovery
// probe worker.
func (a *BaseAgent) QuietPeriodMaintenance() {
	if a.recovery.MaybeQuietReset() {
		a.log.Debug("Consecutive error counter reset after quiet period")
	}
}

// mergeOptions combines caller-supplied candidates with generated ones,
// dropping duplicates by name.
func mergeOptions(provided, generated []Option) []Option {
	seen := make(map[string]bool, len(provided)+len(generated))
	merged := make([]Option, 0, len(provided)+len(generated))
	for _, o := range append(provided, generated...) {
		if o.Name == "" || seen[o.Name] {
			continue
		}
		seen[o.Name] = true
		merged = append(merged, o)
	}
	return merged
}

// DefaultOptionalStages supplies the inert defaults for the optional stages.
type DefaultOptionalStages struct{}

// BuildReasoningChain returns an empty chain concluding with the decision.
func (DefaultOptionalStages) BuildReasoningChain(_ context.Context, _ DecisionContext, _ Analysis, chosen Selection) (ReasoningChain, error) {
	return ReasoningChain{Conclusion: chosen.Option.Name}, nil
}

// PlanFollowUp returns an empty immediate plan.
func (DefaultOptionalStages) PlanFollowUp(_ context.Context, _ DecisionContext, _ Selection) (FollowUpPlan, error) {
	return FollowUpPlan{Timeline: "immediate"}, nil
}

// UnimplementedStrategy returns ErrStageNotImplemented from every mandatory
// stage. Embed it while building an agent out; invoking the pipeline with a
// stage still unimplemented degrades to the sentinel decision rather than
// crashing.
type UnimplementedStrategy struct{}

func (UnimplementedStrategy) AnalyzeSituation(context.Context, DecisionContext) (Analysis, error) {
	return Analysis{}, errors.Wrap(errors.ErrStageNotImplemented, "AnalyzeSituation")
}

func (UnimplementedStrategy) GenerateOptions(context.Context, DecisionContext, Analysis) ([]Option, error) {
	return nil, errors.Wrap(errors.ErrStageNotImplemented, "GenerateOptions")
}

func (UnimplementedStrategy) EvaluateOptions(context.Context, []Option, DecisionContext) ([]Option, error) {
	return nil, errors.Wrap(errors.ErrStageNotImplemented, "EvaluateOptions")
}

func (UnimplementedStrategy) SelectAction(context.Context, []Option, DecisionContext) (Selection, error) {
	return Selection{}, errors.Wrap(errors.ErrStageNotImplemented, "SelectAction")
}
