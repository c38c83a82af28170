package agents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitakita/pkg/errors"
)

func newTestAgent(t *testing.T, cfg Config, strategy Strategy, optional OptionalStages, deps Deps) *BaseAgent {
	t.Helper()
	if cfg.Type == "" {
		cfg.Type = "test_agent"
	}
	if deps.Gateway == nil {
		deps.Gateway = deadGateway()
	}
	if deps.Store == nil {
		deps.Store = &fakeStore{profile: testProfile()}
	}

	agent, err := newBaseAgent(uuid.New(), cfg, deps, strategy, optional)
	require.NoError(t, err)
	require.NoError(t, agent.initialize(context.Background(), nil))
	return agent
}

func TestNewBaseAgent_Validation(t *testing.T) {
	_, err := newBaseAgent(uuid.New(), Config{}, Deps{Store: &fakeStore{}}, UnimplementedStrategy{}, nil)
	require.Error(t, err, "gateway is mandatory")

	_, err = newBaseAgent(uuid.New(), Config{}, Deps{Gateway: deadGateway()}, UnimplementedStrategy{}, nil)
	require.Error(t, err, "store is mandatory")

	_, err = newBaseAgent(uuid.New(), Config{}, Deps{Gateway: deadGateway(), Store: &fakeStore{}}, nil, nil)
	require.Error(t, err, "strategy is mandatory")
}

func TestBaseAgent_InitializeToleratesStoreFailure(t *testing.T) {
	agent := newTestAgent(t, Config{}, UnimplementedStrategy{}, nil,
		Deps{Store: &fakeStore{failAll: true}})

	assert.Equal(t, StateActive, agent.State(), "store outage is missing data, not init failure")
	snapshot := agent.Snapshot()
	assert.Empty(t, snapshot.Transactions)
}

func TestBaseAgent_DecideNeverErrors(t *testing.T) {
	agent := newTestAgent(t, Config{}, UnimplementedStrategy{}, nil, Deps{})

	decision := agent.Decide(context.Background(), DecisionContext{"q": "anything"}, nil)

	assert.Equal(t, DecisionSeekHumanAssistance, decision.Chosen)
	assert.Equal(t, degradedConfidence, decision.Confidence)
	assert.True(t, decision.Degraded)
	assert.True(t, decision.RequiresConfirmation, "degraded decisions always need a human")
	assert.NotEqual(t, uuid.Nil, decision.ID)
}

func TestBaseAgent_DegradedDecisionLeavesEpisode(t *testing.T) {
	agent := newTestAgent(t, Config{}, UnimplementedStrategy{}, nil, Deps{})

	agent.Decide(context.Background(), DecisionContext{}, nil)

	episodes := agent.Memory().RecentEpisodes(1)
	require.Len(t, episodes, 1)
	assert.Equal(t, "decision_failure", episodes[0].Experience)
	assert.Equal(t, "negative", episodes[0].EmotionalTag)

	counters := agent.ErrorCounters()
	assert.Equal(t, 1, counters.ConsecutiveErrors)
}

func TestBaseAgent_DegradedDecisionNotInHistory(t *testing.T) {
	agent := newTestAgent(t, Config{}, UnimplementedStrategy{}, nil, Deps{})

	agent.Decide(context.Background(), DecisionContext{}, nil)

	assert.Empty(t, agent.DecisionHistory(0), "only completed decisions are recorded")
}

func TestBaseAgent_SuccessfulPipeline(t *testing.T) {
	sink := &fakeSink{}
	strategy := scriptedStrategy{
		analysis:   Analysis{Summary: "fine", Urgency: 0.2},
		options:    []Option{{Name: "act", Score: 0.9}},
		confidence: 0.9,
	}
	agent := newTestAgent(t, Config{Autonomy: AutonomyMedium, DecisionThreshold: 0.6},
		strategy, nil, Deps{Decisions: sink})

	decision := agent.Decide(context.Background(), DecisionContext{}, nil)

	assert.Equal(t, "act", decision.Chosen)
	assert.False(t, decision.Degraded)
	assert.False(t, decision.RequiresConfirmation, "0.9 clears the 0.6 threshold")
	assert.Equal(t, "act", decision.Reasoning.Conclusion, "inert default chain concludes with the pick")

	require.Len(t, agent.DecisionHistory(0), 1)
	assert.Equal(t, 1, sink.count(), "decision persisted to the sink")

	made, autonomous := agent.PerformanceCounters()
	assert.Equal(t, int64(1), made)
	assert.Equal(t, int64(1), autonomous)
}

func TestBaseAgent_ConfirmationPolicy(t *testing.T) {
	cases := []struct {
		name       string
		autonomy   AutonomyLevel
		confidence float64
		want       bool
	}{
		{"high autonomy never confirms", AutonomyHigh, 0.1, false},
		{"low autonomy always confirms", AutonomyLow, 0.99, true},
		{"medium below threshold confirms", AutonomyMedium, 0.5, true},
		{"medium above threshold acts", AutonomyMedium, 0.7, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			strategy := scriptedStrategy{
				options:    []Option{{Name: "act"}},
				confidence: tc.confidence,
			}
			agent := newTestAgent(t, Config{Autonomy: tc.autonomy, DecisionThreshold: 0.6},
				strategy, nil, Deps{})

			decision := agent.Decide(context.Background(), DecisionContext{}, nil)
			assert.Equal(t, tc.want, decision.RequiresConfirmation)
		})
	}
}

func TestBaseAgent_MergeOptionsDedupes(t *testing.T) {
	merged := mergeOptions(
		[]Option{{Name: "a"}, {Name: "b"}, {Name: ""}},
		[]Option{{Name: "b"}, {Name: "c"}},
	)

	names := make([]string, len(merged))
	for i, o := range merged {
		names[i] = o.Name
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestBaseAgent_SinkFailureDoesNotFailDecision(t *testing.T) {
	sink := &fakeSink{err: errors.ErrUnavailable}
	strategy := scriptedStrategy{options: []Option{{Name: "act"}}, confidence: 0.8}
	agent := newTestAgent(t, Config{}, strategy, nil, Deps{Decisions: sink})

	decision := agent.Decide(context.Background(), DecisionContext{}, nil)

	assert.False(t, decision.Degraded, "persistence is best effort")
}

func TestBaseAgent_SelfHealReinitializes(t *testing.T) {
	agent := newTestAgent(t, Config{}, UnimplementedStrategy{}, nil, Deps{})

	agent.Memory().SetShort("stale", "data")
	agent.recovery.RecordError()

	agent.selfHeal(context.Background())

	assert.Equal(t, StateActive, agent.State())
	_, ok := agent.Memory().GetShort("stale")
	assert.False(t, ok, "short-term memory is cleared on heal")
	assert.Equal(t, 0, agent.ErrorCounters().ConsecutiveErrors)

	episodes := agent.Memory().RecentEpisodes(1)
	require.Len(t, episodes, 1)
	assert.Equal(t, "self_heal", episodes[0].Experience)
}

func TestUnimplementedStrategy_StageErrors(t *testing.T) {
	s := UnimplementedStrategy{}
	ctx := context.Background()

	_, err := s.AnalyzeSituation(ctx, nil)
	assert.True(t, errors.Is(err, errors.ErrStageNotImplemented))
	_, err = s.GenerateOptions(ctx, nil, Analysis{})
	assert.True(t, errors.Is(err, errors.ErrStageNotImplemented))
	_, err = s.EvaluateOptions(ctx, nil, nil)
	assert.True(t, errors.Is(err, errors.ErrStageNotImplemented))
	_, err = s.SelectAction(ctx, nil, nil)
	assert.True(t, errors.Is(err, errors.ErrStageNotImplemented))
}
