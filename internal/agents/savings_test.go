package agents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitakita/internal/domain/finance"
)

func savingsStore(income, expense int64) *fakeStore {
	now := time.Now()
	return &fakeStore{
		profile: testProfile(),
		txs: []finance.Transaction{
			{ID: uuid.New(), Type: finance.TransactionIncome, Amount: decimal.NewFromInt(income), Date: now},
			{ID: uuid.New(), Type: finance.TransactionExpense, Amount: decimal.NewFromInt(expense), Category: "food", Date: now},
		},
	}
}

func TestSavingsCoach_FactoryReturnsReadyAgent(t *testing.T) {
	coach, err := NewSavingsCoach(context.Background(), uuid.New(), Deps{
		Gateway: deadGateway(),
		Store:   savingsStore(50000, 45000),
	})
	require.NoError(t, err)

	assert.Equal(t, StateActive, coach.State(), "factory must not return a half-ready agent")
	_, ok := coach.Memory().GetSemantic("target_savings_rate")
	assert.True(t, ok, "knowledge table loaded before first use")
}

func TestSavingsCoach_DecidesWithDeadGateway(t *testing.T) {
	coach, err := NewSavingsCoach(context.Background(), uuid.New(), Deps{
		Gateway: deadGateway(),
		Store:   savingsStore(50000, 45000),
	})
	require.NoError(t, err)

	decision := coach.Decide(context.Background(), DecisionContext{}, nil)

	assert.False(t, decision.Degraded, "heuristic stages carry the pipeline through an outage")
	assert.NotEmpty(t, decision.Chosen)
	assert.NotEqual(t, DecisionSeekHumanAssistance, decision.Chosen)
}

func TestSavingsCoach_UrgencyReflectsOverspend(t *testing.T) {
	coach, err := NewSavingsCoach(context.Background(), uuid.New(), Deps{
		Gateway: deadGateway(),
		Store:   savingsStore(50000, 49000), // over the 30k budget, savings rate 2%
	})
	require.NoError(t, err)

	analysis, err := coach.AnalyzeSituation(context.Background(), DecisionContext{})
	require.NoError(t, err)

	assert.Greater(t, analysis.Urgency, 0.8)
}

func TestSavingsCoach_SuggestedSetAside(t *testing.T) {
	coach, err := NewSavingsCoach(context.Background(), uuid.New(), Deps{
		Gateway: deadGateway(),
		Store:   savingsStore(50000, 45000), // saving 5k, target 20% of 50k = 10k
	})
	require.NoError(t, err)

	assert.Equal(t, "5000", coach.SuggestedSetAside().String())
}

func TestSavingsCoach_NoSetAsideWhenOnTrack(t *testing.T) {
	coach, err := NewSavingsCoach(context.Background(), uuid.New(), Deps{
		Gateway: deadGateway(),
		Store:   savingsStore(50000, 30000), // already saving 40%
	})
	require.NoError(t, err)

	assert.True(t, coach.SuggestedSetAside().IsZero())
}
