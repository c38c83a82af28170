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

func newTestPlanner(t *testing.T, store *fakeStore) *WealthPlanner {
	t.Helper()
	planner, err := NewWealthPlanner(context.Background(), uuid.New(), Deps{
		Gateway: deadGateway(),
		Store:   store,
	})
	require.NoError(t, err)
	return planner
}

func TestWealthPlanner_RecommendsEmergencyFundWithoutBuffer(t *testing.T) {
	planner := newTestPlanner(t, &fakeStore{
		profile: testProfile(),
		txs: []finance.Transaction{
			{ID: uuid.New(), Type: finance.TransactionExpense, Amount: decimal.NewFromInt(20000), Category: "rent", Date: time.Now()},
		},
		// no accounts linked, so no buffer
	})

	decision := planner.Decide(context.Background(), DecisionContext{}, nil)

	assert.Equal(t, "build_emergency_fund_first", decision.Chosen)
	assert.False(t, decision.Degraded, "reasoner fallbacks keep the pipeline alive")
	assert.True(t, decision.RequiresConfirmation, "low autonomy always asks")
}

func TestWealthPlanner_AllocationFollowsRiskTolerance(t *testing.T) {
	profile := testProfile()
	profile.RiskTolerance = "aggressive"
	planner := newTestPlanner(t, &fakeStore{
		profile: profile,
		txs: []finance.Transaction{
			{ID: uuid.New(), Type: finance.TransactionExpense, Amount: decimal.NewFromInt(10000), Category: "rent", Date: time.Now()},
		},
		accounts: []finance.BankAccount{
			{ID: uuid.New(), Balance: decimal.NewFromInt(100000)}, // covers 6 months
		},
	})

	decision := planner.Decide(context.Background(), DecisionContext{}, nil)

	assert.Equal(t, "aggressive_allocation", decision.Chosen)
}

func TestWealthPlanner_ReasoningChainFromReasonerHistory(t *testing.T) {
	planner := newTestPlanner(t, &fakeStore{profile: testProfile()})

	decision := planner.Decide(context.Background(), DecisionContext{"question": "retire at 50?"}, nil)

	assert.NotEmpty(t, decision.Reasoning.Steps, "chain reuses the reasoner's steps")
	assert.Equal(t, decision.Chosen, decision.Reasoning.Conclusion)
}

func TestMatchScore(t *testing.T) {
	assert.Equal(t, 0.85, matchScore("moderate", "moderate"))
	assert.Equal(t, 0.5, matchScore("moderate", "aggressive"))
	assert.Equal(t, 0.5, matchScore("conservative", "moderate"))
	assert.Equal(t, 0.2, matchScore("conservative", "aggressive"))
	assert.Equal(t, 0.2, matchScore("unknown", "moderate"))
}
