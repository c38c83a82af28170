package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitakita/internal/adapters/ai"
	"kitakita/internal/agents"
	"kitakita/internal/domain/finance"
	"kitakita/pkg/errors"
)

type deadGateway struct{}

func (deadGateway) Generate(context.Context, string) (string, error) {
	return "", errors.ErrUnavailable
}

func (deadGateway) GenerateStructured(context.Context, string) (ai.Structured, error) {
	return ai.Structured{}, errors.ErrUnavailable
}

type fakeStore struct{}

func (fakeStore) GetUserData(context.Context, uuid.UUID) (*finance.Profile, error) {
	return &finance.Profile{
		UserID:        uuid.New(),
		Currency:      "PHP",
		MonthlyBudget: decimal.NewFromInt(30000),
		SavingsGoal:   decimal.NewFromInt(100000),
		RiskTolerance: "moderate",
	}, nil
}

func (fakeStore) GetUserTransactions(context.Context, uuid.UUID) ([]finance.Transaction, error) {
	return nil, nil
}

func (fakeStore) GetUserBankAccounts(context.Context, uuid.UUID) ([]finance.BankAccount, error) {
	return nil, nil
}

func (fakeStore) StoreUserData(context.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}

func newTestService(t *testing.T, idleTTL time.Duration) (*Service, *agents.Registry) {
	t.Helper()
	registry := agents.NewRegistry()
	svc, err := NewService(agents.Deps{Gateway: deadGateway{}, Store: fakeStore{}}, registry, idleTTL)
	require.NoError(t, err)
	return svc, registry
}

func TestService_Validation(t *testing.T) {
	_, err := NewService(agents.Deps{}, agents.NewRegistry(), 0)
	require.Error(t, err)

	_, err = NewService(agents.Deps{Gateway: deadGateway{}, Store: fakeStore{}}, nil, 0)
	require.Error(t, err)
}

func TestService_AdviseCreatesAndRegistersAgent(t *testing.T) {
	svc, registry := newTestService(t, time.Hour)
	userID := uuid.New()

	decision, err := svc.Advise(context.Background(), userID, KindSavingsCoach, "how do I save more?")
	require.NoError(t, err)
	assert.NotEmpty(t, decision.Chosen)

	assert.Equal(t, 1, svc.Len())
	assert.Equal(t, 1, registry.Len(), "created agents are visible to the recovery probe")

	state, ok := svc.AgentState(userID, KindSavingsCoach)
	require.True(t, ok)
	assert.Equal(t, agents.StateActive, state)
}

func TestService_AdviseReusesAgent(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	userID := uuid.New()

	first, err := svc.Advise(context.Background(), userID, KindSavingsCoach, "")
	require.NoError(t, err)
	second, err := svc.Advise(context.Background(), userID, KindSavingsCoach, "")
	require.NoError(t, err)

	assert.Equal(t, first.AgentID, second.AgentID)
	assert.Equal(t, 1, svc.Len())
}

func TestService_SeparatePoolEntriesPerKindAndUser(t *testing.T) {
	svc, registry := newTestService(t, time.Hour)
	userID := uuid.New()

	_, err := svc.Advise(context.Background(), userID, KindSavingsCoach, "")
	require.NoError(t, err)
	_, err = svc.Advise(context.Background(), userID, KindWealthPlanner, "")
	require.NoError(t, err)
	_, err = svc.Advise(context.Background(), uuid.New(), KindSavingsCoach, "")
	require.NoError(t, err)

	assert.Equal(t, 3, svc.Len())
	assert.Equal(t, 3, registry.Len())
}

func TestService_UnknownKindRejected(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	_, err := svc.Advise(context.Background(), uuid.New(), "day_trader", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Equal(t, 0, svc.Len())
}

func TestService_IdleAgentsEvicted(t *testing.T) {
	svc, registry := newTestService(t, 10*time.Millisecond)
	staleUser := uuid.New()

	_, err := svc.Advise(context.Background(), staleUser, KindSavingsCoach, "")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	// Next acquisition prunes the stale entry before creating its own
	_, err = svc.Advise(context.Background(), uuid.New(), KindSavingsCoach, "")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.Len())
	assert.Equal(t, 1, registry.Len())
	_, ok := svc.AgentState(staleUser, KindSavingsCoach)
	assert.False(t, ok)
}
