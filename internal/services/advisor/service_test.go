package advisor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitakita/internal/adapters/ai"
	"kitakita/internal/domain/finance"
	"kitakita/pkg/errors"
)

type fakeGateway struct {
	respond func(prompt string) (string, error)
}

func (g *fakeGateway) Generate(_ context.Context, prompt string) (string, error) {
	if g.respond == nil {
		return "", errors.ErrUnavailable
	}
	return g.respond(prompt)
}

func (g *fakeGateway) GenerateStructured(ctx context.Context, prompt string) (ai.Structured, error) {
	raw, err := g.Generate(ctx, prompt)
	if err != nil {
		return ai.Structured{}, err
	}
	return ai.ParseStructured(raw), nil
}

// scriptedGateway answers each analysis prompt with valid JSON.
func scriptedGateway() *fakeGateway {
	return &fakeGateway{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Analyze this month"):
			return `{"analysis": "spending is under control", "confidence": 0.8}`, nil
		case strings.Contains(prompt, "suggest 3 concrete"):
			return `{"recommendations": ["automate savings", "cut subscriptions", "move to a time deposit"], "confidence": 0.75}`, nil
		case strings.Contains(prompt, "One sentence of context"):
			return `{"context": "Solid footing overall.", "confidence": 0.7}`, nil
		case strings.Contains(prompt, "market conditions"):
			return `{"insight": "rates remain attractive for savers", "confidence": 0.6}`, nil
		case strings.Contains(prompt, "financial risk"):
			return `{"level": "low", "reason": "comfortable surplus", "confidence": 0.85}`, nil
		}
		return "", errors.ErrUnavailable
	}}
}

type fakeStore struct {
	profile  *finance.Profile
	txs      []finance.Transaction
	accounts []finance.BankAccount
}

func (s *fakeStore) GetUserData(context.Context, uuid.UUID) (*finance.Profile, error) {
	return s.profile, nil
}

func (s *fakeStore) GetUserTransactions(context.Context, uuid.UUID) ([]finance.Transaction, error) {
	return s.txs, nil
}

func (s *fakeStore) GetUserBankAccounts(context.Context, uuid.UUID) ([]finance.BankAccount, error) {
	return s.accounts, nil
}

func (s *fakeStore) StoreUserData(context.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	succeeded int
	failed    int
	calls     int
}

func (p *fakePublisher) PublishInsightsRefreshed(_ context.Context, _ uuid.UUID, succeeded, failed int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.succeeded = succeeded
	p.failed = failed
	return nil
}

func testStore() *fakeStore {
	now := time.Now()
	return &fakeStore{
		profile: &finance.Profile{
			UserID:        uuid.New(),
			Currency:      "PHP",
			MonthlyBudget: decimal.NewFromInt(30000),
			SavingsGoal:   decimal.NewFromInt(100000),
			RiskTolerance: "moderate",
		},
		txs: []finance.Transaction{
			{ID: uuid.New(), Type: finance.TransactionIncome, Amount: decimal.NewFromInt(50000), Date: now},
			{ID: uuid.New(), Type: finance.TransactionExpense, Amount: decimal.NewFromInt(20000), Category: "rent", Date: now},
		},
		accounts: []finance.BankAccount{
			{ID: uuid.New(), Balance: decimal.NewFromInt(40000)},
		},
	}
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, testStore(), nil, nil, Config{})
	require.Error(t, err)

	_, err = NewService(&fakeGateway{}, nil, nil, nil, Config{})
	require.Error(t, err)
}

func TestDashboardInsights_AllAnalysesSucceed(t *testing.T) {
	svc, err := NewService(scriptedGateway(), testStore(), nil, nil, Config{})
	require.NoError(t, err)

	dashboard, err := svc.DashboardInsights(context.Background(), uuid.New())
	require.NoError(t, err)

	require.Len(t, dashboard.Insights, 6)
	assert.Equal(t, 6, dashboard.Succeeded)
	assert.Equal(t, 0, dashboard.Failed)

	byKind := make(map[string]Insight, len(dashboard.Insights))
	for _, insight := range dashboard.Insights {
		byKind[insight.Kind] = insight
	}
	assert.Equal(t, "spending is under control", byKind[KindFinancialAnalysis].Summary)
	assert.Contains(t, byKind[KindGoals].Summary, "40%")
	assert.Contains(t, byKind[KindHealthScore].Summary, "Solid footing")
	assert.Equal(t, "low", byKind[KindRiskAssessment].Fields["level"])
}

func TestDashboardInsights_GatewayOutageSettlesAllPanels(t *testing.T) {
	publisher := &fakePublisher{}
	svc, err := NewService(&fakeGateway{}, testStore(), nil, publisher, Config{})
	require.NoError(t, err)

	dashboard, err := svc.DashboardInsights(context.Background(), uuid.New())
	require.NoError(t, err, "an outage degrades panels, it never fails the dashboard")

	require.Len(t, dashboard.Insights, 6)
	// Goals and health score are computed locally and survive the outage
	assert.Equal(t, 2, dashboard.Succeeded)
	assert.Equal(t, 4, dashboard.Failed)

	for _, insight := range dashboard.Insights {
		switch insight.Kind {
		case KindGoals, KindHealthScore:
			assert.False(t, insight.Fallback, "%s is local", insight.Kind)
		default:
			assert.True(t, insight.Fallback, "%s needs the gateway", insight.Kind)
			assert.Equal(t, 0.3, insight.Confidence)
		}
	}

	assert.Equal(t, 1, publisher.calls)
	assert.Equal(t, 2, publisher.succeeded)
	assert.Equal(t, 4, publisher.failed)
}

func TestDashboardInsights_MalformedResponsesDegrade(t *testing.T) {
	gw := &fakeGateway{respond: func(string) (string, error) {
		return "let me think about that", nil
	}}
	svc, err := NewService(gw, testStore(), nil, nil, Config{})
	require.NoError(t, err)

	dashboard, err := svc.DashboardInsights(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 2, dashboard.Succeeded)
	assert.Equal(t, 4, dashboard.Failed)
}

func TestDashboardInsights_PerUserBudget(t *testing.T) {
	svc, err := NewService(scriptedGateway(), testStore(), nil, nil,
		Config{RefreshPerMinute: 1, RefreshBurst: 1})
	require.NoError(t, err)

	userID := uuid.New()
	_, err = svc.DashboardInsights(context.Background(), userID)
	require.NoError(t, err)

	_, err = svc.DashboardInsights(context.Background(), userID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBudgetExhausted))

	// Another user has their own budget
	_, err = svc.DashboardInsights(context.Background(), uuid.New())
	assert.NoError(t, err)
}

func TestHealthScore_Heuristic(t *testing.T) {
	svc, err := NewService(&fakeGateway{}, testStore(), nil, nil, Config{})
	require.NoError(t, err)

	// Savings rate 0.6 (>= 0.2), buffer 40000/20000 = 2 months
	snapshot := finance.BuildSnapshot(testStore().profile, testStore().accounts, testStore().txs, time.Now())
	insight, err := svc.healthScore(context.Background(), snapshot)
	require.NoError(t, err)

	// 50 + 25 + 25*(2/6)
	assert.InDelta(t, 83.33, insight.Fields["score"].(float64), 0.01)
	assert.False(t, insight.Fallback)
}
