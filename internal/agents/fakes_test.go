package agents

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kitakita/internal/adapters/ai"
	"kitakita/internal/domain/finance"
	"kitakita/pkg/errors"
)

// fakeGateway scripts model responses per prompt.
type fakeGateway struct {
	mu      sync.Mutex
	respond func(prompt string) (string, error)
	calls   int
}

func (g *fakeGateway) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
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

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// deadGateway always fails.
func deadGateway() *fakeGateway {
	return &fakeGateway{respond: func(string) (string, error) {
		return "", errors.Wrap(errors.ErrUnavailable, "gateway down")
	}}
}

// fakeStore is an in-memory finance.Store.
type fakeStore struct {
	mu       sync.Mutex
	profile  *finance.Profile
	txs      []finance.Transaction
	accounts []finance.BankAccount
	failAll  bool
	patches  []map[string]interface{}
}

func (s *fakeStore) GetUserData(context.Context, uuid.UUID) (*finance.Profile, error) {
	if s.failAll {
		return nil, errors.ErrUnavailable
	}
	return s.profile, nil
}

func (s *fakeStore) GetUserTransactions(context.Context, uuid.UUID) ([]finance.Transaction, error) {
	if s.failAll {
		return nil, errors.ErrUnavailable
	}
	return s.txs, nil
}

func (s *fakeStore) GetUserBankAccounts(context.Context, uuid.UUID) ([]finance.BankAccount, error) {
	if s.failAll {
		return nil, errors.ErrUnavailable
	}
	return s.accounts, nil
}

func (s *fakeStore) StoreUserData(_ context.Context, _ uuid.UUID, patch map[string]interface{}) error {
	if s.failAll {
		return errors.ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patch)
	return nil
}

// fakeSink records persisted decisions.
type fakeSink struct {
	mu    sync.Mutex
	saved []Decision
	err   error
}

func (s *fakeSink) SaveDecision(_ context.Context, _ uuid.UUID, d Decision) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, d)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// scriptedStrategy returns canned stage results.
type scriptedStrategy struct {
	analysis   Analysis
	options    []Option
	confidence float64
}

func (s scriptedStrategy) AnalyzeSituation(context.Context, DecisionContext) (Analysis, error) {
	return s.analysis, nil
}

func (s scriptedStrategy) GenerateOptions(context.Context, DecisionContext, Analysis) ([]Option, error) {
	return s.options, nil
}

func (s scriptedStrategy) EvaluateOptions(_ context.Context, options []Option, _ DecisionContext) ([]Option, error) {
	return options, nil
}

func (s scriptedStrategy) SelectAction(_ context.Context, evaluated []Option, _ DecisionContext) (Selection, error) {
	if len(evaluated) == 0 {
		return Selection{}, errors.New("no options")
	}
	return Selection{Option: evaluated[0], Confidence: s.confidence}, nil
}

func testProfile() *finance.Profile {
	return &finance.Profile{
		UserID:        uuid.New(),
		Currency:      "PHP",
		MonthlyBudget: decimal.NewFromInt(30000),
		SavingsGoal:   decimal.NewFromInt(100000),
		RiskTolerance: "moderate",
	}
}
