package advisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"kitakita/internal/adapters/ai"
	"kitakita/internal/adapters/redis"
	"kitakita/internal/domain/finance"
	"kitakita/pkg/errors"
	"kitakita/pkg/logger"
)

// Insight kinds produced for the dashboard.
const (
	KindFinancialAnalysis = "financial_analysis"
	KindRecommendations   = "recommendations"
	KindGoals             = "goals"
	KindHealthScore       = "health_score"
	KindMarketInsights    = "market_insights"
	KindRiskAssessment    = "risk_assessment"
)

// Insight is one dashboard panel. Failed analyses still produce an Insight
// with Fallback set, so the dashboard always renders all panels.
type Insight struct {
	Kind       string                 `json:"kind"`
	Summary    string                 `json:"summary"`
	Confidence float64                `json:"confidence"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Fallback   bool                   `json:"fallback"`
}

// Dashboard is the combined result of one insights refresh.
type Dashboard struct {
	UserID      uuid.UUID `json:"user_id"`
	Insights    []Insight `json:"insights"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RefreshPublisher emits refresh completion events.
type RefreshPublisher interface {
	PublishInsightsRefreshed(ctx context.Context, userID uuid.UUID, succeeded, failed int) error
}

// Config tunes the per-user refresh budget.
type Config struct {
	RefreshPerMinute float64
	RefreshBurst     int
}

// Service builds dashboard insights by fanning six independent analyses out
// over the gateway and joining whatever comes back. A single failed analysis
// never fails the dashboard.
type Service struct {
	gateway   ai.Gateway
	store     finance.Store
	cache     *redis.SnapshotCache // optional
	publisher RefreshPublisher     // optional
	cfg       Config
	log       *logger.Logger

	limiterMu sync.Mutex
	limiters  map[uuid.UUID]*rate.Limiter
}

// NewService creates the advisor service. cache and publisher may be nil.
func NewService(gateway ai.Gateway, store finance.Store, cache *redis.SnapshotCache, publisher RefreshPublisher, cfg Config) (*Service, error) {
	if gateway == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gateway is required")
	}
	if store == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "store is required")
	}
	if cfg.RefreshPerMinute <= 0 {
		cfg.RefreshPerMinute = 6
	}
	if cfg.RefreshBurst <= 0 {
		cfg.RefreshBurst = 2
	}

	return &Service{
		gateway:   gateway,
		store:     store,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.Get().With("service", "advisor"),
		limiters:  make(map[uuid.UUID]*rate.Limiter),
	}, nil
}

// limiter returns the per-user refresh budget, creating it on first use.
func (s *Service) limiter(userID uuid.UUID) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	if l, ok := s.limiters[userID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(s.cfg.RefreshPerMinute/60.0), s.cfg.RefreshBurst)
	s.limiters[userID] = l
	return l
}

// DashboardInsights runs all six analyses concurrently and joins the results.
// Each analysis settles independently: failures degrade to a fallback panel
// while the rest proceed. Refreshes beyond the per-user budget are rejected
// with ErrBudgetExhausted.
func (s *Service) DashboardInsights(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	if !s.limiter(userID).Allow() {
		return nil, errors.Wrapf(errors.ErrBudgetExhausted, "insights refresh for user %s", userID)
	}

	snapshot, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	analyses := []struct {
		kind string
		run  func(context.Context, *finance.Snapshot) (Insight, error)
	}{
		{KindFinancialAnalysis, s.financialAnalysis},
		{KindRecommendations, s.recommendations},
		{KindGoals, s.goalsProgress},
		{KindHealthScore, s.healthScore},
		{KindMarketInsights, s.marketInsights},
		{KindRiskAssessment, s.riskAssessment},
	}

	results := make([]Insight, len(analyses))
	var wg sync.WaitGroup
	for i, a := range analyses {
		wg.Add(1)
		go func(i int, kind string, run func(context.Context, *finance.Snapshot) (Insight, error)) {
			defer wg.Done()
			insight, err := run(ctx, snapshot)
			if err != nil {
				s.log.Warnf("Analysis %s failed for user %s: %v", kind, userID, err)
				insight = fallbackInsight(kind)
			}
			results[i] = insight
		}(i, a.kind, a.run)
	}
	wg.Wait()

	dashboard := &Dashboard{
		UserID:      userID,
		Insights:    results,
		GeneratedAt: time.Now(),
	}
	for _, insight := range results {
		if insight.Fallback {
			dashboard.Failed++
		} else {
			dashboard.Succeeded++
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishInsightsRefreshed(ctx, userID, dashboard.Succeeded, dashboard.Failed); err != nil {
			s.log.Warnf("Failed to publish refresh event for user %s: %v", userID, err)
		}
	}

	return dashboard, nil
}

// loadSnapshot checks the cache first and rebuilds from the store on a miss.
func (s *Service) loadSnapshot(ctx context.Context, userID uuid.UUID) (*finance.Snapshot, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.log.Warnf("Snapshot cache read failed for user %s: %v", userID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := s.store.GetUserData(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load profile")
	}
	txs, err := s.store.GetUserTransactions(ctx, userID)
	if err != nil {
		s.log.Warnf("Transaction load failed for user %s, treating as empty: %v", userID, err)
		txs = nil
	}
	accounts, err := s.store.GetUserBankAccounts(ctx, userID)
	if err != nil {
		s.log.Warnf("Account load failed for user %s, treating as empty: %v", userID, err)
		accounts = nil
	}

	snapshot := finance.BuildSnapshot(profile, accounts, txs, time.Now())

	if s.cache != nil {
		if err := s.cache.Put(ctx, userID, snapshot); err != nil {
			s.log.Warnf("Snapshot cache write failed for user %s: %v", userID, err)
		}
	}
	return snapshot, nil
}

func fallbackInsight(kind string) Insight {
	return Insight{
		Kind:       kind,
		Summary:    "Analysis temporarily unavailable",
		Confidence: 0.3,
		Fallback:   true,
	}
}

// moneyf formats a decimal amount for report text.
func moneyf(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.InexactFloat64(), 2)
}

func (s *Service) financialAnalysis(ctx context.Context, snapshot *finance.Snapshot) (Insight, error) {
	topCategory, topTotal := snapshot.TopExpenseCategory()
	prompt := fmt.Sprintf(
		`Analyze this month: income %s, expenses %s, savings rate %.2f, biggest expense %s (%s).
Respond as JSON: {"analysis": "...", "confidence": 0.0}`,
		moneyf(snapshot.MonthlyIncome), moneyf(snapshot.MonthlyExpense),
		snapshot.SavingsRate, topCategory, moneyf(topTotal))

	parsed, err := s.gateway.GenerateStructured(ctx, prompt)
	if err != nil {
		return Insight{}, err
	}
	if parsed.IsFallback() {
		return fallbackInsight(KindFinancialAnalysis), nil
	}

	return Insight{
		Kind:       KindFinancialAnalysis,
		Summary:    parsed.String("analysis", ""),
		Confidence: parsed.Confidence,
		Fields: map[string]interface{}{
			"monthly_income":  moneyf(snapshot.MonthlyIncome),
			"monthly_expense": moneyf(snapshot.MonthlyExpense),
			"savings_rate":    snapshot.SavingsRate,
		},
	}, nil
}

func (s *Service) recommendations(ctx context.Context, snapshot *finance.Snapshot) (Insight, error) {
	prompt := fmt.Sprintf(
		`Given savings rate %.2f and total balance %s, suggest 3 concrete money actions.
Respond as JSON: {"recommendations": ["..."], "confidence": 0.0}`,
		snapshot.SavingsRate, moneyf(snapshot.TotalBalance()))

	parsed, err := s.gateway.GenerateStructured(ctx, prompt)
	if err != nil {
		return Insight{}, err
	}
	if parsed.IsFallback() {
		return fallbackInsight(KindRecommendations), nil
	}

	recs := parsed.StringSlice("recommendations")
	return Insight{
		Kind:       KindRecommendations,
		Summary:    fmt.Sprintf("%d recommendations", len(recs)),
		Confidence: parsed.Confidence,
		Fields:     map[string]interface{}{"recommendations": recs},
	}, nil
}

// goalsProgress is a local computation; the gateway is not involved.
func (s *Service) goalsProgress(_ context.Context, snapshot *finance.Snapshot) (Insight, error) {
	if snapshot.Profile == nil || !snapshot.Profile.SavingsGoal.IsPositive() {
		return Insight{
			Kind:       KindGoals,
			Summary:    "No savings goal set",
			Confidence: 1.0,
		}, nil
	}

	goal := snapshot.Profile.SavingsGoal
	balance := snapshot.TotalBalance()
	progress := balance.Div(goal).InexactFloat64()
	if progress > 1 {
		progress = 1
	}

	return Insight{
		Kind:       KindGoals,
		Summary:    fmt.Sprintf("%s of %s saved (%.0f%%)", moneyf(balance), moneyf(goal), progress*100),
		Confidence: 1.0,
		Fields: map[string]interface{}{
			"goal":     moneyf(goal),
			"progress": progress,
		},
	}, nil
}

// healthScore blends a local heuristic with a model adjustment; a gateway
// failure leaves the heuristic score standing.
func (s *Service) healthScore(ctx context.Context, snapshot *finance.Snapshot) (Insight, error) {
	score := 50.0
	if snapshot.SavingsRate >= 0.2 {
		score += 25
	} else if snapshot.SavingsRate > 0 {
		score += 25 * (snapshot.SavingsRate / 0.2)
	}
	if snapshot.MonthlyExpense.IsPositive() {
		buffer := snapshot.TotalBalance().Div(snapshot.MonthlyExpense).InexactFloat64()
		if buffer >= 6 {
			score += 25
		} else {
			score += 25 * (buffer / 6)
		}
	}

	summary := fmt.Sprintf("Financial health score: %.0f/100", score)
	prompt := fmt.Sprintf(
		`A user scores %.0f/100 on financial health (savings rate %.2f). One sentence of context.
Respond as JSON: {"context": "...", "confidence": 0.0}`, score, snapshot.SavingsRate)

	parsed, err := s.gateway.GenerateStructured(ctx, prompt)
	if err == nil && !parsed.IsFallback() {
		summary = fmt.Sprintf("%s %s", summary, parsed.String("context", ""))
	}

	return Insight{
		Kind:       KindHealthScore,
		Summary:    summary,
		Confidence: 0.9,
		Fields:     map[string]interface{}{"score": score},
	}, nil
}

func (s *Service) marketInsights(ctx context.Context, snapshot *finance.Snapshot) (Insight, error) {
	tolerance := "moderate"
	if snapshot.Profile != nil && snapshot.Profile.RiskTolerance != "" {
		tolerance = snapshot.Profile.RiskTolerance
	}

	prompt := fmt.Sprintf(
		`Summarize general market conditions relevant to a %s-risk retail saver in the Philippines.
Respond as JSON: {"insight": "...", "confidence": 0.0}`, tolerance)

	parsed, err := s.gateway.GenerateStructured(ctx, prompt)
	if err != nil {
		return Insight{}, err
	}
	if parsed.IsFallback() {
		return fallbackInsight(KindMarketInsights), nil
	}

	return Insight{
		Kind:       KindMarketInsights,
		Summary:    parsed.String("insight", ""),
		Confidence: parsed.Confidence,
	}, nil
}

func (s *Service) riskAssessment(ctx context.Context, snapshot *finance.Snapshot) (Insight, error) {
	overBudget := snapshot.Profile != nil &&
		snapshot.Profile.MonthlyBudget.IsPositive() &&
		snapshot.MonthlyExpense.GreaterThan(snapshot.Profile.MonthlyBudget)

	prompt := fmt.Sprintf(
		`User spends %s/month against income %s/month. Over budget: %v.
Assess their financial risk level as JSON: {"level": "low|medium|high", "reason": "...", "confidence": 0.0}`,
		moneyf(snapshot.MonthlyExpense), moneyf(snapshot.MonthlyIncome), overBudget)

	parsed, err := s.gateway.GenerateStructured(ctx, prompt)
	if err != nil {
		return Insight{}, err
	}
	if parsed.IsFallback() {
		return fallbackInsight(KindRiskAssessment), nil
	}

	return Insight{
		Kind:       KindRiskAssessment,
		Summary:    parsed.String("reason", ""),
		Confidence: parsed.Confidence,
		Fields:     map[string]interface{}{"level": parsed.String("level", "medium")},
	}, nil
}
