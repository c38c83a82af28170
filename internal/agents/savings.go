package agents

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kitakita/internal/metrics"
)

// SavingsCoach nudges the user toward their savings goal. Analysis is a
// local heuristic over the financial snapshot; option generation asks the
// model for extra coaching actions on top of a fixed heuristic set.
type SavingsCoach struct {
	*BaseAgent
}

// NewSavingsCoach constructs and fully initializes a savings coach. It only
// returns once profile and transaction data have been loaded, so callers
// never see a half-ready agent.
func NewSavingsCoach(ctx context.Context, userID uuid.UUID, deps Deps) (*SavingsCoach, error) {
	coach := &SavingsCoach{}

	base, err := newBaseAgent(userID, Config{
		Type:              "savings_coach",
		Autonomy:          AutonomyMedium,
		DecisionThreshold: 0.6,
		LearningRate:      0.1,
	}, deps, coach, coach)
	if err != nil {
		return nil, err
	}
	coach.BaseAgent = base

	if err := base.initialize(ctx, savingsKnowledge); err != nil {
		return nil, err
	}
	return coach, nil
}

// savingsKnowledge is the static fact table for the coach.
func savingsKnowledge() map[string]interface{} {
	return map[string]interface{}{
		"target_savings_rate":   0.20,
		"emergency_fund_months": 6,
		"min_monthly_set_aside": "500",
		"coaching_tone":         "encouraging",
	}
}

// AnalyzeSituation scores how far the user is from a healthy savings rate.
func (c *SavingsCoach) AnalyzeSituation(_ context.Context, dctx DecisionContext) (Analysis, error) {
	snapshot := c.Snapshot()

	target := 0.20
	if v, ok := c.Memory().GetSemantic("target_savings_rate"); ok {
		if f, ok := v.(float64); ok {
			target = f
		}
	}

	gap := target - snapshot.SavingsRate
	if gap < 0 {
		gap = 0
	}

	// Urgency blends the savings gap with overspending against budget.
	urgency := 0.6 * (gap / target)
	if snapshot.Profile != nil && snapshot.Profile.MonthlyBudget.IsPositive() {
		if snapshot.MonthlyExpense.GreaterThan(snapshot.Profile.MonthlyBudget) {
			urgency += 0.4
		}
	}
	if urgency > 1 {
		urgency = 1
	}

	return Analysis{
		Summary: fmt.Sprintf("savings rate %.2f against target %.2f", snapshot.SavingsRate, target),
		Urgency: urgency,
		Fields: map[string]interface{}{
			"savings_rate": snapshot.SavingsRate,
			"target_rate":  target,
			"gap":          gap,
		},
	}, nil
}

// GenerateOptions produces heuristic coaching actions, enriched with model
// suggestions when the gateway cooperates.
func (c *SavingsCoach) GenerateOptions(ctx context.Context, _ DecisionContext, analysis Analysis) ([]Option, error) {
	snapshot := c.Snapshot()
	topCategory, topTotal := snapshot.TopExpenseCategory()

	options := []Option{
		{Name: "review_top_category", Rationale: fmt.Sprintf("biggest expense is %s at %s", topCategory, topTotal)},
		{Name: "set_aside_fixed_amount", Rationale: "automatic transfer on payday"},
		{Name: "maintain_current_plan", Rationale: "savings already on track"},
	}
	if analysis.Urgency > 0.7 {
		options = append(options, Option{Name: "freeze_discretionary_spending", Rationale: "high urgency"})
	}

	prompt := fmt.Sprintf(
		`The user saves %.0f%% of income; target is %.0f%%. Top expense: %s.
Suggest up to 2 extra coaching actions as JSON: {"options": ["..."], "confidence": 0.0}`,
		analysis.Fields["savings_rate"].(float64)*100,
		analysis.Fields["target_rate"].(float64)*100,
		topCategory)

	parsed, err := c.gateway.GenerateStructured(ctx, prompt)
	if err != nil || parsed.IsFallback() {
		// Heuristic options alone are a complete answer
		metrics.StageFallbacks.WithLabelValues(c.config.Type, "generate_options").Inc()
		return options, nil
	}

	for _, name := range parsed.StringSlice("options") {
		options = append(options, Option{Name: name, Rationale: "model suggestion"})
	}
	return options, nil
}

// EvaluateOptions scores each option as a weighted sum of urgency fit and
// estimated impact.
func (c *SavingsCoach) EvaluateOptions(_ context.Context, options []Option, dctx DecisionContext) ([]Option, error) {
	snapshot := c.Snapshot()
	overBudget := snapshot.Profile != nil &&
		snapshot.Profile.MonthlyBudget.IsPositive() &&
		snapshot.MonthlyExpense.GreaterThan(snapshot.Profile.MonthlyBudget)

	evaluated := make([]Option, len(options))
	for i, o := range options {
		impact := 0.5
		switch o.Name {
		case "freeze_discretionary_spending":
			impact = 0.9
		case "review_top_category":
			impact = 0.8
		case "set_aside_fixed_amount":
			impact = 0.7
		case "maintain_current_plan":
			if snapshot.SavingsRate >= 0.2 && !overBudget {
				impact = 0.85
			} else {
				impact = 0.2
			}
		}

		effort := 0.3
		if o.Name == "freeze_discretionary_spending" {
			effort = 0.8
		}

		o.Score = 0.7*impact + 0.3*(1-effort)
		evaluated[i] = o
	}
	return evaluated, nil
}

// SelectAction picks the highest score, breaking ties by name for stable
// output.
func (c *SavingsCoach) SelectAction(_ context.Context, evaluated []Option, _ DecisionContext) (Selection, error) {
	if len(evaluated) == 0 {
		return Selection{}, fmt.Errorf("no options to select from")
	}

	sorted := make([]Option, len(evaluated))
	copy(sorted, evaluated)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Name < sorted[j].Name
	})

	best := sorted[0]
	return Selection{Option: best, Confidence: best.Score}, nil
}

// BuildReasoningChain asks the model to explain the pick, falling back to
// the inert default.
func (c *SavingsCoach) BuildReasoningChain(ctx context.Context, _ DecisionContext, analysis Analysis, chosen Selection) (ReasoningChain, error) {
	prompt := fmt.Sprintf(
		`Explain in 2-3 short steps why %q is the right savings action given: %s.
Respond as JSON: {"steps": ["..."], "conclusion": "..."}`,
		chosen.Option.Name, analysis.Summary)

	parsed, err := c.gateway.GenerateStructured(ctx, prompt)
	if err != nil || parsed.IsFallback() {
		return DefaultOptionalStages{}.BuildReasoningChain(ctx, nil, analysis, chosen)
	}

	return ReasoningChain{
		Steps:      parsed.StringSlice("steps"),
		Conclusion: parsed.String("conclusion", chosen.Option.Name),
	}, nil
}

// PlanFollowUp schedules a check-in proportional to urgency.
func (c *SavingsCoach) PlanFollowUp(_ context.Context, _ DecisionContext, chosen Selection) (FollowUpPlan, error) {
	if chosen.Option.Name == "maintain_current_plan" {
		return FollowUpPlan{Timeline: "immediate"}, nil
	}
	return FollowUpPlan{
		Actions:  []string{"check savings rate", "review " + chosen.Option.Name + " outcome"},
		Timeline: "next_week",
	}, nil
}

// SuggestedSetAside computes a concrete monthly transfer amount from the gap
// to the target rate.
func (c *SavingsCoach) SuggestedSetAside() decimal.Decimal {
	snapshot := c.Snapshot()
	if !snapshot.MonthlyIncome.IsPositive() {
		return decimal.Zero
	}

	target := decimal.NewFromFloat(0.2)
	current := snapshot.MonthlyIncome.Sub(snapshot.MonthlyExpense)
	want := snapshot.MonthlyIncome.Mul(target)
	if current.GreaterThanOrEqual(want) {
		return decimal.Zero
	}
	return want.Sub(current).Round(2)
}
