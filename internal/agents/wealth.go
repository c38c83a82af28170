package agents

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func sixMonths() decimal.Decimal { return decimal.NewFromInt(6) }

// WealthPlanner handles long-horizon planning questions. Its analysis stage
// runs the multi-step reasoner rather than a single prompt, so a partial
// gateway outage still produces a (lower-confidence) plan.
type WealthPlanner struct {
	*BaseAgent
	reasoner *Reasoner
}

// NewWealthPlanner constructs and fully initializes a wealth planner.
func NewWealthPlanner(ctx context.Context, userID uuid.UUID, deps Deps) (*WealthPlanner, error) {
	planner := &WealthPlanner{}

	base, err := newBaseAgent(userID, Config{
		Type:              "wealth_planner",
		Autonomy:          AutonomyLow,
		DecisionThreshold: 0.7,
		LearningRate:      0.05,
	}, deps, planner, planner)
	if err != nil {
		return nil, err
	}
	planner.BaseAgent = base
	// Synthesis carries the most weight in the aggregate confidence
	planner.reasoner = NewReasoner(base, map[string]float64{
		stageSynthesize: 2.0,
	})

	if err := base.initialize(ctx, wealthKnowledge); err != nil {
		return nil, err
	}
	return planner, nil
}

func wealthKnowledge() map[string]interface{} {
	return map[string]interface{}{
		"horizon_years":        10,
		"inflation_assumption": 0.04,
		"allocations": map[string]float64{
			"conservative": 0.2,
			"moderate":     0.5,
			"aggressive":   0.8,
		},
	}
}

// Reasoner exposes the planner's inference engine.
func (p *WealthPlanner) Reasoner() *Reasoner { return p.reasoner }

// AnalyzeSituation runs multi-step inference over the planning question.
func (p *WealthPlanner) AnalyzeSituation(ctx context.Context, dctx DecisionContext) (Analysis, error) {
	problem := "How should this user allocate savings over the long term?"
	if q, ok := dctx["question"].(string); ok && q != "" {
		problem = q
	}

	result := p.reasoner.Reason(ctx, problem)

	return Analysis{
		Summary: result.Conclusion,
		Urgency: 0.3, // planning is rarely urgent
		Fields: map[string]interface{}{
			"reasoning_confidence": result.Confidence,
			"steps":                len(result.Steps),
		},
	}, nil
}

// GenerateOptions proposes allocation strategies.
func (p *WealthPlanner) GenerateOptions(_ context.Context, _ DecisionContext, _ Analysis) ([]Option, error) {
	return []Option{
		{Name: "conservative_allocation", Rationale: "capital preservation, mostly time deposits and bonds"},
		{Name: "moderate_allocation", Rationale: "balanced index funds and bonds"},
		{Name: "aggressive_allocation", Rationale: "equity-heavy for long horizons"},
		{Name: "build_emergency_fund_first", Rationale: "no buffer yet"},
	}, nil
}

// EvaluateOptions weights strategies by the user's stated risk tolerance and
// current buffer.
func (p *WealthPlanner) EvaluateOptions(_ context.Context, options []Option, _ DecisionContext) ([]Option, error) {
	snapshot := p.Snapshot()

	tolerance := "moderate"
	if snapshot.Profile != nil && snapshot.Profile.RiskTolerance != "" {
		tolerance = snapshot.Profile.RiskTolerance
	}

	// Rough buffer check: six months of expenses in the bank
	hasBuffer := true
	if snapshot.MonthlyExpense.IsPositive() {
		needed := snapshot.MonthlyExpense.Mul(sixMonths())
		hasBuffer = snapshot.TotalBalance().GreaterThanOrEqual(needed)
	}

	evaluated := make([]Option, len(options))
	for i, o := range options {
		switch o.Name {
		case "build_emergency_fund_first":
			if hasBuffer {
				o.Score = 0.1
			} else {
				o.Score = 0.95
			}
		case "conservative_allocation":
			o.Score = matchScore(tolerance, "conservative")
		case "moderate_allocation":
			o.Score = matchScore(tolerance, "moderate")
		case "aggressive_allocation":
			o.Score = matchScore(tolerance, "aggressive")
		default:
			o.Score = 0.3
		}
		evaluated[i] = o
	}
	return evaluated, nil
}

// SelectAction picks the top score with a stable name tie-break.
func (p *WealthPlanner) SelectAction(_ context.Context, evaluated []Option, _ DecisionContext) (Selection, error) {
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

// BuildReasoningChain reuses the reasoner's latest result for the chain.
func (p *WealthPlanner) BuildReasoningChain(_ context.Context, _ DecisionContext, analysis Analysis, chosen Selection) (ReasoningChain, error) {
	recent := p.reasoner.History(1)
	if len(recent) == 0 {
		return ReasoningChain{Conclusion: chosen.Option.Name}, nil
	}

	steps := make([]string, 0, len(recent[0].Steps))
	for _, s := range recent[0].Steps {
		if s.Output != "" {
			steps = append(steps, fmt.Sprintf("%s: %s", s.Name, s.Output))
		}
	}
	return ReasoningChain{Steps: steps, Conclusion: chosen.Option.Name}, nil
}

// PlanFollowUp schedules a quarterly review.
func (p *WealthPlanner) PlanFollowUp(_ context.Context, _ DecisionContext, chosen Selection) (FollowUpPlan, error) {
	return FollowUpPlan{
		Actions:  []string{"review allocation performance", "rebalance if drift exceeds 5%"},
		Timeline: "quarterly",
	}, nil
}

func matchScore(tolerance, allocation string) float64 {
	if tolerance == allocation {
		return 0.85
	}
	// Adjacent tolerance levels still score reasonably
	adjacent := map[string][]string{
		"conservative": {"moderate"},
		"moderate":     {"conservative", "aggressive"},
		"aggressive":   {"moderate"},
	}
	for _, a := range adjacent[tolerance] {
		if a == allocation {
			return 0.5
		}
	}
	return 0.2
}
