package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"kitakita/internal/domain/finance"
	"kitakita/internal/metrics"
)

// CategoryOther is the terminal fallback category.
const CategoryOther = "other"

// Categorizer assigns expense categories to transactions. It tries the local
// keyword table first and only spends a gateway call on descriptions the
// table cannot place; when the gateway fails too, the transaction lands in
// "other" at low confidence.
type Categorizer struct {
	*BaseAgent
}

// CategoryResult is one categorization outcome.
type CategoryResult struct {
	TransactionID uuid.UUID
	Category      string
	Confidence    float64
	Source        string // keyword|model|fallback
}

// NewCategorizer constructs and fully initializes a categorizer agent.
func NewCategorizer(ctx context.Context, userID uuid.UUID, deps Deps) (*Categorizer, error) {
	cat := &Categorizer{}

	base, err := newBaseAgent(userID, Config{
		Type:              "categorizer",
		Autonomy:          AutonomyHigh,
		DecisionThreshold: 0.5,
		LearningRate:      0.05,
	}, deps, cat, nil)
	if err != nil {
		return nil, err
	}
	cat.BaseAgent = base

	if err := base.initialize(ctx, categoryKnowledge); err != nil {
		return nil, err
	}
	return cat, nil
}

// categoryKnowledge maps keywords to categories.
func categoryKnowledge() map[string]interface{} {
	return map[string]interface{}{
		"keywords": map[string]string{
			"grocery":    "food",
			"restaurant": "food",
			"jollibee":   "food",
			"grab":       "transport",
			"fuel":       "transport",
			"jeepney":    "transport",
			"meralco":    "utilities",
			"water":      "utilities",
			"internet":   "utilities",
			"rent":       "housing",
			"mortgage":   "housing",
			"netflix":    "entertainment",
			"cinema":     "entertainment",
			"pharmacy":   "health",
			"hospital":   "health",
			"tuition":    "education",
			"remittance": "family_support",
		},
	}
}

// Categorize assigns a category to one transaction.
func (c *Categorizer) Categorize(ctx context.Context, tx finance.Transaction, description string) CategoryResult {
	if category, ok := c.keywordMatch(description); ok {
		return CategoryResult{
			TransactionID: tx.ID,
			Category:      category,
			Confidence:    0.9,
			Source:        "keyword",
		}
	}

	prompt := fmt.Sprintf(
		`Categorize this expense into one of: food, transport, utilities, housing,
entertainment, health, education, family_support, other.
Description: %q, amount: %s.
Respond as JSON: {"category": "...", "confidence": 0.0}`,
		description, tx.Amount)

	parsed, err := c.gateway.GenerateStructured(ctx, prompt)
	if err != nil || parsed.IsFallback() {
		metrics.StageFallbacks.WithLabelValues(c.config.Type, "categorize").Inc()
		return CategoryResult{
			TransactionID: tx.ID,
			Category:      CategoryOther,
			Confidence:    0.3,
			Source:        "fallback",
		}
	}

	return CategoryResult{
		TransactionID: tx.ID,
		Category:      parsed.String("category", CategoryOther),
		Confidence:    parsed.Confidence,
		Source:        "model",
	}
}

// keywordMatch checks the semantic keyword table.
func (c *Categorizer) keywordMatch(description string) (string, bool) {
	raw, ok := c.Memory().GetSemantic("keywords")
	if !ok {
		return "", false
	}
	keywords, ok := raw.(map[string]string)
	if !ok {
		return "", false
	}

	lower := strings.ToLower(description)
	for keyword, category := range keywords {
		if strings.Contains(lower, keyword) {
			return category, true
		}
	}
	return "", false
}

// AnalyzeSituation counts transactions still in the default category.
func (c *Categorizer) AnalyzeSituation(_ context.Context, _ DecisionContext) (Analysis, error) {
	snapshot := c.Snapshot()

	uncategorized := 0
	for _, tx := range snapshot.Transactions {
		if tx.Category == "" || tx.Category == CategoryOther {
			uncategorized++
		}
	}

	urgency := 0.0
	if len(snapshot.Transactions) > 0 {
		urgency = float64(uncategorized) / float64(len(snapshot.Transactions))
	}

	return Analysis{
		Summary: fmt.Sprintf("%d of %d transactions uncategorized", uncategorized, len(snapshot.Transactions)),
		Urgency: urgency,
		Fields:  map[string]interface{}{"uncategorized": uncategorized},
	}, nil
}

// GenerateOptions proposes how to handle the backlog.
func (c *Categorizer) GenerateOptions(_ context.Context, _ DecisionContext, analysis Analysis) ([]Option, error) {
	options := []Option{
		{Name: "categorize_batch", Rationale: "run keyword and model categorization over the backlog"},
		{Name: "skip", Rationale: "backlog too small to bother"},
	}
	if analysis.Urgency > 0.5 {
		options = append(options, Option{Name: "ask_user_for_rules", Rationale: "too many unknowns for automatic rules"})
	}
	return options, nil
}

// EvaluateOptions scores by backlog pressure.
func (c *Categorizer) EvaluateOptions(_ context.Context, options []Option, _ DecisionContext) ([]Option, error) {
	snapshot := c.Snapshot()

	uncategorized := 0
	for _, tx := range snapshot.Transactions {
		if tx.Category == "" || tx.Category == CategoryOther {
			uncategorized++
		}
	}

	evaluated := make([]Option, len(options))
	for i, o := range options {
		switch o.Name {
		case "categorize_batch":
			o.Score = 0.4 + 0.1*float64(min(uncategorized, 6))
		case "ask_user_for_rules":
			o.Score = 0.55
		case "skip":
			if uncategorized == 0 {
				o.Score = 0.95
			} else {
				o.Score = 0.1
			}
		}
		if o.Score > 1 {
			o.Score = 1
		}
		evaluated[i] = o
	}
	return evaluated, nil
}

// SelectAction picks the highest score with a stable name tie-break.
func (c *Categorizer) SelectAction(_ context.Context, evaluated []Option, _ DecisionContext) (Selection, error) {
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
