package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"kitakita/internal/metrics"
)

// Stage names for the multi-step inference engine.
const (
	stageDecompose   = "decompose"
	stageEvidence    = "gather_evidence"
	stagePatterns    = "recognize_patterns"
	stageInfer       = "infer"
	stageSynthesize  = "synthesize"
	reasoningHistory = 200
)

// ReasoningStep is the output of one inference sub-stage.
type ReasoningStep struct {
	Name       string
	Output     string
	Confidence float64
	Weight     float64
	Fallback   bool
}

// ReasoningResult is one completed multi-step inference.
type ReasoningResult struct {
	Problem    string
	Steps      []ReasoningStep
	Conclusion string
	Confidence float64
	Timestamp  time.Time
}

// Reasoner decomposes a free-form problem into sub-problems, gathers
// evidence from memory and the financial snapshot, detects patterns, runs
// per-sub-problem inference, and synthesizes one conclusion. Unlike the
// decision pipeline, a stage failure here is isolated: the stage degrades to
// its own stub and the remaining stages still run.
type Reasoner struct {
	agent        *BaseAgent
	stageWeights map[string]float64

	mu      sync.Mutex
	history []ReasoningResult
}

// NewReasoner creates a reasoner for the agent. stageWeights may be nil, in
// which case every stage weighs 1.0 in the confidence aggregate.
func NewReasoner(agent *BaseAgent, stageWeights map[string]float64) *Reasoner {
	return &Reasoner{agent: agent, stageWeights: stageWeights}
}

// Reason runs the five inference stages in order and aggregates their
// confidences as a weighted average.
func (r *Reasoner) Reason(ctx context.Context, problem string) ReasoningResult {
	subProblems, decomposeStep := r.decompose(ctx, problem)
	evidenceStep := r.gatherEvidence(ctx, problem)
	patternsStep := r.recognizePatterns(ctx, problem)
	inferSteps := r.infer(ctx, subProblems, evidenceStep.Output)
	conclusion, synthStep := r.synthesize(ctx, problem, inferSteps)

	steps := []ReasoningStep{decomposeStep, evidenceStep, patternsStep}
	steps = append(steps, inferSteps...)
	steps = append(steps, synthStep)

	result := ReasoningResult{
		Problem:    problem,
		Steps:      steps,
		Conclusion: conclusion,
		Confidence: aggregateConfidence(steps),
		Timestamp:  time.Now(),
	}

	r.mu.Lock()
	r.history = append(r.history, result)
	if len(r.history) > reasoningHistory {
		r.history = r.history[len(r.history)-reasoningHistory:]
	}
	r.mu.Unlock()

	return result
}

// History returns up to n most recent reasoning results, newest last.
func (r *Reasoner) History(n int) []ReasoningResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > len(r.history) {
		n = len(r.history)
	}
	out := make([]ReasoningResult, n)
	copy(out, r.history[len(r.history)-n:])
	return out
}

func (r *Reasoner) weight(stage string) float64 {
	if w, ok := r.stageWeights[stage]; ok && w > 0 {
		return w
	}
	return 1.0
}

// decompose splits the problem into sub-problems.
func (r *Reasoner) decompose(ctx context.Context, problem string) ([]string, ReasoningStep) {
	prompt := fmt.Sprintf(
		`Decompose this personal finance problem into 2-4 concrete sub-problems.
Problem: %s
Respond with JSON: {"subproblems": ["..."], "confidence": 0.0}`, problem)

	parsed, err := r.agent.gateway.GenerateStructured(ctx, prompt)
	if err != nil || parsed.IsFallback() {
		return []string{"Unknown problem"}, r.fallbackStep(stageDecompose, "Unknown problem", 0.6)
	}

	subs := parsed.StringSlice("subproblems")
	if len(subs) == 0 {
		return []string{"Unknown problem"}, r.fallbackStep(stageDecompose, "Unknown problem", 0.6)
	}

	return subs, ReasoningStep{
		Name:       stageDecompose,
		Output:     strings.Join(subs, "; "),
		Confidence: parsed.Confidence,
		Weight:     r.weight(stageDecompose),
	}
}

// gatherEvidence pulls supporting facts from memory and the snapshot, then
// asks the model which are relevant.
func (r *Reasoner) gatherEvidence(ctx context.Context, problem string) ReasoningStep {
	snapshot := r.agent.Snapshot()
	episodes := r.agent.memory.RecentEpisodes(5)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Monthly income: %s, monthly expense: %s, savings rate: %.2f.",
		snapshot.MonthlyIncome, snapshot.MonthlyExpense, snapshot.SavingsRate)
	for _, e := range episodes {
		fmt.Fprintf(&sb, " Past: %s.", e.Experience)
	}

	prompt := fmt.Sprintf(
		`Given the problem %q and these facts: %s
Summarize the relevant evidence as JSON: {"evidence": "...", "confidence": 0.0}`,
		problem, sb.String())

	parsed, err := r.agent.gateway.GenerateStructured(ctx, prompt)
	if err != nil || parsed.IsFallback() {
		return r.fallbackStep(stageEvidence, "", 0.6)
	}

	return ReasoningStep{
		Name:       stageEvidence,
		Output:     parsed.String("evidence", ""),
		Confidence: parsed.Confidence,
		Weight:     r.weight(stageEvidence),
	}
}

// recognizePatterns looks for recognizable spending or saving patterns.
func (r *Reasoner) recognizePatterns(ctx context.Context, problem string) ReasoningStep {
	category, total := r.agent.Snapshot().TopExpenseCategory()
	prompt := fmt.Sprintf(
		`Problem: %s. Top expense category: %s (%s total).
List recognizable financial patterns as JSON: {"patterns": ["..."], "confidence": 0.0}`,
		problem, category, total)

	parsed, err := r.agent.gateway.GenerateStructured(ctx, prompt)
	if err != nil || parsed.IsFallback() {
		return r.fallbackStep(stagePatterns, "", 0.6)
	}

	return ReasoningStep{
		Name:       stagePatterns,
		Output:     strings.Join(parsed.StringSlice("patterns"), "; "),
		Confidence: parsed.Confidence,
		Weight:     r.weight(stagePatterns),
	}
}

// infer runs one inference per sub-problem.
func (r *Reasoner) infer(ctx context.Context, subProblems []string, evidence string) []ReasoningStep {
	steps := make([]ReasoningStep, 0, len(subProblems))
	for _, sub := range subProblems {
		prompt := fmt.Sprintf(
			`Sub-problem: %s. Evidence: %s.
Infer the most likely explanation as JSON: {"inference": "...", "confidence": 0.0}`,
			sub, evidence)

		parsed, err := r.agent.gateway.GenerateStructured(ctx, prompt)
		if err != nil || parsed.IsFallback() {
			steps = append(steps, r.fallbackStep(stageInfer, "", 0.65))
			continue
		}

		steps = append(steps, ReasoningStep{
			Name:       stageInfer,
			Output:     parsed.String("inference", ""),
			Confidence: parsed.Confidence,
			Weight:     r.weight(stageInfer),
		})
	}
	return steps
}

// synthesize joins the inferences into one conclusion.
func (r *Reasoner) synthesize(ctx context.Context, problem string, inferences []ReasoningStep) (string, ReasoningStep) {
	var sb strings.Builder
	for _, s := range inferences {
		if s.Output != "" {
			sb.WriteString(s.Output)
			sb.WriteString(" ")
		}
	}

	prompt := fmt.Sprintf(
		`Problem: %s. Inferences: %s
Synthesize one conclusion as JSON: {"conclusion": "...", "confidence": 0.0}`,
		problem, sb.String())

	parsed, err := r.agent.gateway.GenerateStructured(ctx, prompt)
	if err != nil || parsed.IsFallback() {
		conclusion := "Insufficient data for a confident conclusion"
		return conclusion, r.fallbackStep(stageSynthesize, conclusion, 0.7)
	}

	conclusion := parsed.String("conclusion", "")
	return conclusion, ReasoningStep{
		Name:       stageSynthesize,
		Output:     conclusion,
		Confidence: parsed.Confidence,
		Weight:     r.weight(stageSynthesize),
	}
}

func (r *Reasoner) fallbackStep(stage, output string, confidence float64) ReasoningStep {
	metrics.StageFallbacks.WithLabelValues(r.agent.config.Type, stage).Inc()
	return ReasoningStep{
		Name:       stage,
		Output:     output,
		Confidence: confidence,
		Weight:     r.weight(stage),
		Fallback:   true,
	}
}

// aggregateConfidence is the weighted average across all steps.
func aggregateConfidence(steps []ReasoningStep) float64 {
	var sum, weights float64
	for _, s := range steps {
		w := s.Weight
		if w <= 0 {
			w = 1.0
		}
		sum += s.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}
