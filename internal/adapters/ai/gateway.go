package ai

import "context"

// Gateway is the contract agents use to reach the hosted text-generation
// endpoint. Generate returns the raw model text; GenerateStructured applies
// JSON extraction and always returns a shape-compatible result, degrading to
// a low-confidence stub instead of failing on malformed text.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt string) (Structured, error)
}

// GenerationConfig carries the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// Structured is the parsed form of a model response. Callers must check
// IsFallback before trusting Fields: a stub has the same top-level shape as a
// successful parse, with Err set as the marker.
type Structured struct {
	Fields     map[string]interface{}
	Content    string
	Confidence float64
	Err        string
}

// IsFallback reports whether this result is a degradation stub rather than a
// successfully parsed response.
func (s Structured) IsFallback() bool {
	return s.Err != ""
}

// Float reads a numeric field, returning def when absent or non-numeric.
func (s Structured) Float(key string, def float64) float64 {
	if v, ok := s.Fields[key].(float64); ok {
		return v
	}
	return def
}

// String reads a string field, returning def when absent.
func (s Structured) String(key, def string) string {
	if v, ok := s.Fields[key].(string); ok && v != "" {
		return v
	}
	return def
}

// StringSlice reads an array-of-strings field. Non-string elements are skipped.
func (s Structured) StringSlice(key string) []string {
	raw, ok := s.Fields[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}
