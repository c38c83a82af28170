package ai

import "encoding/json"

const (
	// Confidence assigned when extraction fails and the raw text is wrapped
	fallbackConfidence = 0.3

	// Confidence assumed for a parsed response that reports none of its own
	defaultParsedConfidence = 0.7

	markerParsingFailed = "parsing_failed"
)

// ParseStructured locates the first balanced {...} span in raw model text and
// decodes it. On any failure the raw text is wrapped in a stub carrying the
// parsing_failed marker; this function never returns an error.
func ParseStructured(raw string) Structured {
	span, ok := firstJSONSpan(raw)
	if ok {
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(span), &fields); err == nil {
			return Structured{
				Fields:     fields,
				Content:    raw,
				Confidence: reportedConfidence(fields),
			}
		}
	}

	return Structured{
		Content:    raw,
		Confidence: fallbackConfidence,
		Err:        markerParsingFailed,
	}
}

// firstJSONSpan finds the first balanced top-level object in s. Braces inside
// JSON strings are ignored.
func firstJSONSpan(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

func reportedConfidence(fields map[string]interface{}) float64 {
	if c, ok := fields["confidence"].(float64); ok && c >= 0 && c <= 1 {
		return c
	}
	return defaultParsedConfidence
}
