package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kitakita/internal/metrics"
	"kitakita/pkg/errors"
	"kitakita/pkg/logger"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// Ensure GeminiClient implements Gateway
var _ Gateway = (*GeminiClient)(nil)

// GeminiClient calls the Gemini generateContent endpoint. Every call goes
// through the limiter first and rate-limited responses are retried with
// backoff; all other failures propagate to the caller's stage fallback.
type GeminiClient struct {
	apiKey     string
	model      string
	genConfig  GenerationConfig
	httpClient *http.Client
	limiter    Limiter
	retrier    *Retrier
	log        *logger.Logger
}

// GeminiOptions configures a GeminiClient.
type GeminiOptions struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	GenConfig  GenerationConfig
	Limiter    Limiter
	Retry      RetryConfig
	HTTPClient *http.Client
}

// NewGeminiClient creates a Gemini gateway client.
func NewGeminiClient(opts GeminiOptions) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini API key not configured")
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = NewNoOpLimiter()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &GeminiClient{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		genConfig:  opts.GenConfig,
		httpClient: httpClient,
		limiter:    opts.Limiter,
		retrier:    NewRetrier(opts.Retry),
		log:        logger.Get().With("component", "gemini"),
	}, nil
}

// Generate sends a prompt and returns the raw model text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.GatewayCalls.WithLabelValues("rate_limited").Inc()
		return "", err
	}
	metrics.GatewayWaitSeconds.Observe(time.Since(waitStart).Seconds())

	start := time.Now()
	text, err := c.retrier.Do(ctx, func() (string, error) {
		return c.doRequest(ctx, prompt)
	})
	metrics.GatewayLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GatewayCalls.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.GatewayCalls.WithLabelValues("success").Inc()
	return text, nil
}

// GenerateStructured sends a prompt and extracts the first JSON object from
// the response. Malformed text is never an error here; it degrades to a
// parsing_failed stub the caller must check for.
func (c *GeminiClient) GenerateStructured(ctx context.Context, prompt string) (Structured, error) {
	raw, err := c.Generate(ctx, prompt)
	if err != nil {
		return Structured{}, err
	}

	parsed := ParseStructured(raw)
	if parsed.IsFallback() {
		metrics.GatewayParseFailures.Inc()
		c.log.Debugw("Gemini response had no parseable JSON", "model", c.model)
	}
	return parsed, nil
}

// doRequest performs one HTTP round trip.
func (c *GeminiClient) doRequest(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.genConfig.Temperature,
			TopK:            c.genConfig.TopK,
			TopP:            c.genConfig.TopP,
			MaxOutputTokens: c.genConfig.MaxOutputTokens,
		},
		SafetySettings: defaultSafetySettings(),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "marshal gemini request")
	}

	url := fmt.Sprintf(geminiAPIURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "send gemini request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read gemini response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.GatewayRetries.Inc()
		return "", errors.Wrapf(errors.ErrRateLimited, "gemini API error (429): %s", string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return "", errors.Wrapf(errors.ErrExternal, "gemini API error (%d): %s - %s",
				resp.StatusCode, errResp.Error.Status, errResp.Error.Message)
		}
		return "", errors.Wrapf(errors.ErrExternal, "gemini API error (%d): %s",
			resp.StatusCode, string(respBody))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", errors.Wrap(err, "unmarshal gemini response")
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", errors.Wrap(errors.ErrExternal, "gemini response has no candidates")
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// Gemini API types

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func defaultSafetySettings() []geminiSafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}

	settings := make([]geminiSafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, geminiSafetySetting{
			Category:  c,
			Threshold: "BLOCK_MEDIUM_AND_ABOVE",
		})
	}
	return settings
}
