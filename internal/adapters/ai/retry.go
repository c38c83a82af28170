package ai

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"kitakita/pkg/errors"
)

// RetryConfig controls the backoff applied to rate-limited gateway calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxJitter    time.Duration
}

// DefaultRetryConfig returns the backoff policy used against the Gemini
// free-tier limits: 3 retries, 1s initial delay doubling up to 32s, with up
// to 1s of jitter added to each delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     32 * time.Second,
		Multiplier:   2.0,
		MaxJitter:    time.Second,
	}
}

// Retrier retries rate-limited calls with exponential backoff plus jitter.
// Only 429-class errors are retried; anything else propagates immediately.
type Retrier struct {
	config RetryConfig

	// Injectable for tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// NewRetrier creates a retrier, filling in defaults for zero config values.
func NewRetrier(config RetryConfig) *Retrier {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 32 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}

	return &Retrier{
		config: config,
		sleep:  sleepContext,
		jitter: randomJitter,
	}
}

// Do executes fn, retrying on rate-limit errors until MaxAttempts retries are
// exhausted. The k-th retry waits min(initial*multiplier^(k-1), cap) plus
// jitter in [0, MaxJitter).
func (r *Retrier) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRateLimited(err) {
			return "", err
		}

		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delayFor(attempt) + r.jitter(r.config.MaxJitter)
		if err := r.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", errors.Wrapf(lastErr, "max retries (%d) exceeded", r.config.MaxAttempts)
}

// delayFor returns the base delay for the given zero-indexed retry.
func (r *Retrier) delayFor(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt)))
	if delay > r.config.MaxDelay || delay <= 0 {
		delay = r.config.MaxDelay
	}
	return delay
}

// isRateLimited reports whether err is a 429-class error. Matching the
// message text covers errors that crossed a serialization boundary.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrRateLimited) {
		return true
	}
	return strings.Contains(err.Error(), "429")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "retry cancelled")
	case <-time.After(d):
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
