package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitakita/pkg/errors"
)

// newTestRetrier records requested delays instead of sleeping and disables
// jitter so delays are exact.
func newTestRetrier(config RetryConfig) (*Retrier, *[]time.Duration) {
	r := NewRetrier(config)
	delays := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	r.jitter = func(time.Duration) time.Duration { return 0 }
	return r, delays
}

func TestRetrier_ExponentialBackoffOn429(t *testing.T) {
	r, delays := newTestRetrier(DefaultRetryConfig())

	calls := 0
	_, err := r.Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.Wrap(errors.ErrRateLimited, "gemini API error (429)")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimited))
	assert.Equal(t, 4, calls, "initial attempt plus 3 retries")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestRetrier_DelayCappedAtMax(t *testing.T) {
	r, delays := newTestRetrier(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 16 * time.Second,
		MaxDelay:     32 * time.Second,
		Multiplier:   2.0,
	})

	_, err := r.Do(context.Background(), func() (string, error) {
		return "", errors.ErrRateLimited
	})

	require.Error(t, err)
	assert.Equal(t, []time.Duration{16 * time.Second, 32 * time.Second, 32 * time.Second}, *delays)
}

func TestRetrier_SucceedsAfterTransient429(t *testing.T) {
	r, delays := newTestRetrier(DefaultRetryConfig())

	calls := 0
	result, err := r.Do(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.ErrRateLimited
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Len(t, *delays, 2)
}

func TestRetrier_NonRateLimitErrorNotRetried(t *testing.T) {
	r, delays := newTestRetrier(DefaultRetryConfig())

	calls := 0
	_, err := r.Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.Wrap(errors.ErrExternal, "gemini API error (500)")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "500-class errors must propagate immediately")
	assert.Empty(t, *delays)
}

func TestRetrier_MatchesBare429Text(t *testing.T) {
	r, _ := newTestRetrier(DefaultRetryConfig())

	calls := 0
	_, err := r.Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("upstream said 429 try later")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "429 in the message is enough to trigger retries")
}

func TestRetrier_CancellationDuringBackoff(t *testing.T) {
	r := NewRetrier(DefaultRetryConfig())
	r.jitter = func(time.Duration) time.Duration { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Do(ctx, func() (string, error) {
		return "", errors.ErrRateLimited
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetrier_JitterBounded(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := randomJitter(time.Second)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, time.Second)
	}
	assert.Equal(t, time.Duration(0), randomJitter(0))
}
