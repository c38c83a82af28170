package ai

import (
	"context"
	"sync"
	"time"

	"kitakita/pkg/errors"
)

// Limiter gates outbound gateway calls to a request budget.
type Limiter interface {
	// Wait blocks until the call can proceed or the context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if a call can proceed without blocking.
	Allow() bool

	// Limit returns the current budget (requests per minute).
	Limit() float64
}

// Clock abstracts time for the limiter so admission timing can be tested
// against a fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// SlidingWindowLimiter admits up to budget calls per window. It keeps the
// timestamp of every admitted call and drops entries once they age out of the
// window; when the window is full, Wait blocks until the oldest timestamp
// exits.
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	budget     int
	window     time.Duration
	timestamps []time.Time
	clock      Clock
}

// NewSlidingWindowLimiter creates a limiter with a 60-second window.
func NewSlidingWindowLimiter(budget int, clock Clock) *SlidingWindowLimiter {
	if budget < 1 {
		budget = 1
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &SlidingWindowLimiter{
		budget: budget,
		window: time.Minute,
		clock:  clock,
	}
}

// Wait blocks until a slot is available or the context is cancelled.
func (l *SlidingWindowLimiter) Wait(ctx context.Context) error {
	for {
		admitted, wait := l.tryAdmit()
		if admitted {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "rate limiter wait cancelled")
		case <-l.clock.After(wait):
			// Oldest entry should have aged out; try again
		}
	}
}

// Allow checks if a call can proceed and records it if so.
func (l *SlidingWindowLimiter) Allow() bool {
	admitted, _ := l.tryAdmit()
	return admitted
}

// Limit returns the budget in requests per minute.
func (l *SlidingWindowLimiter) Limit() float64 {
	return float64(l.budget) * float64(time.Minute) / float64(l.window)
}

// tryAdmit prunes expired timestamps and either records the call or reports
// how long until the oldest entry leaves the window.
func (l *SlidingWindowLimiter) tryAdmit() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) < l.budget {
		l.timestamps = append(l.timestamps, now)
		return true, 0
	}

	wait := l.timestamps[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// NoOpLimiter never blocks (for testing or disabled rate limiting).
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op limiter.
func NewNoOpLimiter() *NoOpLimiter { return &NoOpLimiter{} }

// Wait always returns immediately without error.
func (l *NoOpLimiter) Wait(ctx context.Context) error { return nil }

// Allow always returns true.
func (l *NoOpLimiter) Allow() bool { return true }

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 { return -1 }
