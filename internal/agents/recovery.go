package agents

import (
	"sync"
	"time"
)

// Counters is a snapshot of the error/recovery state.
type Counters struct {
	ErrorCount        int
	ConsecutiveErrors int
	LastErrorTime     time.Time
}

// RecoveryTracker accumulates pipeline errors. Crossing the consecutive-error
// threshold signals the agent to re-run its initialization; a quiet period
// with no errors resets the consecutive counter.
type RecoveryTracker struct {
	mu                sync.Mutex
	errorCount        int
	consecutiveErrors int
	lastErrorTime     time.Time

	threshold   int
	quietPeriod time.Duration

	now func() time.Time // injectable for tests
}

// NewRecoveryTracker creates a tracker with the given threshold and quiet
// period. Zero values fall back to 5 errors and 5 minutes.
func NewRecoveryTracker(threshold int, quietPeriod time.Duration) *RecoveryTracker {
	if threshold <= 0 {
		threshold = 5
	}
	if quietPeriod <= 0 {
		quietPeriod = 5 * time.Minute
	}
	return &RecoveryTracker{
		threshold:   threshold,
		quietPeriod: quietPeriod,
		now:         time.Now,
	}
}

// RecordError registers a failure and reports whether the threshold has been
// crossed, i.e. whether the agent should self-heal.
func (t *RecoveryTracker) RecordError() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.errorCount++
	t.consecutiveErrors++
	t.lastErrorTime = t.now()

	return t.consecutiveErrors > t.threshold
}

// RecordSuccess resets the consecutive-error streak.
func (t *RecoveryTracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveErrors = 0
}

// MaybeQuietReset clears the consecutive counter once the quiet period has
// elapsed since the last error. Returns true when a reset happened.
func (t *RecoveryTracker) MaybeQuietReset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.consecutiveErrors == 0 || t.lastErrorTime.IsZero() {
		return false
	}
	if t.now().Sub(t.lastErrorTime) < t.quietPeriod {
		return false
	}

	t.consecutiveErrors = 0
	return true
}

// Reset clears the full error state after a successful self-heal.
func (t *RecoveryTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveErrors = 0
	t.errorCount = 0
	t.lastErrorTime = time.Time{}
}

// Snapshot returns the current counters.
func (t *RecoveryTracker) Snapshot() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Counters{
		ErrorCount:        t.errorCount,
		ConsecutiveErrors: t.consecutiveErrors,
		LastErrorTime:     t.lastErrorTime,
	}
}
