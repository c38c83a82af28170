package agents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryTracker_ThresholdCrossing(t *testing.T) {
	tracker := NewRecoveryTracker(5, time.Minute)

	for i := 0; i < 5; i++ {
		assert.False(t, tracker.RecordError(), "error %d should not cross the threshold", i+1)
	}
	assert.True(t, tracker.RecordError(), "6th consecutive error crosses the threshold")
}

func TestRecoveryTracker_SuccessBreaksStreak(t *testing.T) {
	tracker := NewRecoveryTracker(5, time.Minute)

	for i := 0; i < 5; i++ {
		tracker.RecordError()
	}
	tracker.RecordSuccess()

	counters := tracker.Snapshot()
	assert.Equal(t, 0, counters.ConsecutiveErrors)
	assert.Equal(t, 5, counters.ErrorCount, "total count survives the streak reset")

	assert.False(t, tracker.RecordError(), "streak restarted from zero")
}

func TestRecoveryTracker_QuietReset(t *testing.T) {
	tracker := NewRecoveryTracker(5, 5*time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	tracker.RecordError()
	tracker.RecordError()

	assert.False(t, tracker.MaybeQuietReset(), "quiet period not elapsed yet")

	now = now.Add(6 * time.Minute)
	assert.True(t, tracker.MaybeQuietReset())
	assert.Equal(t, 0, tracker.Snapshot().ConsecutiveErrors)

	assert.False(t, tracker.MaybeQuietReset(), "nothing left to reset")
}

func TestRecoveryTracker_FullReset(t *testing.T) {
	tracker := NewRecoveryTracker(5, time.Minute)

	tracker.RecordError()
	tracker.Reset()

	counters := tracker.Snapshot()
	assert.Equal(t, 0, counters.ErrorCount)
	assert.Equal(t, 0, counters.ConsecutiveErrors)
	assert.True(t, counters.LastErrorTime.IsZero())
}

func TestRecoveryTracker_Defaults(t *testing.T) {
	tracker := NewRecoveryTracker(0, 0)

	for i := 0; i < 5; i++ {
		require.False(t, tracker.RecordError())
	}
	assert.True(t, tracker.RecordError(), "default threshold is 5")
}

func TestDecisionHistory_RingBuffer(t *testing.T) {
	h := newDecisionHistory(3)

	for i := 0; i < 5; i++ {
		h.Append(Decision{Chosen: string(rune('a' + i))})
	}

	assert.Equal(t, 3, h.Len(), "capacity bounds the history")

	recent := h.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].Chosen, "oldest surviving entry")
	assert.Equal(t, "e", recent[2].Chosen, "newest entry last")

	last := h.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, "e", last[0].Chosen)
}

func TestDecisionHistory_DefaultCapacity(t *testing.T) {
	h := newDecisionHistory(0)
	h.Append(Decision{Chosen: "x"})
	assert.Equal(t, 1, h.Len())
}
