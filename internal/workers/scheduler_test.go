package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWorker counts runs for scheduler tests.
type mockWorker struct {
	*BaseWorker
	runs int64
	err  error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{BaseWorker: NewBaseWorker(name, interval, enabled)}
}

func (w *mockWorker) Run(_ context.Context) error {
	atomic.AddInt64(&w.runs, 1)
	if w.err != nil {
		w.RecordError(w.err, 0)
		return w.err
	}
	w.RecordRun(0)
	return nil
}

func (w *mockWorker) runCountAtomic() int64 {
	return atomic.LoadInt64(&w.runs)
}

func TestScheduler_RunsWorkerImmediately(t *testing.T) {
	s := NewScheduler()
	w := newMockWorker("immediate", time.Hour, true)
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return w.runCountAtomic() == 1
	}, time.Second, 10*time.Millisecond, "worker runs once on start, then waits for the ticker")
}

func TestScheduler_SkipsDisabledWorker(t *testing.T) {
	s := NewScheduler()
	w := newMockWorker("disabled", 10*time.Millisecond, false)
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int64(0), w.runCountAtomic())
}

func TestScheduler_TicksOnInterval(t *testing.T) {
	s := NewScheduler()
	w := newMockWorker("ticking", 10*time.Millisecond, true)
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return w.runCountAtomic() >= 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
}

func TestScheduler_DoubleStartRejected(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_StopBeforeStartRejected(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.Stop())
}

func TestScheduler_RegisterAfterStartIgnored(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	late := newMockWorker("late", time.Hour, true)
	s.RegisterWorker(late)

	assert.Empty(t, s.GetWorkers())
}

func TestScheduler_StopCancelsWorkers(t *testing.T) {
	s := NewScheduler()
	w := newMockWorker("cancellable", 5*time.Millisecond, true)
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	stopped := w.runCountAtomic()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, w.runCountAtomic(), "no runs after Stop returns")
}

func TestBaseWorker_HealthTracking(t *testing.T) {
	w := NewBaseWorker("health", time.Minute, true)

	w.RecordRun(100 * time.Millisecond)
	w.RecordError(assert.AnError, 300*time.Millisecond)

	h := w.Health()
	assert.Equal(t, int64(2), h.RunCount)
	assert.Equal(t, int64(1), h.ErrorCount)
	assert.Equal(t, assert.AnError, h.LastError)
	assert.Equal(t, 200*time.Millisecond, h.AvgDuration)

	w.RecordRun(0)
	assert.Nil(t, w.Health().LastError, "a successful run clears the last error")
}

func TestBaseWorker_SetEnabled(t *testing.T) {
	w := NewBaseWorker("toggle", time.Minute, true)
	assert.True(t, w.Enabled())

	w.SetEnabled(false)
	assert.False(t, w.Enabled())
}
