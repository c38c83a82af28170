package workers

import (
	"context"
	"time"

	"kitakita/internal/agents"
)

// RecoveryProbeWorker sweeps live agents and resets error streaks that have
// gone quiet, so an old burst of failures does not trip self-heal on the next
// single error.
type RecoveryProbeWorker struct {
	*BaseWorker
	registry *agents.Registry
}

// NewRecoveryProbeWorker creates the recovery probe.
func NewRecoveryProbeWorker(registry *agents.Registry, interval time.Duration, enabled bool) *RecoveryProbeWorker {
	return &RecoveryProbeWorker{
		BaseWorker: NewBaseWorker("recovery_probe", interval, enabled),
		registry:   registry,
	}
}

// Run performs one maintenance sweep.
func (w *RecoveryProbeWorker) Run(ctx context.Context) error {
	start := time.Now()

	offline := 0
	w.registry.ForEach(func(a agents.Maintainable) {
		a.QuietPeriodMaintenance()
		if a.State() == agents.StateOffline {
			offline++
		}
	})

	if offline > 0 {
		w.Log().Warnf("%d of %d agents offline", offline, w.registry.Len())
	}

	w.RecordRun(time.Since(start))
	return nil
}
