package workers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitakita/internal/services/advisor"
	"kitakita/pkg/errors"
)

// UserLister enumerates users whose insights should be kept warm.
type UserLister interface {
	ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// InsightRefresherWorker periodically rebuilds dashboard insights for active
// users, bounded by a concurrency limit so one cycle cannot flood the
// gateway budget.
type InsightRefresherWorker struct {
	*BaseWorker
	advisor        *advisor.Service
	users          UserLister
	maxConcurrency int
}

// NewInsightRefresherWorker creates the insight refresher.
func NewInsightRefresherWorker(svc *advisor.Service, users UserLister, interval time.Duration, maxConcurrency int, enabled bool) *InsightRefresherWorker {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &InsightRefresherWorker{
		BaseWorker:     NewBaseWorker("insight_refresher", interval, enabled),
		advisor:        svc,
		users:          users,
		maxConcurrency: maxConcurrency,
	}
}

// Run refreshes insights for every active user. Per-user failures are logged
// and do not abort the cycle; budget rejections are expected and skipped.
func (w *InsightRefresherWorker) Run(ctx context.Context) error {
	start := time.Now()

	userIDs, err := w.users.ListActiveUserIDs(ctx)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return errors.Wrap(err, "list active users")
	}

	sem := make(chan struct{}, w.maxConcurrency)
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			w.RecordError(ctx.Err(), time.Since(start))
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := w.advisor.DashboardInsights(ctx, userID)
			if errors.Is(err, errors.ErrBudgetExhausted) {
				w.Log().Debugf("Refresh budget exhausted for user %s, skipping", userID)
				return
			}
			if err != nil {
				w.Log().Warnf("Insight refresh failed for user %s: %v", userID, err)
			}
		}(userID)
	}
	wg.Wait()

	w.RecordRun(time.Since(start))
	w.Log().Infof("Refreshed insights for %d users", len(userIDs))
	return nil
}
