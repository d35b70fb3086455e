package sync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs interval-based background syncs. Each tick picks the
// accounts whose SyncIntervalMin has elapsed and hands them to the
// coordinator.
type Scheduler struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      *zap.Logger
}

func NewScheduler(coordinator *Coordinator, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		coordinator: coordinator,
		interval:    interval,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	summary, err := s.coordinator.SyncDueAccounts(ctx, now, Options{})
	if err != nil {
		s.logger.Error("Scheduled sync failed", zap.Error(err))
		return
	}
	if summary.TotalAccounts > 0 {
		s.logger.Info("Scheduled sync finished",
			zap.Int("due", summary.TotalAccounts),
			zap.Int("successful", summary.SuccessfulAccounts),
			zap.Int("new", summary.TotalNewMessages),
		)
	}
}
