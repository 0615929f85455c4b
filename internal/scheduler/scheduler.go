package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/adharshSciPy/justyta-mail/internal/database"
	"github.com/adharshSciPy/justyta-mail/internal/queue"
	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

// Scheduler enqueues one sync task per account on a fixed interval. It does
// not check for in-flight syncs; a slow account can have two tasks running
// at once, which is safe because the watermark update is a compare-and-swap.
type Scheduler struct {
	db       *database.DB
	queue    *queue.Queue
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler
func New(db *database.DB, q *queue.Queue, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:       db,
		queue:    q,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("starting scheduler", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick enqueues a sync task for every account.
func (s *Scheduler) tick(ctx context.Context) {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts", "error", err)
		return
	}

	enqueued := 0
	for _, account := range accounts {
		_, err := s.queue.Enqueue(ctx, queue.SyncMail, models.SyncTask{AccountID: account.ID})
		if err != nil {
			s.logger.Error("failed to enqueue sync task", "account_id", account.ID, "error", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.logger.Debug("sync tasks enqueued", "count", enqueued)
	}
}
