package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/adharshSciPy/justyta-mail/internal/queue"
	"github.com/adharshSciPy/justyta-mail/internal/scheduler"
	"github.com/adharshSciPy/justyta-mail/internal/testutil"
)

func TestSchedulerEnqueuesOneTaskPerAccountPerTick(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(db, logger, queue.Options{PollInterval: 10 * time.Millisecond})

	testutil.NewAccount(t, db)

	sched := scheduler.New(db, q, 20*time.Millisecond, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	// Wait for at least two ticks: with one account and no consumers the
	// queue keeps growing, one task per tick.
	deadline := time.Now().Add(2 * time.Second)
	for {
		queued, err := q.Count(context.Background(), queue.SyncMail, queue.StatusQueued)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if queued >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 2 queued sync tasks, got %d", queued)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerWithNoAccountsEnqueuesNothing(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(db, logger, queue.Options{PollInterval: 10 * time.Millisecond})

	sched := scheduler.New(db, q, 10*time.Millisecond, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	queued, err := q.Count(context.Background(), queue.SyncMail, queue.StatusQueued)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queued != 0 {
		t.Errorf("queued count: got %d, want 0", queued)
	}
}
