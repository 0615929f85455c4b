package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/adharshSciPy/justyta-mail/internal/queue"
	"github.com/adharshSciPy/justyta-mail/internal/testutil"
	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

func newQueue(t *testing.T, opts queue.Options) *queue.Queue {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return queue.New(testutil.NewDB(t), logger, opts)
}

func TestEnqueueDequeueAck(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, queue.SyncMail, models.SyncTask{AccountID: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := q.Dequeue(ctx, queue.SyncMail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != id {
		t.Errorf("job id: got %q, want %q", job.ID, id)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts: got %d, want 1", job.Attempts)
	}

	var task models.SyncTask
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if task.AccountID != 7 {
		t.Errorf("accountId: got %d, want 7", task.AccountID)
	}

	if err := q.Ack(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	done, err := q.Count(ctx, queue.SyncMail, queue.StatusDone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done != 1 {
		t.Errorf("done count: got %d, want 1", done)
	}
}

func TestDequeueRespectsContextCancel(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx, queue.SyncMail)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.SendMail, models.SendTask{AccountID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := q.Dequeue(ctx, queue.SendMail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The single job is active now; a second consumer must block until the
	// deadline instead of seeing the same job.
	second, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(second, queue.SendMail); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestNackRequeuesUntilAttemptsExhausted(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{
		PollInterval: 10 * time.Millisecond,
		RetryDelay:   time.Millisecond,
		MaxAttempts:  2,
	})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.SyncMail, models.SyncTask{AccountID: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	taskErr := errors.New("connection refused")

	job, err := q.Dequeue(ctx, queue.SyncMail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Nack(ctx, job, taskErr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queued, err := q.Count(ctx, queue.SyncMail, queue.StatusQueued)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queued != 1 {
		t.Fatalf("queued count after first nack: got %d, want 1", queued)
	}

	// Second attempt is the last one allowed.
	job, err = q.Dequeue(ctx, queue.SyncMail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Attempts != 2 {
		t.Errorf("attempts: got %d, want 2", job.Attempts)
	}
	if err := q.Nack(ctx, job, taskErr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed, err := q.Count(ctx, queue.SyncMail, queue.StatusFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed count: got %d, want 1", failed)
	}
}

func TestFailSkipsRemainingAttempts(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{PollInterval: 10 * time.Millisecond, MaxAttempts: 5})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.SyncMail, models.SyncTask{AccountID: 8}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, err := q.Dequeue(ctx, queue.SyncMail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Fail(ctx, job, errors.New("account not found")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed, err := q.Count(ctx, queue.SyncMail, queue.StatusFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed count: got %d, want 1", failed)
	}
}

func TestRecoverActiveRequeuesInterruptedJobs(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.SendMail, models.SendTask{AccountID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.Dequeue(ctx, queue.SendMail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulates a process restart while the job was in flight.
	n, err := q.RecoverActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered: got %d, want 1", n)
	}

	job, err := q.Dequeue(ctx, queue.SendMail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Attempts != 2 {
		t.Errorf("attempts after recovery: got %d, want 2", job.Attempts)
	}
}

func TestQueuesAreIndependent(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.SyncMail, models.SyncTask{AccountID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A sendMail consumer must not see syncMail tasks.
	sendCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(sendCtx, queue.SendMail); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	if _, err := q.Dequeue(ctx, queue.SyncMail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPoolProcessesJobs(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.Options{PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processed := make(chan string, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := queue.NewPool(q, queue.SyncMail, 2, func(ctx context.Context, job *queue.Job) error {
		processed <- job.ID
		return nil
	}, logger)

	go pool.Run(ctx)

	id, err := q.Enqueue(ctx, queue.SyncMail, models.SyncTask{AccountID: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case got := <-processed:
		if got != id {
			t.Errorf("processed job: got %q, want %q", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not process the job in time")
	}

	// Ack happens after the handler returns.
	deadline := time.Now().Add(2 * time.Second)
	for {
		done, err := q.Count(context.Background(), queue.SyncMail, queue.StatusDone)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if done == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job was never acked")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
