package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adharshSciPy/justyta-mail/internal/database"
)

// Queue names. Each has its own consumer pool.
const (
	SyncMail = "syncMail"
	SendMail = "sendMail"
)

// Job statuses.
const (
	StatusQueued = "queued"
	StatusActive = "active"
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Job is one unit of queued work.
type Job struct {
	ID          string         `db:"id"`
	Queue       string         `db:"queue"`
	Payload     []byte         `db:"payload"`
	Status      string         `db:"status"`
	Attempts    int            `db:"attempts"`
	MaxAttempts int            `db:"max_attempts"`
	LastError   sql.NullString `db:"last_error"`
	RunAfter    sql.NullTime   `db:"run_after"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// Options tunes queue behaviour. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration // how often an idle consumer re-checks
	RetryDelay   time.Duration // delay before a nacked job becomes claimable
	MaxAttempts  int
}

// Queue is a durable at-least-once task queue on top of the jobs table.
// Producers enqueue, consumer slots block on Dequeue and must finish every
// claimed job with Ack, Nack or Fail.
type Queue struct {
	db           *database.DB
	logger       *slog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
	maxAttempts  int
}

// New creates a queue handle over the shared database
func New(db *database.DB, logger *slog.Logger, opts Options) *Queue {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Queue{
		db:           db,
		logger:       logger.With("component", "queue"),
		pollInterval: opts.PollInterval,
		retryDelay:   opts.RetryDelay,
		maxAttempts:  opts.MaxAttempts,
	}
}

// Enqueue adds a task to the named queue and returns its job id. The task
// is durable once this returns.
func (q *Queue) Enqueue(ctx context.Context, queue string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	id := uuid.NewString()
	now := time.Now()
	query := `
		INSERT INTO jobs (id, queue, payload, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)
	`
	_, err = q.db.ExecContext(ctx, query, id, queue, string(body), StatusQueued, q.maxAttempts, now, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.Debug("job enqueued", "job_id", id, "queue", queue)
	return id, nil
}

// Dequeue blocks until a job is claimed or the context is cancelled. A
// claimed job is visible to no other consumer until it is requeued.
func (q *Queue) Dequeue(ctx context.Context, queue string) (*Job, error) {
	for {
		job, err := q.claim(ctx, queue)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// claim atomically picks the oldest claimable job and marks it active.
// Returns (nil, nil) when the queue is empty.
func (q *Queue) claim(ctx context.Context, queue string) (*Job, error) {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim tx: %w", err)
	}
	defer tx.Rollback()

	var job Job
	query := `
		SELECT * FROM jobs
		WHERE queue = ? AND status = ? AND (run_after IS NULL OR run_after <= ?)
		ORDER BY created_at, id
		LIMIT 1
	`
	err = tx.GetContext(ctx, &job, query, queue, StatusQueued, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select job: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		StatusActive, now, job.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	job.Status = StatusActive
	job.Attempts++
	job.UpdatedAt = now
	return &job, nil
}

// Ack marks a job as successfully processed
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		StatusDone, time.Now(), job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack reports a retryable failure. The job is requeued with a delay until
// its attempts are exhausted, then marked failed and surfaced in the log.
func (q *Queue) Nack(ctx context.Context, job *Job, taskErr error) error {
	if job.Attempts >= job.MaxAttempts {
		return q.markFailed(ctx, job, taskErr)
	}

	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
		StatusQueued, taskErr.Error(), time.Now().Add(q.retryDelay), time.Now(), job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	q.logger.Warn("job requeued after failure",
		"job_id", job.ID,
		"queue", job.Queue,
		"attempt", job.Attempts,
		"max_attempts", job.MaxAttempts,
		"error", taskErr,
	)
	return nil
}

// Fail marks a job as permanently failed regardless of remaining attempts
func (q *Queue) Fail(ctx context.Context, job *Job, taskErr error) error {
	return q.markFailed(ctx, job, taskErr)
}

func (q *Queue) markFailed(ctx context.Context, job *Job, taskErr error) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, taskErr.Error(), time.Now(), job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	q.logger.Error("job failed",
		"job_id", job.ID,
		"queue", job.Queue,
		"attempts", job.Attempts,
		"error", taskErr,
	)
	return nil
}

// RecoverActive requeues jobs left active by a crashed process. Call once
// on startup before any consumer runs.
func (q *Queue) RecoverActive(ctx context.Context) (int, error) {
	result, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
		StatusQueued, time.Now(), StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover active jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		q.logger.Info("recovered interrupted jobs", "count", n)
	}
	return int(n), nil
}

// Count returns the number of jobs in a queue with the given status
func (q *Queue) Count(ctx context.Context, queue, status string) (int, error) {
	var count int
	err := q.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM jobs WHERE queue = ? AND status = ?`, queue, status)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}
