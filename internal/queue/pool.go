package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one claimed job. A nil return acks the job, an error
// wrapped with Permanent fails it, any other error requeues it.
type Handler func(ctx context.Context, job *Job) error

// Pool runs a fixed number of consumer slots against one named queue. Each
// slot is a blocking pull loop: claim a job, process it fully, settle it,
// repeat. Slots never share a job.
type Pool struct {
	queue   *Queue
	name    string
	size    int
	handler Handler
	logger  *slog.Logger
}

// NewPool creates a consumer pool for the named queue
func NewPool(q *Queue, name string, size int, handler Handler, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		queue:   q,
		name:    name,
		size:    size,
		handler: handler,
		logger:  logger.With("component", "worker_pool", "queue", name),
	}
}

// Run blocks until ctx is cancelled and every slot has drained
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("starting worker pool", "slots", p.size)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.runSlot(ctx, slot)
		}(i)
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
}

func (p *Pool) runSlot(ctx context.Context, slot int) {
	logger := p.logger.With("slot", slot)

	for {
		job, err := p.queue.Dequeue(ctx, p.name)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.queue.pollInterval):
			}
			continue
		}

		p.process(ctx, logger, job)

		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Pool) process(ctx context.Context, logger *slog.Logger, job *Job) {
	taskErr := p.handler(ctx, job)

	// Settle with a fresh context: an in-flight job interrupted by shutdown
	// stays active and is requeued by RecoverActive on the next boot, but a
	// finished one should not lose its outcome to the dying context.
	settleCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch {
	case taskErr == nil:
		err = p.queue.Ack(settleCtx, job)
	case IsPermanent(taskErr):
		err = p.queue.Fail(settleCtx, job, taskErr)
	default:
		err = p.queue.Nack(settleCtx, job, taskErr)
	}
	if err != nil {
		logger.Error("failed to settle job", "job_id", job.ID, "error", err)
	}
}
