package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Enqueuer submits import jobs to the work queue keyed by job id, so a
// duplicate submission (crash-recovery re-enqueue, repeated operator action)
// collapses into a no-op instead of a concurrent second run.
type Enqueuer struct {
	client *asynq.Client
	queue  string
	logger *slog.Logger
}

// EnqueuerOptions configures an Enqueuer.
type EnqueuerOptions struct {
	Queue  string
	Logger *slog.Logger
}

// NewEnqueuer creates an Enqueuer over the given redis connection.
func NewEnqueuer(redisOpt asynq.RedisClientOpt, opts EnqueuerOptions) *Enqueuer {
	q := opts.Queue
	if q == "" {
		q = "default"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{
		client: asynq.NewClient(redisOpt),
		queue:  q,
		logger: logger,
	}
}

// EnqueueImport submits the job id to the queue. An id that is already queued
// or running is left alone.
func (e *Enqueuer) EnqueueImport(ctx context.Context, jobID string) error {
	task, err := NewImportTask(jobID)
	if err != nil {
		return err
	}

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.TaskID(jobID),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		e.logger.InfoContext(ctx, "import already enqueued", "job_id", jobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue import %s: %w", jobID, err)
	}
	return nil
}

// Close releases the underlying queue connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
