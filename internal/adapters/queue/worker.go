package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// ImportProcessor drives one end-to-end import run for a job id. A returned
// error means the run failed; the processor has already recorded the terminal
// job state, so the queue must not retry.
type ImportProcessor interface {
	ProcessImport(ctx context.Context, jobID string) error
}

// WorkerOptions configures the queue worker.
type WorkerOptions struct {
	Queue       string
	Concurrency int
	Logger      *slog.Logger
}

// Worker consumes import tasks and hands them to the processor. Concurrency
// bounds how many distinct jobs run at once; per-job serialization comes from
// the task-id uniqueness enforced at enqueue time.
type Worker struct {
	server    *asynq.Server
	processor ImportProcessor
	logger    *slog.Logger
}

// NewWorker constructs a Worker over the given redis connection.
func NewWorker(redisOpt asynq.RedisClientOpt, processor ImportProcessor, opts WorkerOptions) (*Worker, error) {
	if processor == nil {
		return nil, errors.New("import processor is required")
	}

	q := opts.Queue
	if q == "" {
		q = "default"
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{q: 1},
	})

	return &Worker{
		server:    server,
		processor: processor,
		logger:    logger,
	}, nil
}

// Run starts the queue server and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeImport, w.handleImport)

	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}

	<-ctx.Done()
	w.logger.InfoContext(ctx, "stopping queue worker")
	w.server.Shutdown()
	return ctx.Err()
}

func (w *Worker) handleImport(ctx context.Context, t *asynq.Task) error {
	jobID, err := ParseImportTask(t)
	if err != nil {
		// Malformed payloads can never succeed on retry.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err = w.processor.ProcessImport(ctx, jobID); err != nil {
		// The pipeline already recorded the failure on the job record;
		// retrying a failed run is the recovery scanner's call, not the
		// queue's.
		w.logger.ErrorContext(ctx, "import run failed", "job_id", jobID, "error", err)
		return fmt.Errorf("process import %s: %v: %w", jobID, err, asynq.SkipRetry)
	}
	return nil
}
