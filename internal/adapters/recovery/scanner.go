// Package recovery re-enqueues import jobs that a crashed worker left in
// processing. Because queue submissions are keyed by job id, rescanning while
// a job is still genuinely running is harmless.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pricewise/catalog-ingest/internal/core"
	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

// Scanner finds orphaned processing jobs and puts them back on the queue.
type Scanner struct {
	jobs     core.JobStore
	enqueuer core.Enqueuer
	logger   *slog.Logger
}

// Options configures a Scanner.
type Options struct {
	Jobs     core.JobStore
	Enqueuer core.Enqueuer
	Logger   *slog.Logger
}

// New constructs a Scanner.
func New(opts Options) (*Scanner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job store is required")
	}
	if opts.Enqueuer == nil {
		return nil, errors.New("enqueuer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{jobs: opts.Jobs, enqueuer: opts.Enqueuer, logger: logger}, nil
}

// Run performs one scan. Jobs that fail to enqueue are logged and skipped so
// one bad submission does not block the rest.
func (s *Scanner) Run(ctx context.Context) error {
	jobs, err := s.jobs.ListByStatus(ctx, model.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("list processing jobs: %w", err)
	}
	if len(jobs) == 0 {
		s.logger.InfoContext(ctx, "recovery scan found no orphaned jobs")
		return nil
	}

	recovered := 0
	for _, job := range jobs {
		if err := s.enqueuer.EnqueueImport(ctx, job.ID); err != nil {
			s.logger.ErrorContext(ctx, "re-enqueue orphaned job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}
	s.logger.InfoContext(ctx, "recovery scan complete", "found", len(jobs), "recovered", recovered)
	return nil
}
