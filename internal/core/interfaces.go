// Package core defines the dependency interfaces consumed by the ingestion
// pipeline and its runners. Implementations live in internal/data and
// internal/adapters; tests substitute fakes.
package core

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

// JobStore provides durable access to import jobs.
type JobStore interface {
	// GetByID returns the job or data.ErrJobNotFound.
	GetByID(ctx context.Context, id string) (*model.ImportJob, error)
	// Create inserts a new pending job and returns it.
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.ImportJob, error)
	// MarkProcessing transitions the job to processing.
	MarkProcessing(ctx context.Context, id string) error
	// SetTotalRows records the counted input size for this run.
	SetTotalRows(ctx context.Context, id string, totalRows int) error
	// SetProcessedRows records progress. Called strictly after the
	// corresponding batch transaction has committed.
	SetProcessedRows(ctx context.Context, id string, processedRows int) error
	// SaveRateSnapshot persists the rate table captured for this job.
	// Write-once: a snapshot already present is left untouched.
	SaveRateSnapshot(ctx context.Context, id string, snapshot json.RawMessage) error
	// MarkFailed sets status failed with a bounded reason.
	MarkFailed(ctx context.Context, id, reason string) error
	// CompleteIfNotFailed sets status completed unless a concurrent
	// cancellation already marked the job failed. Returns true when the
	// transition happened.
	CompleteIfNotFailed(ctx context.Context, id string) (bool, error)
	// ListByStatus returns all jobs currently in the given status.
	ListByStatus(ctx context.Context, status model.JobStatus) ([]*model.ImportJob, error)
	// ResetProgress zeroes processed_rows, used by cleanup.
	ResetProgress(ctx context.Context, id string) error
}

// ProductStore persists products and their expanded prices.
type ProductStore interface {
	// CountByJob returns how many products are already committed for the
	// job. The pipeline uses this as the resume offset.
	CountByJob(ctx context.Context, jobID string) (int, error)
	// InsertBatch persists the candidates and all derived prices as a
	// single all-or-nothing unit.
	InsertBatch(ctx context.Context, jobID string, candidates []model.ProductCandidate, rates model.RateTable) error
	// DeleteByJob removes every product for the job; prices cascade.
	DeleteByJob(ctx context.Context, jobID string) (int64, error)
}

// ObjectStore streams remote objects.
type ObjectStore interface {
	// Fetch opens the object under key for reading. The caller closes the
	// returned reader.
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// RateSource fetches a snapshot of exchange rates for one base currency.
type RateSource interface {
	// FetchRates returns multipliers relative to baseCurrency, keyed by
	// lower-cased currency code. Any failure is fatal for the run.
	FetchRates(ctx context.Context, baseCurrency string) (model.RateTable, error)
}

// Enqueuer submits import jobs to the work queue. Submitting an id that is
// already queued or running is a no-op.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, jobID string) error
}
