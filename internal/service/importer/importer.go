// Package importer implements the ingestion pipeline: it streams a delimited
// price file out of object storage, validates it, expands prices into every
// supported currency, and persists rows in atomic batches under cooperative
// cancellation, resumable from the count of rows already committed.
package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pricewise/catalog-ingest/config"
	"github.com/pricewise/catalog-ingest/internal/core"
	"github.com/pricewise/catalog-ingest/internal/data"
	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

// Options groups dependencies for the Importer.
type Options struct {
	Jobs     core.JobStore     // Required: import job store
	Products core.ProductStore // Required: product/price store
	Objects  core.ObjectStore  // Required: source object store
	Rates    core.RateSource   // Required: exchange-rate provider
	Logger   *slog.Logger      // Optional: structured logger

	Importer config.ImporterConfig
	Currency config.RatesConfig
}

// Importer drives one end-to-end import run per job, idempotently with
// respect to resumption.
type Importer struct {
	jobs     core.JobStore
	products core.ProductStore
	objects  core.ObjectStore
	rates    core.RateSource
	logger   *slog.Logger

	batchSize      int
	tempDir        string
	baseCurrency   string
	currencySymbol string
}

// New constructs an Importer.
func New(opts Options) (*Importer, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job store is required")
	}
	if opts.Products == nil {
		return nil, errors.New("product store is required")
	}
	if opts.Objects == nil {
		return nil, errors.New("object store is required")
	}
	if opts.Rates == nil {
		return nil, errors.New("rate source is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := opts.Importer.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	tempDir := opts.Importer.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	base := opts.Currency.BaseCurrency
	if base == "" {
		base = "USD"
	}
	symbol := opts.Currency.CurrencySymbol
	if symbol == "" {
		symbol = "$"
	}

	return &Importer{
		jobs:           opts.Jobs,
		products:       opts.Products,
		objects:        opts.Objects,
		rates:          opts.Rates,
		logger:         logger,
		batchSize:      batchSize,
		tempDir:        tempDir,
		baseCurrency:   base,
		currencySymbol: symbol,
	}, nil
}

// ProcessImport runs the pipeline for one job id. A missing job is a stale
// queue item and a no-op. Any failure inside the run cleans up partial writes
// and records a bounded failure reason on the job; the returned error mirrors
// what was recorded.
func (imp *Importer) ProcessImport(ctx context.Context, jobID string) error {
	job, err := imp.jobs.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		imp.logger.WarnContext(ctx, "skipping stale queue item", "job_id", jobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	stagingPath := filepath.Join(imp.tempDir, fmt.Sprintf("import-%s.csv", job.ID))
	defer func() {
		if rmErr := os.Remove(stagingPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			imp.logger.WarnContext(ctx, "remove staging file", "job_id", job.ID, "error", rmErr)
		}
	}()

	runErr := imp.run(ctx, job, stagingPath)
	if runErr == nil {
		return nil
	}

	// A shutdown is not a run failure: leave the job in processing so the
	// recovery scan resumes it from the committed offset.
	if errors.Is(runErr, context.Canceled) {
		imp.logger.InfoContext(ctx, "import interrupted by shutdown", "job_id", job.ID)
		return runErr
	}

	imp.logger.ErrorContext(ctx, "import run failed", "job_id", job.ID, "error", runErr)
	imp.cleanup(ctx, job.ID)
	if failErr := imp.jobs.MarkFailed(ctx, job.ID, runErr.Error()); failErr != nil {
		imp.logger.ErrorContext(ctx, "mark job failed", "job_id", job.ID, "error", failErr)
	}
	return runErr
}

// run executes steps 2-10 of the pipeline against one job.
func (imp *Importer) run(ctx context.Context, job *model.ImportJob, stagingPath string) error {
	if err := imp.jobs.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	totalRows, err := imp.downloadAndCount(ctx, job.SourceKey, stagingPath)
	if err != nil {
		return err
	}

	if err = validateHeader(stagingPath); err != nil {
		return err
	}

	if err = imp.jobs.SetTotalRows(ctx, job.ID, totalRows); err != nil {
		return fmt.Errorf("set total rows: %w", err)
	}

	// Resume offset: rows already committed by an interrupted run. Safe
	// because rows are re-parsed in the same order and written in a single
	// forward pass.
	offset, err := imp.products.CountByJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("count committed rows: %w", err)
	}
	if offset > 0 {
		imp.logger.InfoContext(ctx, "resuming import", "job_id", job.ID, "offset", offset)
	}

	rates, err := imp.rates.FetchRates(ctx, imp.baseCurrency)
	if err != nil {
		return err
	}
	imp.saveRateSnapshot(ctx, job.ID, rates)

	completed, err := imp.processRows(ctx, job.ID, stagingPath, offset, rates)
	if err != nil {
		return err
	}
	if !completed {
		// Cancelled by user at a batch boundary; cleanup already ran.
		return nil
	}

	done, err := imp.jobs.CompleteIfNotFailed(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !done {
		imp.logger.InfoContext(ctx, "job failed concurrently, leaving status untouched", "job_id", job.ID)
	}
	return nil
}

// downloadAndCount streams the source object to the staging file while
// counting lines. Returns the row count excluding the header, floored at 0.
func (imp *Importer) downloadAndCount(ctx context.Context, key, stagingPath string) (int, error) {
	obj, err := imp.objects.Fetch(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("fetch source object: %w", err)
	}
	defer func() {
		_ = obj.Close()
	}()

	f, err := os.Create(stagingPath)
	if err != nil {
		return 0, fmt.Errorf("create staging file: %w", err)
	}

	counter := &lineCounter{}
	_, copyErr := io.Copy(io.MultiWriter(f, counter), obj)
	closeErr := f.Close()
	if copyErr != nil {
		return 0, fmt.Errorf("stage source object: %w", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close staging file: %w", closeErr)
	}

	return max(0, counter.Lines()-1), nil
}

// lineCounter counts lines as data flows through. A trailing line without a
// terminating newline still counts.
type lineCounter struct {
	newlines int
	lastByte byte
	total    int64
}

func (c *lineCounter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			c.newlines++
		}
	}
	if len(p) > 0 {
		c.lastByte = p[len(p)-1]
		c.total += int64(len(p))
	}
	return len(p), nil
}

func (c *lineCounter) Lines() int {
	lines := c.newlines
	if c.total > 0 && c.lastByte != '\n' {
		lines++
	}
	return lines
}

// processRows stream-parses the staged file, skipping rows before offset, and
// commits batches of parsed candidates. Returns false when the run stopped at
// a cancellation gate.
func (imp *Importer) processRows(
	ctx context.Context,
	jobID, stagingPath string,
	offset int,
	rates model.RateTable,
) (bool, error) {
	f, err := os.Open(stagingPath)
	if err != nil {
		return false, fmt.Errorf("open staged file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	// Header line was validated already; skip it.
	if _, err = reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, fmt.Errorf("read header: %w", err)
	}

	var (
		batch     = make([]model.ProductCandidate, 0, imp.batchSize)
		processed = offset
		rowIndex  = 0
	)

	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return false, fmt.Errorf("corrupted data: %w", readErr)
		}

		rowIndex++
		if rowIndex <= offset {
			// Parsing cost is paid again on resume; persistence is not.
			continue
		}

		cand, parseErr := parseRow(record, imp.currencySymbol)
		if parseErr != nil {
			return false, parseErr
		}
		batch = append(batch, cand)

		if len(batch) >= imp.batchSize {
			ok, flushErr := imp.flushBatch(ctx, jobID, batch, rates, &processed)
			if flushErr != nil {
				return false, flushErr
			}
			if !ok {
				return false, nil
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		ok, flushErr := imp.flushBatch(ctx, jobID, batch, rates, &processed)
		if flushErr != nil {
			return false, flushErr
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// flushBatch passes the cancellation gate, commits one batch, then records
// progress. Progress is written strictly after the commit so a crash cannot
// report more rows than are durably stored.
func (imp *Importer) flushBatch(
	ctx context.Context,
	jobID string,
	batch []model.ProductCandidate,
	rates model.RateTable,
	processed *int,
) (bool, error) {
	cancelled, err := imp.checkCancelled(ctx, jobID)
	if err != nil {
		return false, err
	}
	if cancelled {
		imp.logger.InfoContext(ctx, "import cancelled by user, stopping", "job_id", jobID)
		imp.cleanup(ctx, jobID)
		return false, nil
	}

	if err = imp.products.InsertBatch(ctx, jobID, batch, rates); err != nil {
		return false, err
	}
	*processed += len(batch)

	if err = imp.jobs.SetProcessedRows(ctx, jobID, *processed); err != nil {
		return false, fmt.Errorf("set processed rows: %w", err)
	}
	return true, nil
}

// checkCancelled re-reads the job's durable status. Only a failure carrying
// the user-cancellation reason stops the run; a genuine concurrent failure is
// surfaced at completion time instead.
func (imp *Importer) checkCancelled(ctx context.Context, jobID string) (bool, error) {
	job, err := imp.jobs.GetByID(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("read job status: %w", err)
	}
	return job.CancelledByUser(), nil
}

// cleanup reverses partial writes for the job. Best-effort: it runs inside an
// already-failing path and must not mask the original error.
func (imp *Importer) cleanup(ctx context.Context, jobID string) {
	deleted, err := imp.products.DeleteByJob(ctx, jobID)
	if err != nil {
		imp.logger.ErrorContext(ctx, "cleanup delete products", "job_id", jobID, "error", err)
		return
	}
	imp.logger.InfoContext(ctx, "cleaned up partial import", "job_id", jobID, "deleted", deleted)

	if err = imp.jobs.ResetProgress(ctx, jobID); err != nil {
		imp.logger.ErrorContext(ctx, "cleanup reset progress", "job_id", jobID, "error", err)
	}
}

// saveRateSnapshot captures the rate table on the job record for
// auditability. Write-once and best-effort; the run proceeds either way.
func (imp *Importer) saveRateSnapshot(ctx context.Context, jobID string, rates model.RateTable) {
	snapshot, err := json.Marshal(rates)
	if err != nil {
		imp.logger.WarnContext(ctx, "marshal rate snapshot", "job_id", jobID, "error", err)
		return
	}
	if err = imp.jobs.SaveRateSnapshot(ctx, jobID, snapshot); err != nil {
		imp.logger.WarnContext(ctx, "save rate snapshot", "job_id", jobID, "error", err)
	}
}
