package importer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewise/catalog-ingest/config"
	"github.com/pricewise/catalog-ingest/internal/data"
	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

type fakeJobStore struct {
	job *model.ImportJob

	getCalls     int
	cancelOnGet  int // when >0, the job reads as cancelled from this GetByID call on
	processing   bool
	totalRows    int
	processedLog []int
	failReason   string
	completed    bool
	resetCalls   int
	snapshot     json.RawMessage
}

func (f *fakeJobStore) GetByID(_ context.Context, id string) (*model.ImportJob, error) {
	if f.job == nil || f.job.ID != id {
		return nil, data.ErrJobNotFound
	}
	f.getCalls++
	if f.cancelOnGet > 0 && f.getCalls >= f.cancelOnGet {
		reason := model.CancelledByUserReason
		cancelled := *f.job
		cancelled.Status = model.JobStatusFailed
		cancelled.FailureReason = &reason
		return &cancelled, nil
	}
	copied := *f.job
	return &copied, nil
}

func (f *fakeJobStore) Create(context.Context, *model.CreateJobRequest) (*model.ImportJob, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeJobStore) MarkProcessing(_ context.Context, _ string) error {
	f.processing = true
	return nil
}

func (f *fakeJobStore) SetTotalRows(_ context.Context, _ string, totalRows int) error {
	f.totalRows = totalRows
	return nil
}

func (f *fakeJobStore) SetProcessedRows(_ context.Context, _ string, processedRows int) error {
	f.processedLog = append(f.processedLog, processedRows)
	return nil
}

func (f *fakeJobStore) SaveRateSnapshot(_ context.Context, _ string, snapshot json.RawMessage) error {
	f.snapshot = snapshot
	return nil
}

func (f *fakeJobStore) MarkFailed(_ context.Context, _ string, reason string) error {
	f.failReason = reason
	return nil
}

func (f *fakeJobStore) CompleteIfNotFailed(context.Context, string) (bool, error) {
	f.completed = true
	return true, nil
}

func (f *fakeJobStore) ListByStatus(context.Context, model.JobStatus) ([]*model.ImportJob, error) {
	return nil, nil
}

func (f *fakeJobStore) ResetProgress(context.Context, string) error {
	f.resetCalls++
	return nil
}

type fakeProductStore struct {
	committed int
	batches   [][]model.ProductCandidate
	insertErr error
	deleted   bool
}

func (f *fakeProductStore) CountByJob(context.Context, string) (int, error) {
	return f.committed, nil
}

func (f *fakeProductStore) InsertBatch(
	_ context.Context, _ string, candidates []model.ProductCandidate, _ model.RateTable,
) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	batch := make([]model.ProductCandidate, len(candidates))
	copy(batch, candidates)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeProductStore) DeleteByJob(context.Context, string) (int64, error) {
	f.deleted = true
	return int64(len(f.batches)), nil
}

type fakeObjectStore struct {
	content string
	err     error
}

func (f *fakeObjectStore) Fetch(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

type fakeRateSource struct {
	table model.RateTable
	err   error
}

func (f *fakeRateSource) FetchRates(context.Context, string) (model.RateTable, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type pipelineFixture struct {
	jobs     *fakeJobStore
	products *fakeProductStore
	objects  *fakeObjectStore
	rates    *fakeRateSource
	imp      *Importer
	tempDir  string
}

func newPipelineFixture(t *testing.T, content string, batchSize int) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		jobs: &fakeJobStore{
			job: &model.ImportJob{
				ID:        "job-1",
				Status:    model.JobStatusPending,
				SourceKey: "uploads/catalog.csv",
			},
		},
		products: &fakeProductStore{},
		objects:  &fakeObjectStore{content: content},
		rates: &fakeRateSource{table: model.RateTable{
			"eur": decimal.NewFromFloat(0.92),
		}},
		tempDir: t.TempDir(),
	}

	imp, err := New(Options{
		Jobs:     f.jobs,
		Products: f.products,
		Objects:  f.objects,
		Rates:    f.rates,
		Importer: config.ImporterConfig{BatchSize: batchSize, TempDir: f.tempDir},
		Currency: config.RatesConfig{BaseCurrency: "USD", CurrencySymbol: "$"},
	})
	require.NoError(t, err)
	f.imp = imp
	return f
}

const fiveRowFile = "name;price;expiration\n" +
	"Alpha;$1.00;2025-01-01\n" +
	"Bravo;$2.00;2025-01-02\n" +
	"Charlie;$3.00;2025-01-03\n" +
	"Delta;$4.00;2025-01-04\n" +
	"Echo;$5.00;2025-01-05\n"

func TestProcessImportHappyPath(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 2)

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.NoError(t, err)

	assert.True(t, f.jobs.processing)
	assert.Equal(t, 5, f.jobs.totalRows)
	assert.Equal(t, []int{2, 4, 5}, f.jobs.processedLog)
	assert.True(t, f.jobs.completed)
	assert.Empty(t, f.jobs.failReason)
	assert.NotEmpty(t, f.jobs.snapshot)

	require.Len(t, f.products.batches, 3)
	assert.Equal(t, "Alpha", f.products.batches[0][0].Name)
	assert.Equal(t, "Echo", f.products.batches[2][0].Name)

	// Staging file is removed after the run regardless of outcome.
	entries, readErr := os.ReadDir(f.tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestProcessImportCountsUnterminatedFinalRow(t *testing.T) {
	content := "name;price;expiration\nAlpha;$1.00;2025-01-01\nBravo;$2.00;2025-01-02"
	f := newPipelineFixture(t, content, 10)

	require.NoError(t, f.imp.ProcessImport(context.Background(), "job-1"))
	assert.Equal(t, 2, f.jobs.totalRows)
	require.Len(t, f.products.batches, 1)
	assert.Len(t, f.products.batches[0], 2)
}

func TestProcessImportHeaderOnlyFileCompletes(t *testing.T) {
	f := newPipelineFixture(t, "name;price;expiration\n", 10)

	require.NoError(t, f.imp.ProcessImport(context.Background(), "job-1"))
	assert.Equal(t, 0, f.jobs.totalRows)
	assert.Empty(t, f.products.batches)
	assert.True(t, f.jobs.completed)
}

func TestProcessImportResumesFromCommittedCount(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 2)
	f.products.committed = 3

	require.NoError(t, f.imp.ProcessImport(context.Background(), "job-1"))

	// Rows 1-3 are already durable; only Delta and Echo get re-inserted.
	require.Len(t, f.products.batches, 1)
	require.Len(t, f.products.batches[0], 2)
	assert.Equal(t, "Delta", f.products.batches[0][0].Name)
	assert.Equal(t, "Echo", f.products.batches[0][1].Name)
	assert.Equal(t, []int{5}, f.jobs.processedLog)
	assert.True(t, f.jobs.completed)
}

func TestProcessImportStopsAtCancellationGate(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 2)
	// First GetByID loads the job; the cancel marker appears at the second
	// gate check.
	f.jobs.cancelOnGet = 3

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.NoError(t, err)

	require.Len(t, f.products.batches, 1)
	assert.True(t, f.products.deleted)
	assert.Equal(t, 1, f.jobs.resetCalls)
	assert.False(t, f.jobs.completed)
	assert.Empty(t, f.jobs.failReason, "cancellation must not overwrite the cancel marker")
}

func TestProcessImportCorruptRowFailsRun(t *testing.T) {
	content := "name;price;expiration\n" +
		"Alpha;$1.00;2025-01-01\n" +
		"Bravo;2.00;2025-01-02\n"
	f := newPipelineFixture(t, content, 10)

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.Error(t, err)
	assert.Equal(t, "corrupted data: missing currency symbol", err.Error())
	assert.Equal(t, "corrupted data: missing currency symbol", f.jobs.failReason)
	assert.True(t, f.products.deleted)
	assert.Equal(t, 1, f.jobs.resetCalls)
	assert.False(t, f.jobs.completed)
}

func TestProcessImportBadHeaderFailsRun(t *testing.T) {
	f := newPipelineFixture(t, "price;name;expiration\nAlpha;$1.00;2025-01-01\n", 10)

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.Error(t, err)
	assert.Equal(t,
		`invalid header: expected "name;price;expiration", got "price;name;expiration"`,
		err.Error())
	assert.Equal(t, err.Error(), f.jobs.failReason)
}

func TestProcessImportRateFetchFailureIsFatal(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 2)
	f.rates.err = errors.New("failed to fetch current exchange rates: unexpected status 503")

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch current exchange rates")
	assert.Equal(t, err.Error(), f.jobs.failReason)
	assert.Empty(t, f.products.batches)
}

func TestProcessImportInsertFailureCleansUp(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 2)
	f.products.insertErr = errors.New("insert product batch: connection reset")

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, f.products.deleted)
	assert.Equal(t, err.Error(), f.jobs.failReason)
}

func TestProcessImportUnknownJobIsNoOp(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 2)

	err := f.imp.ProcessImport(context.Background(), "missing-job")
	require.NoError(t, err)
	assert.False(t, f.jobs.processing)
	assert.Empty(t, f.products.batches)
}

func TestProcessImportShutdownLeavesJobProcessing(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 2)
	f.products.insertErr = context.Canceled

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.ErrorIs(t, err, context.Canceled)

	// Interrupted runs are the recovery scanner's job: no cleanup, no failure.
	assert.False(t, f.products.deleted)
	assert.Empty(t, f.jobs.failReason)
	assert.False(t, f.jobs.completed)
}

func TestProcessImportMissingObjectFailsRun(t *testing.T) {
	f := newPipelineFixture(t, "", 2)
	f.objects.err = errors.New("stat object \"uploads/catalog.csv\": key does not exist")

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, f.jobs.failReason, "key does not exist")
}

func TestProcessImportSnapshotHoldsFetchedRates(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 10)

	require.NoError(t, f.imp.ProcessImport(context.Background(), "job-1"))

	var snapshot map[string]decimal.Decimal
	require.NoError(t, json.Unmarshal(f.jobs.snapshot, &snapshot))
	rate, ok := snapshot["eur"]
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromFloat(0.92)))
}

func TestLineCounter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"single line no newline", "abc", 1},
		{"single line with newline", "abc\n", 1},
		{"two lines", "abc\ndef\n", 2},
		{"two lines unterminated", "abc\ndef", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &lineCounter{}
			_, err := c.Write([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Lines())
		})
	}
}

func TestStagingFileRemovedOnFailure(t *testing.T) {
	f := newPipelineFixture(t, "garbage header\nrow\n", 2)

	err := f.imp.ProcessImport(context.Background(), "job-1")
	require.Error(t, err)

	entries, readErr := os.ReadDir(f.tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "staging file must be removed even on failure")
}

func TestStagingPathUsesJobID(t *testing.T) {
	f := newPipelineFixture(t, fiveRowFile, 10)
	expected := filepath.Join(f.tempDir, "import-job-1.csv")

	// Observe the staging file mid-run via the object store read.
	f.objects.err = nil
	require.NoError(t, f.imp.ProcessImport(context.Background(), "job-1"))

	_, statErr := os.Stat(expected)
	assert.True(t, os.IsNotExist(statErr))
}
