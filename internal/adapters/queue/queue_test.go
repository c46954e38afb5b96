package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportTaskRoundTrip(t *testing.T) {
	task, err := NewImportTask("job-123")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeImport, task.Type())

	jobID, err := ParseImportTask(task)
	require.NoError(t, err)
	assert.Equal(t, "job-123", jobID)
}

func TestParseImportTaskRejectsEmptyJobID(t *testing.T) {
	task := asynq.NewTask(TaskTypeImport, []byte(`{}`))
	_, err := ParseImportTask(task)
	require.Error(t, err)
}

func TestParseImportTaskRejectsMalformedPayload(t *testing.T) {
	task := asynq.NewTask(TaskTypeImport, []byte(`not-json`))
	_, err := ParseImportTask(task)
	require.Error(t, err)
}

func newTestEnqueuer(t *testing.T) (*Enqueuer, *asynq.Inspector) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisOpt := asynq.RedisClientOpt{Addr: mr.Addr()}

	e := NewEnqueuer(redisOpt, EnqueuerOptions{Queue: "imports"})
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Logf("close enqueuer: %v", err)
		}
	})

	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() {
		if err := inspector.Close(); err != nil {
			t.Logf("close inspector: %v", err)
		}
	})
	return e, inspector
}

func TestEnqueueImport(t *testing.T) {
	e, inspector := newTestEnqueuer(t)

	require.NoError(t, e.EnqueueImport(context.Background(), "job-1"))

	tasks, err := inspector.ListPendingTasks("imports")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "job-1", tasks[0].ID)
	assert.Equal(t, TaskTypeImport, tasks[0].Type)
	assert.Equal(t, 0, tasks[0].MaxRetry)
}

func TestEnqueueImportDuplicateIsNoOp(t *testing.T) {
	e, inspector := newTestEnqueuer(t)

	require.NoError(t, e.EnqueueImport(context.Background(), "job-1"))
	// Second submission of the same job id collapses silently.
	require.NoError(t, e.EnqueueImport(context.Background(), "job-1"))

	tasks, err := inspector.ListPendingTasks("imports")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestEnqueueImportDistinctJobsQueueSeparately(t *testing.T) {
	e, inspector := newTestEnqueuer(t)

	require.NoError(t, e.EnqueueImport(context.Background(), "job-1"))
	require.NoError(t, e.EnqueueImport(context.Background(), "job-2"))

	tasks, err := inspector.ListPendingTasks("imports")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}
