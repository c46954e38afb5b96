// Package queue wraps the asynq work queue for import job scheduling.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeImport identifies the import-processing task.
const TaskTypeImport = "import:process"

// ImportPayload is the task payload carried through the queue. The task id is
// always the job id, which doubles as the deduplication key.
type ImportPayload struct {
	JobID string `json:"job_id"`
}

// NewImportTask builds the asynq task for a job id.
func NewImportTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImportPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("marshal import payload: %w", err)
	}
	return asynq.NewTask(TaskTypeImport, payload), nil
}

// ParseImportTask extracts the job id from a task payload.
func ParseImportTask(t *asynq.Task) (string, error) {
	var p ImportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return "", fmt.Errorf("unmarshal import payload: %w", err)
	}
	if p.JobID == "" {
		return "", fmt.Errorf("import payload missing job_id")
	}
	return p.JobID, nil
}
