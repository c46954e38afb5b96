// Package model defines the core data types used throughout the catalog ingestion system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of an import job.
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a job is currently being processed.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed or was cancelled.
	JobStatusFailed JobStatus = "failed"
)

// CancelledByUserReason is the failure reason recorded for a user-initiated
// cancellation. The pipeline's cancellation gate compares against this exact
// string to distinguish a cancel from a genuine processing failure.
const CancelledByUserReason = "Cancelled by user"

// MaxFailureReasonLen bounds the failure_reason column.
const MaxFailureReasonLen = 255

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusProcessing ||
		s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true once a job can no longer change status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses can be parsed
// from flags and environment variables.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", v)
	}
	*s = v
	return nil
}

// ImportJob is the durable record tracking one ingestion run.
type ImportJob struct {
	ID            string          `json:"id"                       db:"id"`
	Status        JobStatus       `json:"status"                   db:"status"`
	TotalRows     int             `json:"total_rows"               db:"total_rows"`
	ProcessedRows int             `json:"processed_rows"           db:"processed_rows"`
	FailureReason *string         `json:"failure_reason,omitempty" db:"failure_reason"`
	SourceKey     string          `json:"source_key"               db:"source_key"`
	RateSnapshot  json.RawMessage `json:"rate_snapshot,omitempty"  db:"rate_snapshot"`
	CreatedAt     time.Time       `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"               db:"updated_at"`
}

// CancelledByUser reports whether the job carries a user-initiated
// cancellation marker.
func (j *ImportJob) CancelledByUser() bool {
	return j.Status == JobStatusFailed &&
		j.FailureReason != nil && *j.FailureReason == CancelledByUserReason
}

// CreateJobRequest represents a request to create a new import job.
type CreateJobRequest struct {
	SourceKey string `json:"source_key"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.SourceKey) == "" {
		return errors.New("source key is required")
	}
	return nil
}

// TruncateFailureReason bounds a failure reason to the column length.
func TruncateFailureReason(reason string) string {
	if len(reason) > MaxFailureReasonLen {
		return reason[:MaxFailureReasonLen]
	}
	return reason
}
