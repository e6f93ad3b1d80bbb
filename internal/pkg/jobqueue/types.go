package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/swifttools/SwiftTools/app/models"
)

// JobStatus defines the broker-native status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// PublicStatus translates the broker-native lifecycle into the four-state
// vocabulary shared with the usage ledger.
func (s JobStatus) PublicStatus() string {
	switch s {
	case JobStatusPending, JobStatusRetrying:
		return models.UsageStatusQueued
	case JobStatusProcessing:
		return models.UsageStatusProcessing
	case JobStatusCompleted:
		return models.UsageStatusCompleted
	case JobStatusFailed:
		return models.UsageStatusFailed
	default:
		return models.UsageStatusQueued
	}
}

// ErrJobNotFound is returned when a job handle is unknown to the broker.
// Stale or mistyped handles are expected; callers report "not_found"
// rather than an error.
var ErrJobNotFound = errors.New("job not found")

// JobResult is the stored return value of a finished job. It mirrors the
// final submission response shape.
type JobResult struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
}

// Job represents a background tool-processing job
type Job struct {
	ID          string                 `json:"id"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	Progress    int                    `json:"progress"`
	ReturnValue *JobResult             `json:"return_value,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ToolJobPayload carries everything the dispatcher needs to run one tool
type ToolJobPayload struct {
	Tool         string            `json:"tool"`
	FilePath     string            `json:"file_path"`
	OriginalName string            `json:"original_name"`
	MimeType     string            `json:"mime_type"`
	UserID       uint              `json:"user_id"`
	UsageID      uint              `json:"usage_id"`
	Options      map[string]string `json:"options"`
}

// ToMap converts the payload to a map for storage
func (p ToolJobPayload) ToMap() map[string]interface{} {
	options := make(map[string]interface{}, len(p.Options))
	for k, v := range p.Options {
		options[k] = v
	}
	return map[string]interface{}{
		"tool":          p.Tool,
		"file_path":     p.FilePath,
		"original_name": p.OriginalName,
		"mime_type":     p.MimeType,
		"user_id":       p.UserID,
		"usage_id":      p.UsageID,
		"options":       options,
	}
}

// ToolJobPayloadFromMap creates a payload from a map
func ToolJobPayloadFromMap(data map[string]interface{}) (*ToolJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ToolJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// Broker is the durable work queue consumed by the submission and status
// endpoints. Implementations guarantee at-most-one active consumer per job.
type Broker interface {
	Enqueue(ctx context.Context, payload ToolJobPayload) (*Job, error)
	Job(ctx context.Context, jobID string) (*Job, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) error
}

// Processor is the worker-side consumer invoked for each dequeued job
type Processor interface {
	ProcessJob(ctx context.Context, job *Job) (*JobResult, error)
}

// FailureRecorder is implemented by processors that keep an external
// record of job outcomes. Brokers call it exactly once per job, after
// the error is permanent or retries are exhausted, never on an attempt
// that may still be retried.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, job *Job)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted(result *JobResult) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.Progress = 100
	j.ReturnValue = result
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
