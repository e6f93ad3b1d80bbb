package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swifttools/SwiftTools/app/models"
)

func TestJobStatusPublicStatus(t *testing.T) {
	assert.Equal(t, models.UsageStatusQueued, JobStatusPending.PublicStatus())
	assert.Equal(t, models.UsageStatusQueued, JobStatusRetrying.PublicStatus())
	assert.Equal(t, models.UsageStatusProcessing, JobStatusProcessing.PublicStatus())
	assert.Equal(t, models.UsageStatusCompleted, JobStatusCompleted.PublicStatus())
	assert.Equal(t, models.UsageStatusFailed, JobStatusFailed.PublicStatus())
	assert.Equal(t, models.UsageStatusQueued, JobStatus("bogus").PublicStatus())
}

func TestToolJobPayloadRoundTrip(t *testing.T) {
	payload := ToolJobPayload{
		Tool:         "image-resizer",
		FilePath:     "/tmp/uploads/abc_input.png",
		OriginalName: "input.png",
		MimeType:     "image/png",
		UserID:       7,
		UsageID:      42,
		Options:      map[string]string{"width": "200"},
	}

	restored, err := ToolJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)

	assert.Equal(t, payload.Tool, restored.Tool)
	assert.Equal(t, payload.FilePath, restored.FilePath)
	assert.Equal(t, payload.OriginalName, restored.OriginalName)
	assert.Equal(t, payload.MimeType, restored.MimeType)
	assert.Equal(t, payload.UserID, restored.UserID)
	assert.Equal(t, payload.UsageID, restored.UsageID)
	assert.Equal(t, payload.Options, restored.Options)
}

func TestJobLifecycleMarkers(t *testing.T) {
	job := &Job{ID: "j1", Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsFailed("boom again")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.IsRetryable())

	result := &JobResult{Status: models.UsageStatusCompleted, ResultURL: "http://example.com/uploads/out.png"}
	job.MarkAsCompleted(result)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, result, job.ReturnValue)
	assert.Empty(t, job.ErrorMsg)
	assert.NotNil(t, job.CompletedAt)
}
