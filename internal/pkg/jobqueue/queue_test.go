package jobqueue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swifttools/SwiftTools/internal/pkg/tools"
)

func TestQueueConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestIsPermanentJobError(t *testing.T) {
	assert.True(t, isPermanentJobError(tools.ErrUnknownTool))
	assert.True(t, isPermanentJobError(tools.ErrInputMissing))
	assert.True(t, isPermanentJobError(fmt.Errorf("wrapped: %w", tools.ErrUnknownTool)))

	assert.False(t, isPermanentJobError(errors.New("connection reset")))
	assert.False(t, isPermanentJobError(nil))
}

func TestNewQueueDefaultsWorkerCount(t *testing.T) {
	q := NewQueue(0, nil)
	assert.Equal(t, 3, q.workers)

	q = NewQueue(-5, nil)
	assert.Equal(t, 3, q.workers)

	q = NewQueue(8, nil)
	assert.Equal(t, 8, q.workers)
}
