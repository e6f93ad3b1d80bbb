package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swifttools/SwiftTools/app/models"
	"github.com/swifttools/SwiftTools/internal/pkg/tools"
)

// handlerFunc adapts a function to the tools.Handler interface
type handlerFunc func(ctx context.Context, req tools.Request) (string, error)

func (f handlerFunc) Process(ctx context.Context, req tools.Request) (string, error) {
	return f(ctx, req)
}

// ledgerStub records transitions in memory while enforcing the
// forward-only lifecycle, standing in for the database-backed repository.
type ledgerStub struct {
	mu      sync.Mutex
	status  map[uint]string
	results map[uint]string
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{status: map[uint]string{}, results: map[uint]string{}}
}

func (l *ledgerStub) Create(record *models.UsageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status[record.ID] = record.Status
	return nil
}

func (l *ledgerStub) GetByID(id uint) (*models.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	status, ok := l.status[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return &models.UsageRecord{ID: id, Status: status, ResultURL: l.results[id]}, nil
}

func (l *ledgerStub) GetByUUID(uuid string) (*models.UsageRecord, error) {
	return nil, errors.New("not implemented")
}

func (l *ledgerStub) GetByUserID(userID uint, offset, limit int) ([]models.UsageRecord, error) {
	return nil, nil
}

func (l *ledgerStub) UpdateStatus(id uint, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.status[id]
	if !ok {
		return errors.New("record not found")
	}
	if !models.CanTransitionUsageStatus(current, status) {
		return fmt.Errorf("invalid transition %s -> %s", current, status)
	}
	l.status[id] = status
	return nil
}

func (l *ledgerStub) SetCompleted(id uint, resultURL string) error {
	if err := l.UpdateStatus(id, models.UsageStatusCompleted); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[id] = resultURL
	return nil
}

func (l *ledgerStub) CountByUserID(userID uint) (int64, error) {
	return int64(len(l.status)), nil
}

func (l *ledgerStub) statusOf(id uint) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status[id]
}

func (l *ledgerStub) resultOf(id uint) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.results[id]
}

func newToolJob(t *testing.T, tool string, usageID uint) *Job {
	t.Helper()
	payload := ToolJobPayload{
		Tool:         tool,
		FilePath:     "/tmp/uploads/in.png",
		OriginalName: "in.png",
		UserID:       1,
		UsageID:      usageID,
		Options:      map[string]string{"width": "100"},
	}
	return &Job{ID: "job-1", Status: JobStatusPending, Payload: payload.ToMap()}
}

func TestDispatcherCompletesJob(t *testing.T) {
	ledger := newLedgerStub()
	require.NoError(t, ledger.Create(&models.UsageRecord{ID: 42, Status: models.UsageStatusQueued}))

	dispatcher := NewDispatcher(DispatcherConfig{PublicBaseURL: "https://api.example.com/"}, ledger, map[tools.Family]tools.Handler{
		tools.FamilyImage: handlerFunc(func(ctx context.Context, req tools.Request) (string, error) {
			assert.Equal(t, "image-resizer", req.Tool)
			assert.Equal(t, "100", req.Options.String("width", ""))
			return "/tmp/uploads/out.png", nil
		}),
	})

	result, err := dispatcher.ProcessJob(context.Background(), newToolJob(t, "image-resizer", 42))
	require.NoError(t, err)

	assert.Equal(t, models.UsageStatusCompleted, result.Status)
	assert.Equal(t, "https://api.example.com/uploads/out.png", result.ResultURL)
	assert.Equal(t, models.UsageStatusCompleted, ledger.statusOf(42))
	assert.Equal(t, "https://api.example.com/uploads/out.png", ledger.resultOf(42))
}

func TestDispatcherHandlerFailureLeavesLedgerOpenForRetry(t *testing.T) {
	ledger := newLedgerStub()
	require.NoError(t, ledger.Create(&models.UsageRecord{ID: 7, Status: models.UsageStatusQueued}))

	handlerErr := errors.New("decode failed")
	dispatcher := NewDispatcher(DispatcherConfig{PublicBaseURL: "https://api.example.com"}, ledger, map[tools.Family]tools.Handler{
		tools.FamilyImage: handlerFunc(func(ctx context.Context, req tools.Request) (string, error) {
			return "", handlerErr
		}),
	})

	job := newToolJob(t, "image-resizer", 7)
	_, err := dispatcher.ProcessJob(context.Background(), job)
	assert.ErrorIs(t, err, handlerErr)

	// not terminal yet: the broker may still retry this job
	assert.Equal(t, models.UsageStatusProcessing, ledger.statusOf(7))

	// once the broker gives up, the failure lands in the ledger
	dispatcher.RecordFailure(context.Background(), job)
	assert.Equal(t, models.UsageStatusFailed, ledger.statusOf(7))
}

func TestDispatcherRetryAfterTransientFailureCompletes(t *testing.T) {
	ledger := newLedgerStub()
	require.NoError(t, ledger.Create(&models.UsageRecord{ID: 8, Status: models.UsageStatusQueued}))

	attempts := 0
	dispatcher := NewDispatcher(DispatcherConfig{PublicBaseURL: "https://api.example.com"}, ledger, map[tools.Family]tools.Handler{
		tools.FamilyImage: handlerFunc(func(ctx context.Context, req tools.Request) (string, error) {
			attempts++
			if attempts == 1 {
				return "", errors.New("transient io error")
			}
			return "/tmp/uploads/out.png", nil
		}),
	})

	job := newToolJob(t, "image-resizer", 8)
	_, err := dispatcher.ProcessJob(context.Background(), job)
	require.Error(t, err)

	result, err := dispatcher.ProcessJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.UsageStatusCompleted, result.Status)
	assert.Equal(t, models.UsageStatusCompleted, ledger.statusOf(8))
	assert.Equal(t, "https://api.example.com/uploads/out.png", ledger.resultOf(8))
}

func TestDispatcherUnknownToolNeverInvokesHandler(t *testing.T) {
	ledger := newLedgerStub()
	require.NoError(t, ledger.Create(&models.UsageRecord{ID: 9, Status: models.UsageStatusQueued}))

	invoked := false
	dispatcher := NewDispatcher(DispatcherConfig{PublicBaseURL: "https://api.example.com"}, ledger, map[tools.Family]tools.Handler{
		tools.FamilyImage: handlerFunc(func(ctx context.Context, req tools.Request) (string, error) {
			invoked = true
			return "/tmp/out.png", nil
		}),
	})

	job := newToolJob(t, "video-transcoder", 9)
	_, err := dispatcher.ProcessJob(context.Background(), job)
	assert.ErrorIs(t, err, tools.ErrUnknownTool)
	assert.False(t, invoked)

	dispatcher.RecordFailure(context.Background(), job)
	assert.Equal(t, models.UsageStatusFailed, ledger.statusOf(9))
}

func TestDispatcherMissingFamilyHandler(t *testing.T) {
	ledger := newLedgerStub()
	require.NoError(t, ledger.Create(&models.UsageRecord{ID: 3, Status: models.UsageStatusQueued}))

	dispatcher := NewDispatcher(DispatcherConfig{PublicBaseURL: "https://api.example.com"}, ledger, map[tools.Family]tools.Handler{})

	job := newToolJob(t, "pdf-compressor", 3)
	_, err := dispatcher.ProcessJob(context.Background(), job)
	assert.ErrorIs(t, err, tools.ErrUnknownTool)

	dispatcher.RecordFailure(context.Background(), job)
	assert.Equal(t, models.UsageStatusFailed, ledger.statusOf(3))
}

func TestDispatcherThroughMemoryBroker(t *testing.T) {
	ledger := newLedgerStub()
	require.NoError(t, ledger.Create(&models.UsageRecord{ID: 11, Status: models.UsageStatusQueued}))

	dispatcher := NewDispatcher(DispatcherConfig{PublicBaseURL: "https://api.example.com"}, ledger, map[tools.Family]tools.Handler{
		tools.FamilyImage: handlerFunc(func(ctx context.Context, req tools.Request) (string, error) {
			return "/tmp/uploads/final.png", nil
		}),
	})

	broker := NewMemoryBroker(1, dispatcher)
	dispatcher.SetBroker(broker)
	broker.Start()
	defer broker.Stop()

	job, err := broker.Enqueue(context.Background(), ToolJobPayload{
		Tool:     "image-resizer",
		FilePath: "/tmp/uploads/in.png",
		UserID:   1,
		UsageID:  11,
		Options:  map[string]string{"width": "50"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := broker.Job(context.Background(), job.ID)
		return err == nil && got.Status == JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, err := broker.Job(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReturnValue)
	assert.Equal(t, "https://api.example.com/uploads/final.png", got.ReturnValue.ResultURL)
	assert.Equal(t, models.UsageStatusCompleted, ledger.statusOf(11))
}
