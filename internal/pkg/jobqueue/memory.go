package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// MemoryBroker is an in-process Broker for deployments without a Redis
// broker and for deterministic tests. The buffered channel hands each
// job to exactly one worker, matching the at-most-once consumption the
// Redis queue guarantees.
type MemoryBroker struct {
	processor Processor
	workers   int

	mu      sync.RWMutex
	jobs    map[string]*Job
	pending chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewMemoryBroker creates an in-memory broker feeding the given processor
func NewMemoryBroker(workers int, processor Processor) *MemoryBroker {
	if workers <= 0 {
		workers = 3
	}
	return &MemoryBroker{
		processor: processor,
		workers:   workers,
		jobs:      make(map[string]*Job),
		pending:   make(chan string, 1024),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the worker goroutines
func (b *MemoryBroker) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return
	}
	b.running = true
	log.Infof("[MemoryBroker] Starting %d workers", b.workers)

	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// Stop stops the worker goroutines
func (b *MemoryBroker) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	b.mu.Unlock()

	b.wg.Wait()
	log.Info("[MemoryBroker] All workers stopped")
}

func (b *MemoryBroker) worker() {
	defer b.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-b.stopCh:
			return
		case jobID := <-b.pending:
			job := b.snapshot(jobID)
			if job == nil {
				continue
			}

			job.MarkAsProcessing()
			b.store(job)

			result, err := b.processor.ProcessJob(ctx, job)

			// carry the stored progress forward into the terminal write
			if current := b.snapshot(job.ID); current != nil {
				job.Progress = current.Progress
			}

			if err != nil {
				log.Errorf("[MemoryBroker] Job %s failed: %v", job.ID, err)
				job.MarkAsFailed(err.Error())
				if fr, ok := b.processor.(FailureRecorder); ok {
					fr.RecordFailure(ctx, job)
				}
			} else {
				job.MarkAsCompleted(result)
			}
			b.store(job)
		}
	}
}

// Enqueue adds a new tool job and returns its handle
func (b *MemoryBroker) Enqueue(ctx context.Context, payload ToolJobPayload) (*Job, error) {
	job := &Job{
		ID:         uuid.New().String(),
		Status:     JobStatusPending,
		Payload:    payload.ToMap(),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}

	b.store(job)
	select {
	case b.pending <- job.ID:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	snapshot := *job
	return &snapshot, nil
}

// Job retrieves a job by ID. Unknown handles return ErrJobNotFound.
func (b *MemoryBroker) Job(ctx context.Context, jobID string) (*Job, error) {
	job := b.snapshot(jobID)
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// UpdateProgress stores a progress indicator (0-100) on the job record
func (b *MemoryBroker) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Progress = progress
	job.UpdatedAt = time.Now()
	return nil
}

// GetJobStats counts stored jobs per status
func (b *MemoryBroker) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := make(map[JobStatus]int64)
	for _, job := range b.jobs {
		stats[job.Status]++
	}
	return stats, nil
}

// GetQueueSize returns the number of jobs waiting for a worker
func (b *MemoryBroker) GetQueueSize(ctx context.Context) (int64, error) {
	return int64(len(b.pending)), nil
}

// GetProcessingSize returns the number of jobs currently in a worker
func (b *MemoryBroker) GetProcessingSize(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var n int64
	for _, job := range b.jobs {
		if job.Status == JobStatusProcessing {
			n++
		}
	}
	return n, nil
}

// store saves a copy of the job so callers cannot mutate broker state
func (b *MemoryBroker) store(job *Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *job
	b.jobs[job.ID] = &copied
}

// snapshot returns a copy of the stored job, or nil when absent
func (b *MemoryBroker) snapshot(jobID string) *Job {
	b.mu.RLock()
	defer b.mu.RUnlock()
	job, ok := b.jobs[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}
