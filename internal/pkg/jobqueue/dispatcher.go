package jobqueue

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/swifttools/SwiftTools/app/models"
	"github.com/swifttools/SwiftTools/app/repository"
	"github.com/swifttools/SwiftTools/internal/pkg/tools"
)

// DispatcherConfig carries the settings the worker side needs. It is
// built once in main and passed in, never read from the environment here.
type DispatcherConfig struct {
	// PublicBaseURL is the externally reachable base used to compose
	// result links, e.g. "https://api.swifttools.io".
	PublicBaseURL string
}

// Dispatcher routes dequeued jobs to the tool handler family selected by
// the tool name and mirrors every transition into the usage ledger.
type Dispatcher struct {
	cfg      DispatcherConfig
	usage    repository.UsageRepository
	handlers map[tools.Family]tools.Handler
	broker   Broker
}

// NewDispatcher creates a dispatcher over the given handler families.
// The broker reference is optional and only used for progress updates.
func NewDispatcher(cfg DispatcherConfig, usage repository.UsageRepository, handlers map[tools.Family]tools.Handler) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		usage:    usage,
		handlers: handlers,
	}
}

// SetBroker wires the broker used for progress reporting. Set after
// construction because broker and dispatcher reference each other.
func (d *Dispatcher) SetBroker(broker Broker) {
	d.broker = broker
}

// ProcessJob implements Processor. Ledger transitions within one job are
// strictly ordered: processing is written before the handler runs, the
// terminal state after it returns. Errors are re-raised so the broker's
// retry policy decides what happens next; the terminal failed write
// happens in RecordFailure once the broker gives up, so a retry that
// later succeeds can still complete the record.
func (d *Dispatcher) ProcessJob(ctx context.Context, job *Job) (*JobResult, error) {
	payload, err := ToolJobPayloadFromMap(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid job payload: %w", err)
	}

	// Advisory ledger update; processing proceeds even if it fails
	if err := d.usage.UpdateStatus(payload.UsageID, models.UsageStatusProcessing); err != nil {
		log.Warnf("[Dispatcher] Failed to mark usage record %d as processing: %v", payload.UsageID, err)
	}
	d.reportProgress(ctx, job.ID, 10)

	family, err := tools.FamilyFor(payload.Tool)
	if err != nil {
		return nil, err
	}
	handler, ok := d.handlers[family]
	if !ok {
		return nil, fmt.Errorf("%w: no handler for family %s", tools.ErrUnknownTool, family)
	}

	outputPath, err := handler.Process(ctx, tools.Request{
		Tool:      payload.Tool,
		InputPath: payload.FilePath,
		Options:   tools.Options(payload.Options),
	})
	if err != nil {
		return nil, err
	}
	d.reportProgress(ctx, job.ID, 90)

	resultURL := d.resultURL(outputPath)
	if err := d.usage.SetCompleted(payload.UsageID, resultURL); err != nil {
		log.Errorf("[Dispatcher] Failed to mark usage record %d as completed: %v", payload.UsageID, err)
	}

	log.Infof("[Dispatcher] Job %s (tool: %s) completed, result %s", job.ID, payload.Tool, resultURL)
	return &JobResult{
		Status:    models.UsageStatusCompleted,
		ResultURL: resultURL,
	}, nil
}

// resultURL composes the public link for an output file. The output
// directory is served read-only under /uploads.
func (d *Dispatcher) resultURL(outputPath string) string {
	base := strings.TrimRight(d.cfg.PublicBaseURL, "/")
	return base + "/uploads/" + filepath.Base(outputPath)
}

// RecordFailure implements FailureRecorder: the broker invokes it once a
// job has permanently failed. Writing failed only here keeps the ledger
// open for a retry that still completes.
func (d *Dispatcher) RecordFailure(ctx context.Context, job *Job) {
	payload, err := ToolJobPayloadFromMap(job.Payload)
	if err != nil {
		log.Errorf("[Dispatcher] Cannot record failure for job %s: %v", job.ID, err)
		return
	}
	d.markFailed(payload.UsageID)
}

// markFailed records the terminal failed state, best-effort
func (d *Dispatcher) markFailed(usageID uint) {
	if err := d.usage.UpdateStatus(usageID, models.UsageStatusFailed); err != nil {
		log.Errorf("[Dispatcher] Failed to mark usage record %d as failed: %v", usageID, err)
	}
}

// reportProgress updates the broker-side progress indicator, best-effort
func (d *Dispatcher) reportProgress(ctx context.Context, jobID string, progress int) {
	if d.broker == nil {
		return
	}
	if err := d.broker.UpdateProgress(ctx, jobID, progress); err != nil {
		log.Debugf("[Dispatcher] Failed to update progress for job %s: %v", jobID, err)
	}
}
