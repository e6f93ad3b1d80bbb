package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/swifttools/SwiftTools/internal/pkg/jobqueue"
)

// QueueInspector is the stats surface both broker implementations expose
type QueueInspector interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// AdminController serves operator-only endpoints
type AdminController struct {
	inspector QueueInspector
}

func NewAdminController(inspector QueueInspector) *AdminController {
	return &AdminController{inspector: inspector}
}

// HandleQueueStats reports per-status job counts and current queue depths
func (ac *AdminController) HandleQueueStats(c *fiber.Ctx) error {
	if ac.inspector == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Queue stats are not available"})
	}

	stats, err := ac.inspector.GetJobStats(c.Context())
	if err != nil {
		fiberlog.Errorf("[Admin] Queue stats lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Queue stats lookup failed"})
	}
	queued, err := ac.inspector.GetQueueSize(c.Context())
	if err != nil {
		fiberlog.Errorf("[Admin] Queue size lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Queue stats lookup failed"})
	}
	processing, err := ac.inspector.GetProcessingSize(c.Context())
	if err != nil {
		fiberlog.Errorf("[Admin] Processing size lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Queue stats lookup failed"})
	}

	return c.JSON(fiber.Map{
		"jobs":            stats,
		"queue_size":      queued,
		"processing_size": processing,
	})
}
