package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/swifttools/SwiftTools/app/models"
	"github.com/swifttools/SwiftTools/app/repository"
	"github.com/swifttools/SwiftTools/internal/pkg/credits"
	"github.com/swifttools/SwiftTools/internal/pkg/jobqueue"
	"github.com/swifttools/SwiftTools/internal/pkg/tools"
	"github.com/swifttools/SwiftTools/internal/pkg/upload"
	"github.com/swifttools/SwiftTools/internal/pkg/usercontext"
)

// ToolsConfig carries the submission-side settings, built once in main.
type ToolsConfig struct {
	UploadDir     string
	PublicBaseURL string
}

// ToolsController serves the processing pipeline endpoints: submission,
// status polling and the untracked direct (synchronous) path.
type ToolsController struct {
	cfg      ToolsConfig
	credits  credits.Gate
	usage    repository.UsageRepository
	broker   jobqueue.Broker
	handlers map[tools.Family]tools.Handler
}

// NewToolsController wires the submission pipeline dependencies
func NewToolsController(cfg ToolsConfig, gate credits.Gate, usage repository.UsageRepository, broker jobqueue.Broker, handlers map[tools.Family]tools.Handler) *ToolsController {
	return &ToolsController{
		cfg:      cfg,
		credits:  gate,
		usage:    usage,
		broker:   broker,
		handlers: handlers,
	}
}

// HandleProcess accepts an upload plus tool identifier, deducts one
// credit, writes the ledger row, enqueues the job and returns the
// handles immediately. Ordering is part of the contract: a rejected
// deduction must leave no file, no ledger row and no job behind.
func (tc *ToolsController) HandleProcess(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "No file uploaded"})
	}

	toolName := strings.TrimSpace(c.FormValue("tool"))
	if toolName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing tool identifier"})
	}

	mimeType, err := tc.sniffUpload(file, toolName)
	if err != nil {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported_media_type", "message": err.Error()})
	}

	// Credit deduction runs before any other side effect, so a failed
	// payment never results in queued work
	if _, err := tc.credits.Deduct(c.Context(), userCtx.UserID, 1); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "insufficient_credits", "message": "Not enough credits for this operation"})
		}
		fiberlog.Errorf("[Tools] Credit deduction failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Credit deduction failed"})
	}

	savedName := uuid.New().String() + "_" + filepath.Base(file.Filename)
	savePath := filepath.Join(tc.cfg.UploadDir, savedName)
	if err := os.MkdirAll(tc.cfg.UploadDir, 0755); err != nil {
		fiberlog.Errorf("[Tools] Failed to create upload directory: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store upload"})
	}
	if err := c.SaveFile(file, savePath); err != nil {
		fiberlog.Errorf("[Tools] Failed to save upload: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store upload"})
	}

	options := collectOptions(c)
	meta, err := models.NewUsageMeta(file.Filename, options)
	if err != nil {
		fiberlog.Errorf("[Tools] Failed to build usage meta: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record usage"})
	}

	record := &models.UsageRecord{
		UUID:     uuid.New().String(),
		UserID:   userCtx.UserID,
		ToolName: toolName,
		Status:   models.UsageStatusQueued,
		Meta:     meta,
	}
	if err := tc.usage.Create(record); err != nil {
		fiberlog.Errorf("[Tools] Failed to create usage record: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record usage"})
	}

	job, err := tc.broker.Enqueue(c.Context(), jobqueue.ToolJobPayload{
		Tool:         toolName,
		FilePath:     savePath,
		OriginalName: file.Filename,
		MimeType:     mimeType,
		UserID:       userCtx.UserID,
		UsageID:      record.ID,
		Options:      options,
	})
	if err != nil {
		// The ledger row stays behind in queued state; no reconciliation
		// exists for this today
		fiberlog.Errorf("[Tools] Failed to enqueue job for usage record %d: %v", record.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enqueue job"})
	}

	return c.JSON(fiber.Map{
		"job_id":    job.ID,
		"usage_id":  record.ID,
		"status":    models.UsageStatusQueued,
		"file_name": savedName,
	})
}

// HandleStatus reports the lifecycle state for a job handle. Unknown
// handles are a normal response, not an error; polling has no side
// effects.
func (tc *ToolsController) HandleStatus(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing job id"})
	}

	job, err := tc.broker.Job(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobqueue.ErrJobNotFound) {
			return c.JSON(fiber.Map{"id": jobID, "status": "not_found"})
		}
		fiberlog.Errorf("[Tools] Status lookup failed for job %s: %v", jobID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Status lookup failed"})
	}

	return c.JSON(fiber.Map{
		"id":       job.ID,
		"status":   job.Status.PublicStatus(),
		"progress": job.Progress,
		"result":   job.ReturnValue,
	})
}

// HandleProcessDirect is the untracked direct processing path for
// deployments without a broker: same tool dispatch, inline in the
// request, streaming the transformed bytes back. Deliberately writes no
// usage record and deducts no credits.
func (tc *ToolsController) HandleProcessDirect(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "No file uploaded"})
	}

	toolName := strings.TrimSpace(c.FormValue("tool"))
	family, err := tools.FamilyFor(toolName)
	if err != nil || !tools.KnownTool(toolName) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": fmt.Sprintf("Unknown tool: %s", toolName)})
	}
	handler, ok := tc.handlers[family]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": fmt.Sprintf("Unknown tool: %s", toolName)})
	}

	if _, err := tc.sniffUpload(file, toolName); err != nil {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported_media_type", "message": err.Error()})
	}

	scratchDir, err := os.MkdirTemp("", "swifttools-direct-*")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to stage upload"})
	}
	defer os.RemoveAll(scratchDir)

	inputPath := filepath.Join(scratchDir, uuid.New().String()+"_"+filepath.Base(file.Filename))
	if err := c.SaveFile(file, inputPath); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to stage upload"})
	}

	outputPath, err := handler.Process(c.Context(), tools.Request{
		Tool:      toolName,
		InputPath: inputPath,
		Options:   tools.Options(collectOptions(c)),
	})
	if err != nil {
		fiberlog.Errorf("[Tools] Direct processing failed (tool: %s): %v", toolName, err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "processing_failed", "message": err.Error()})
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to read result"})
	}

	ext := filepath.Ext(outputPath)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "result"+ext))
	c.Type(strings.TrimPrefix(ext, "."))
	return c.Send(data)
}

// sniffUpload validates the upload head against the tool's media domain.
// Unknown tool families pass through untouched; they fail later at
// dispatch with the job marked failed.
func (tc *ToolsController) sniffUpload(file *multipart.FileHeader, toolName string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	head = head[:n]

	family, famErr := tools.FamilyFor(toolName)
	if famErr != nil {
		return "application/octet-stream", nil
	}

	switch family {
	case tools.FamilyImage:
		return upload.ValidateImageBySniff(file.Filename, head)
	case tools.FamilyPDF:
		return upload.ValidatePDFBySniff(file.Filename, head)
	default:
		return "application/octet-stream", nil
	}
}

// collectOptions folds every multipart form field except the tool
// selector into the options bag, stored verbatim
func collectOptions(c *fiber.Ctx) map[string]string {
	options := map[string]string{}
	form, err := c.MultipartForm()
	if err != nil {
		return options
	}
	for key, values := range form.Value {
		if key == "tool" || len(values) == 0 {
			continue
		}
		options[key] = values[0]
	}
	return options
}
