package tools

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFHandler implements the PDF tool family on top of pdfcpu.
type PDFHandler struct{}

// NewPDFHandler creates the PDF family handler
func NewPDFHandler() *PDFHandler {
	return &PDFHandler{}
}

// Process runs the transformation selected by req.Tool and returns the
// output file path.
func (h *PDFHandler) Process(ctx context.Context, req Request) (string, error) {
	if _, err := os.Stat(req.InputPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInputMissing, req.InputPath)
	}

	tool, ok := ParsePDFTool(req.Tool)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, req.Tool)
	}

	switch tool {
	case PDFCompressor:
		return h.compress(req)
	case PDFRotator:
		return h.rotate(req)
	case PDFSplitter:
		return h.split(req)
	case PDFMetadataRemover:
		return h.removeMetadata(req)
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, req.Tool)
}

func (h *PDFHandler) compress(req Request) (string, error) {
	outputPath := freshOutputPath(req.InputPath, ".pdf")
	if err := api.OptimizeFile(req.InputPath, outputPath, nil); err != nil {
		return "", fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return outputPath, nil
}

func (h *PDFHandler) rotate(req Request) (string, error) {
	angle := req.Options.Int("angle", 90)
	switch angle {
	case 90, 180, 270, -90, -180, -270:
	default:
		return "", fmt.Errorf("rotation angle must be a multiple of 90, got %d", angle)
	}

	outputPath := freshOutputPath(req.InputPath, ".pdf")
	if err := api.RotateFile(req.InputPath, outputPath, angle, nil, nil); err != nil {
		return "", fmt.Errorf("failed to rotate PDF: %w", err)
	}
	return outputPath, nil
}

// split writes one PDF per page span into a scratch directory, then
// bundles them into a single zip so the result stays one artifact.
func (h *PDFHandler) split(req Request) (string, error) {
	span := req.Options.Int("pages", 1)
	if span < 1 {
		span = 1
	}

	scratchDir := filepath.Join(filepath.Dir(req.InputPath), uuid.New().String())
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create split directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	if err := api.SplitFile(req.InputPath, scratchDir, span, nil); err != nil {
		return "", fmt.Errorf("failed to split PDF: %w", err)
	}

	outputPath := freshOutputPath(req.InputPath, ".zip")
	if err := zipDirectory(scratchDir, outputPath); err != nil {
		return "", fmt.Errorf("failed to archive split pages: %w", err)
	}
	return outputPath, nil
}

func (h *PDFHandler) removeMetadata(req Request) (string, error) {
	outputPath := freshOutputPath(req.InputPath, ".pdf")
	// nil properties removes all document properties
	if err := api.RemovePropertiesFile(req.InputPath, outputPath, nil, nil); err != nil {
		return "", fmt.Errorf("failed to remove PDF metadata: %w", err)
	}
	return outputPath, nil
}

// zipDirectory archives every regular file in dir (non-recursive) into
// a zip file at outputPath.
func zipDirectory(dir, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		w, err := zw.Create(entry.Name())
		if err != nil {
			src.Close()
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}

	return nil
}
