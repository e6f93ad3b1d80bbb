package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Family identifies a tool handler family by media domain.
type Family string

const (
	FamilyImage Family = "image"
	FamilyPDF   Family = "pdf"
)

var (
	// ErrUnknownTool is fatal for a job; the dispatcher never retries it.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInputMissing means the referenced upload was not found on disk.
	ErrInputMissing = errors.New("input file not found")
)

// Request carries the full job payload into a handler.
type Request struct {
	Tool      string
	InputPath string
	Options   Options
}

// Handler processes exactly one transformation per invocation and returns
// the path of the written output file. Handlers never retry internally.
type Handler interface {
	Process(ctx context.Context, req Request) (string, error)
}

// FamilyFor routes a tool name to its handler family by prefix.
func FamilyFor(toolName string) (Family, error) {
	switch {
	case strings.HasPrefix(toolName, "image-"):
		return FamilyImage, nil
	case strings.HasPrefix(toolName, "pdf-"):
		return FamilyPDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
}

// ImageTool enumerates the image family transformations.
type ImageTool int

const (
	ImageConverter ImageTool = iota
	ImageCompressor
	ImageResizer
	ImageCropper
	ImageBlurPixelate
	ImageExifStrip
	ImageFavicon
)

var imageToolNames = map[string]ImageTool{
	"image-converter":  ImageConverter,
	"image-compressor": ImageCompressor,
	"image-resizer":    ImageResizer,
	"image-cropper":    ImageCropper,
	"image-blur":       ImageBlurPixelate,
	"image-exif-strip": ImageExifStrip,
	"image-favicon":    ImageFavicon,
}

// ParseImageTool resolves a tool identifier to its image family variant.
func ParseImageTool(name string) (ImageTool, bool) {
	tool, ok := imageToolNames[name]
	return tool, ok
}

// PDFTool enumerates the PDF family transformations.
type PDFTool int

const (
	PDFCompressor PDFTool = iota
	PDFRotator
	PDFSplitter
	PDFMetadataRemover
)

var pdfToolNames = map[string]PDFTool{
	"pdf-compressor":       PDFCompressor,
	"pdf-rotator":          PDFRotator,
	"pdf-splitter":         PDFSplitter,
	"pdf-metadata-remover": PDFMetadataRemover,
}

// ParsePDFTool resolves a tool identifier to its PDF family variant.
func ParsePDFTool(name string) (PDFTool, bool) {
	tool, ok := pdfToolNames[name]
	return tool, ok
}

// KnownTool reports whether any handler family implements the tool.
func KnownTool(name string) bool {
	if _, ok := imageToolNames[name]; ok {
		return true
	}
	_, ok := pdfToolNames[name]
	return ok
}
