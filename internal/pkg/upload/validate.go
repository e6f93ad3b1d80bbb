package upload

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	// Note: SVG is intentionally excluded due to XSS risk without sanitization
}

var allowedImageMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

var pdfMagic = []byte("%PDF-")

// ValidateImageBySniff checks the provided filename (extension) and the first
// bytes (head) against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExt[ext] {
		return "", errors.New("only the following image formats are supported: JPG, JPEG, PNG, GIF, WEBP, BMP, TIFF")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		// Block SVG/XML until a sanitizer is available
		return "", errors.New("SVG/XML files are not supported for security reasons")
	}

	// Some formats may return octet-stream depending on Go version; allow by extension
	if detected == "application/octet-stream" && allowedImageExt[ext] {
		return detected, nil
	}

	if allowedImageMime[detected] {
		return detected, nil
	}

	return "", errors.New("unsupported file type")
}

// ValidatePDFBySniff checks filename extension and the leading bytes for the
// PDF magic number. Returns the mime type or an error.
func ValidatePDFBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" {
		return "", errors.New("only PDF files are supported by this tool")
	}
	if !bytes.HasPrefix(head, pdfMagic) {
		return "", errors.New("the file does not look like a valid PDF")
	}
	return "application/pdf", nil
}
