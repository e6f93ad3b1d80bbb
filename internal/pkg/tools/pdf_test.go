package tools

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFHandlerInputMissing(t *testing.T) {
	handler := NewPDFHandler()

	_, err := handler.Process(context.Background(), Request{
		Tool:      "pdf-compressor",
		InputPath: filepath.Join(t.TempDir(), "nope.pdf"),
	})
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestPDFHandlerUnknownTool(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.7"), 0644))

	handler := NewPDFHandler()
	_, err := handler.Process(context.Background(), Request{
		Tool:      "pdf-does-not-exist",
		InputPath: input,
	})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestPDFRotatorRejectsInvalidAngle(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.7"), 0644))

	handler := NewPDFHandler()
	_, err := handler.Process(context.Background(), Request{
		Tool:      "pdf-rotator",
		InputPath: input,
		Options:   Options{"angle": "45"},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "multiple of 90")
}

func TestZipDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_1.pdf"), []byte("one"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_2.pdf"), []byte("two"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	outputPath := filepath.Join(t.TempDir(), "pages.zip")
	require.NoError(t, zipDirectory(dir, outputPath))

	reader, err := zip.OpenReader(outputPath)
	require.NoError(t, err)
	defer reader.Close()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"page_1.pdf", "page_2.pdf"}, names)
}
