package upload

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngHead(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
	head := buf.Bytes()
	if len(head) > 512 {
		head = head[:512]
	}
	return head
}

func TestValidateImageBySniff(t *testing.T) {
	mime, err := ValidateImageBySniff("photo.png", pngHead(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
}

func TestValidateImageBySniffRejectsExtension(t *testing.T) {
	_, err := ValidateImageBySniff("script.svg", pngHead(t))
	assert.Error(t, err)

	_, err = ValidateImageBySniff("document.pdf", pngHead(t))
	assert.Error(t, err)
}

func TestValidateImageBySniffRejectsHTML(t *testing.T) {
	_, err := ValidateImageBySniff("evil.png", []byte("<html><body>hi</body></html>"))
	assert.Error(t, err)
}

func TestValidateImageBySniffAllowsOctetStreamByExtension(t *testing.T) {
	// Random bytes detect as octet-stream; the extension whitelist decides
	mime, err := ValidateImageBySniff("raw.bmp", []byte{0x00, 0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", mime)
}

func TestValidatePDFBySniff(t *testing.T) {
	mime, err := ValidatePDFBySniff("doc.pdf", []byte("%PDF-1.7 ..."))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	_, err = ValidatePDFBySniff("doc.txt", []byte("%PDF-1.7"))
	assert.Error(t, err)

	_, err = ValidatePDFBySniff("doc.pdf", []byte("MZ not a pdf"))
	assert.Error(t, err)
}
