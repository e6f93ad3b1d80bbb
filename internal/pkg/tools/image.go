package tools

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rwcarlsen/goexif/exif"
)

// Defaults applied when an option is absent or unparsable
const (
	DefaultJPEGQuality = 75
	DefaultWebPQuality = 85
	DefaultBlurSigma   = 5.0
	DefaultPixelBlock  = 8
	DefaultFaviconSize = 32
)

// ImageHandler implements the image tool family on top of the imaging
// library. One transformation per invocation; output is written next to
// the input under a fresh unique name.
type ImageHandler struct{}

// NewImageHandler creates the image family handler
func NewImageHandler() *ImageHandler {
	return &ImageHandler{}
}

// Process runs the transformation selected by req.Tool and returns the
// output file path.
func (h *ImageHandler) Process(ctx context.Context, req Request) (string, error) {
	if _, err := os.Stat(req.InputPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInputMissing, req.InputPath)
	}

	tool, ok := ParseImageTool(req.Tool)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, req.Tool)
	}

	switch tool {
	case ImageConverter:
		return h.convert(req)
	case ImageCompressor:
		return h.compress(req)
	case ImageResizer:
		return h.resize(req)
	case ImageCropper:
		return h.crop(req)
	case ImageBlurPixelate:
		return h.blurPixelate(req)
	case ImageExifStrip:
		return h.exifStrip(req)
	case ImageFavicon:
		return h.favicon(req)
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, req.Tool)
}

// freshOutputPath builds a collision-free output path next to the input
func freshOutputPath(inputPath, ext string) string {
	return filepath.Join(filepath.Dir(inputPath), uuid.New().String()+ext)
}

func (h *ImageHandler) convert(req Request) (string, error) {
	format := strings.ToLower(req.Options.String("format", "png"))
	switch format {
	case "jpeg":
		format = "jpg"
	case "tiff":
		format = "tif"
	}

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	if format == "webp" {
		outputPath := freshOutputPath(req.InputPath, ".webp")
		if err := encodeWebP(img, outputPath, float32(req.Options.Int("quality", DefaultWebPQuality))); err != nil {
			return "", err
		}
		return outputPath, nil
	}

	switch format {
	case "jpg", "png", "gif", "tif", "bmp":
	default:
		return "", fmt.Errorf("unsupported target format: %s", format)
	}

	outputPath := freshOutputPath(req.InputPath, "."+format)
	if err := imaging.Save(img, outputPath); err != nil {
		return "", fmt.Errorf("failed to save converted image: %w", err)
	}
	return outputPath, nil
}

func (h *ImageHandler) compress(req Request) (string, error) {
	quality := req.Options.Int("quality", DefaultJPEGQuality)
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	outputPath := freshOutputPath(req.InputPath, ".jpg")
	if err := imaging.Save(img, outputPath, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("failed to save compressed image: %w", err)
	}
	return outputPath, nil
}

func (h *ImageHandler) resize(req Request) (string, error) {
	width := req.Options.Int("width", 0)
	height := req.Options.Int("height", 0)
	if width <= 0 && height <= 0 {
		return "", fmt.Errorf("resize requires a positive width or height")
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Zero on one side keeps the aspect ratio
	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	outputPath := freshOutputPath(req.InputPath, strings.ToLower(filepath.Ext(req.InputPath)))
	if err := imaging.Save(resized, outputPath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}
	return outputPath, nil
}

func (h *ImageHandler) crop(req Request) (string, error) {
	x := req.Options.Int("x", 0)
	y := req.Options.Int("y", 0)
	width := req.Options.Int("width", 0)
	height := req.Options.Int("height", 0)
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("crop requires positive width and height")
	}

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	cropped := imaging.Crop(img, image.Rect(x, y, x+width, y+height))

	outputPath := freshOutputPath(req.InputPath, strings.ToLower(filepath.Ext(req.InputPath)))
	if err := imaging.Save(cropped, outputPath); err != nil {
		return "", fmt.Errorf("failed to save cropped image: %w", err)
	}
	return outputPath, nil
}

func (h *ImageHandler) blurPixelate(req Request) (string, error) {
	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	var result *image.NRGBA
	switch mode := strings.ToLower(req.Options.String("mode", "blur")); mode {
	case "blur":
		sigma := req.Options.Float("sigma", DefaultBlurSigma)
		if sigma <= 0 {
			sigma = DefaultBlurSigma
		}
		result = imaging.Blur(img, sigma)
	case "pixelate":
		block := req.Options.Int("block", DefaultPixelBlock)
		if block < 2 {
			block = DefaultPixelBlock
		}
		bounds := img.Bounds()
		smallW := bounds.Dx() / block
		if smallW < 1 {
			smallW = 1
		}
		small := imaging.Resize(img, smallW, 0, imaging.Box)
		result = imaging.Resize(small, bounds.Dx(), bounds.Dy(), imaging.NearestNeighbor)
	default:
		return "", fmt.Errorf("unsupported blur mode: %s", mode)
	}

	outputPath := freshOutputPath(req.InputPath, strings.ToLower(filepath.Ext(req.InputPath)))
	if err := imaging.Save(result, outputPath); err != nil {
		return "", fmt.Errorf("failed to save blurred image: %w", err)
	}
	return outputPath, nil
}

func (h *ImageHandler) exifStrip(req Request) (string, error) {
	// Best-effort: report what is being stripped
	if f, err := os.Open(req.InputPath); err == nil {
		if x, decErr := exif.Decode(f); decErr == nil {
			if model, tagErr := x.Get(exif.Model); tagErr == nil {
				log.Infof("[Tools] Stripping EXIF data (camera: %s) from %s", model.String(), filepath.Base(req.InputPath))
			}
		}
		_ = f.Close()
	}

	// Re-encoding through the imaging pipeline drops all metadata segments
	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(req.InputPath))
	outputPath := freshOutputPath(req.InputPath, ext)
	if err := imaging.Save(img, outputPath); err != nil {
		return "", fmt.Errorf("failed to save stripped image: %w", err)
	}
	return outputPath, nil
}

func (h *ImageHandler) favicon(req Request) (string, error) {
	size := req.Options.Int("size", DefaultFaviconSize)
	if size < 16 || size > 512 {
		size = DefaultFaviconSize
	}

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	icon := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	outputPath := freshOutputPath(req.InputPath, ".png")
	if err := imaging.Save(icon, outputPath); err != nil {
		return "", fmt.Errorf("failed to save favicon: %w", err)
	}
	return outputPath, nil
}

// encodeWebP writes the image as lossy WebP with the given quality
func encodeWebP(img image.Image, outputPath string, quality float32) error {
	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer output.Close()

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return fmt.Errorf("error creating encoder options: %w", err)
	}

	if err := webp.Encode(output, img, options); err != nil {
		return fmt.Errorf("error encoding WebP image: %w", err)
	}

	return nil
}
