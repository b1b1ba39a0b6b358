package convert

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/tempfs"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// webp decoding registers with image.Decode
	_ "golang.org/x/image/webp"
)

// JPEG quality factors for the quality option
const (
	QualityLow    = 30
	QualityMedium = 60
	QualityHigh   = 90
)

// QualityFactor maps low|medium|high onto a JPEG factor. Blank means medium.
func QualityFactor(name string) (int, error) {
	switch name {
	case "", "medium":
		return QualityMedium, nil
	case "low":
		return QualityLow, nil
	case "high":
		return QualityHigh, nil
	default:
		return 0, job.InvalidOptions("quality must be low, medium or high, got %q", name)
	}
}

// Images converts between raster formats in-process
type Images struct{}

// Convert decodes src and re-encodes it as outExt
func (Images) Convert(ctx context.Context, scope *tempfs.Scope, src job.Source, outExt string, opts job.Options) (*Artifact, error) {
	quality, err := QualityFactor(opts.Get(job.OptQuality))
	if err != nil {
		return nil, err
	}

	img, err := DecodeImageFile(src.Path)
	if err != nil {
		return nil, err
	}

	out, err := scope.File("image-", "."+outExt)
	if err != nil {
		return nil, err
	}
	if err := EncodeImageFile(out.Path, img, outExt, quality); err != nil {
		return nil, err
	}
	return &Artifact{Path: out.Path, Tier: "image/" + outExt}, nil
}

// DecodeImageFile decodes any supported raster format
func DecodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodeImageFile writes img to path in format
func EncodeImageFile(path string, img image.Image, format string, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	w := bufio.NewWriter(f)
	encErr := EncodeImage(w, img, format, quality)
	if encErr == nil {
		encErr = w.Flush()
	}
	if err := f.Close(); err != nil && encErr == nil {
		encErr = err
	}
	return encErr
}

// EncodeImage writes img in format. quality applies to JPEG output; WebP
// output is lossless.
func EncodeImage(w io.Writer, img image.Image, format string, quality int) error {
	var err error
	switch format {
	case "png":
		err = png.Encode(w, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: quality})
	case "gif":
		err = gif.Encode(w, img, nil)
	case "bmp":
		err = bmp.Encode(w, img)
	case "tiff", "tif":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "webp":
		err = nativewebp.Encode(w, img, nil)
	default:
		return job.InvalidOptions("unsupported image format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// flatten composites img onto white so transparent areas do not turn black
// in formats without alpha
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
