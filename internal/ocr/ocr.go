// Package ocr recognises text in page images. Two engines exist: the
// tesseract command-line tool, and an in-process libtesseract binding that is
// compiled in with the "gosseract" build tag.
package ocr

import (
	"context"
	"image"
)

// Engine recognises text in a single image
type Engine interface {
	// Name identifies the engine in logs and capability details
	Name() string
	// Recognize returns the plain text found in img using language (a
	// tesseract language code such as "eng")
	Recognize(ctx context.Context, img image.Image, language string) (string, error)
}

// Options selects and configures engines
type Options struct {
	// TesseractPath overrides PATH lookup of the tesseract binary
	TesseractPath string
}

// Detect returns the preferred available engine: the in-process engine when
// it is compiled in and initialises, otherwise the CLI engine. The detail
// string describes what was found.
func Detect(opts Options) (Engine, string, error) {
	if eng, detail, err := detectNative(); err == nil {
		return eng, detail, nil
	}

	eng, err := NewCLI(opts.TesseractPath)
	if err != nil {
		return nil, "", err
	}
	return eng, eng.Detail(), nil
}
