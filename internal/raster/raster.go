// Package raster renders PDF pages to images with MuPDF (go-fitz).
package raster

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

const (
	MinDPI     = 72
	MaxDPI     = 600
	DefaultDPI = 200
)

// ClampDPI limits dpi to [MinDPI, MaxDPI]; zero selects DefaultDPI
func ClampDPI(dpi int) int {
	if dpi == 0 {
		return DefaultDPI
	}
	return max(MinDPI, min(dpi, MaxDPI))
}

// Renderer renders pages of a PDF file
type Renderer interface {
	// PageCount returns the number of pages in the document
	PageCount(path string) (int, error)
	// Render calls fn with each page image in order. Pages are 0-based.
	Render(path string, dpi int, fn func(page int, img image.Image) error) error
}

// Fitz is the MuPDF-backed renderer
type Fitz struct{}

// NewFitz returns the MuPDF renderer
func NewFitz() *Fitz {
	return &Fitz{}
}

// PageCount returns the number of pages in the document
func (f *Fitz) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	defer func() { _ = doc.Close() }()
	return doc.NumPage(), nil
}

// Render rasterises every page at dpi
func (f *Fitz) Render(path string, dpi int, fn func(page int, img image.Image) error) error {
	doc, err := fitz.New(path)
	if err != nil {
		return fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	defer func() { _ = doc.Close() }()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return fmt.Errorf("PDF has no pages")
	}

	for page := range pageCount {
		img, err := doc.ImageDPI(page, float64(dpi))
		if err != nil {
			return fmt.Errorf("failed to render page %d: %w", page+1, err)
		}
		if err := fn(page, img); err != nil {
			return err
		}
	}
	return nil
}

// Probe opens a one-page document in memory and renders it, proving the
// native library is loadable
func Probe() (string, error) {
	doc, err := fitz.NewFromMemory(minimalPDF)
	if err != nil {
		return "", fmt.Errorf("mupdf unavailable: %w", err)
	}
	defer func() { _ = doc.Close() }()

	if _, err := doc.ImageDPI(0, MinDPI); err != nil {
		return "", fmt.Errorf("mupdf render failed: %w", err)
	}
	return "mupdf", nil
}

// MinimalPDF returns a valid one-page, empty A4 PDF
func MinimalPDF() []byte {
	return bytes.Clone(minimalPDF)
}

var minimalPDF = []byte("%PDF-1.4\n" +
	"1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n" +
	"2 0 obj\n<</Type/Pages/Kids[3 0 R]/Count 1>>\nendobj\n" +
	"3 0 obj\n<</Type/Page/MediaBox[0 0 595 842]/Parent 2 0 R/Resources<<>>>>\nendobj\n" +
	"xref\n0 4\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000054 00000 n \n" +
	"0000000105 00000 n \n" +
	"trailer\n<</Size 4/Root 1 0 R>>\nstartxref\n184\n%%EOF\n")
