package pdfengine

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sammcj/mcp-fileconv/internal/raster"
)

// Probe parses a one-page document with pdfcpu
func Probe() (string, error) {
	api.DisableConfigDir()
	n, err := api.PageCount(bytes.NewReader(raster.MinimalPDF()), model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("pdfcpu failed to read a minimal PDF: %w", err)
	}
	if n != 1 {
		return "", fmt.Errorf("pdfcpu read %d pages from a one-page PDF", n)
	}
	return "pdfcpu", nil
}
