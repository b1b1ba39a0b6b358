package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/convert"
	"github.com/sammcj/mcp-fileconv/internal/job"
)

const (
	// compressDPI is the render resolution for rebuilt pages
	compressDPI = 100

	// maxGrowth is how much larger than its input a rasterized rebuild may be
	// before the fallback tier is used instead
	maxGrowth = 0.10
)

// runCompressRaster renders every page, re-encodes it as JPEG at the plan's
// quality and rebuilds the document from the images. Pages keep their size.
func runCompressRaster(ctx context.Context, x *execution) ([]job.Output, error) {
	renderer := x.engine.renderer
	if renderer == nil {
		return nil, job.BackendUnavailable(string(capability.Rasterizer))
	}
	src := x.sources[0]

	doc := newImagePDF()
	err := renderer.Render(src.Path, compressDPI, func(page int, img image.Image) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := convert.EncodeImage(&buf, img, "jpg", x.plan.JPEGQuality); err != nil {
			return err
		}
		return addImagePage(doc, fmt.Sprintf("page-%d", page), &buf, "JPG", img.Bounds(), compressDPI)
	})
	if err != nil {
		doc.Close()
		return nil, err
	}

	name := "compressed_" + src.Stem() + ".pdf"
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}
	if err := doc.OutputFileAndClose(out); err != nil {
		return nil, fmt.Errorf("failed to write compressed PDF: %w", err)
	}

	in, err := os.Stat(src.Path)
	if err != nil {
		return nil, err
	}
	rebuilt, err := os.Stat(out)
	if err != nil {
		return nil, err
	}
	if float64(rebuilt.Size()) > float64(in.Size())*(1+maxGrowth) {
		return nil, fmt.Errorf("rasterized output is %d bytes, larger than the %d byte input", rebuilt.Size(), in.Size())
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// runCompressOptimize rewrites the document through pdfcpu's optimiser,
// which drops duplicate resources but does not resample images
func runCompressOptimize(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := "compressed_" + src.Stem() + ".pdf"
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}
	if err := api.OptimizeFile(src.Path, out, x.conf()); err != nil {
		return nil, fmt.Errorf("failed to optimise: %w", err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// newImagePDF returns a document for full-bleed image pages measured in points
func newImagePDF() *fpdf.Fpdf {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	return doc
}

// addImagePage adds a page sized to the image at dpi and draws the image
// edge to edge
func addImagePage(doc *fpdf.Fpdf, name string, data *bytes.Buffer, imageType string, bounds image.Rectangle, dpi int) error {
	w := float64(bounds.Dx()) * 72 / float64(dpi)
	h := float64(bounds.Dy()) * 72 / float64(dpi)

	doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	opts := fpdf.ImageOptions{ImageType: imageType}
	doc.RegisterImageOptionsReader(name, opts, data)
	doc.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
	return doc.Error()
}
