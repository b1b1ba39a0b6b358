package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/convert"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/raster"
	"github.com/sirupsen/logrus"
)

// ocrSink receives recognised pages in order
type ocrSink interface {
	Add(img image.Image, text string, dpi int) error
	Write(path string) error
}

// textSink concatenates page text with blank lines between pages
type textSink struct {
	pages []string
}

func (s *textSink) Add(_ image.Image, text string, _ int) error {
	s.pages = append(s.pages, strings.TrimSpace(text))
	return nil
}

func (s *textSink) Write(path string) error {
	return os.WriteFile(path, []byte(strings.Join(s.pages, "\n\n")+"\n"), 0600)
}

// pdfSink writes one page per recognised image. The recognised text is laid
// over the image in a fully transparent layer so it can be selected and
// searched; it is not aligned to the glyphs in the image.
type pdfSink struct {
	doc   *fpdf.Fpdf
	tr    func(string) string
	pages int
}

func newPDFSink() *pdfSink {
	doc := newImagePDF()
	return &pdfSink{doc: doc, tr: doc.UnicodeTranslatorFromDescriptor("")}
}

func (s *pdfSink) Add(img image.Image, text string, dpi int) error {
	s.pages++
	var buf bytes.Buffer
	if err := convert.EncodeImage(&buf, img, "jpg", convert.QualityHigh); err != nil {
		return err
	}
	if err := addImagePage(s.doc, fmt.Sprintf("ocr-%d", s.pages), &buf, "JPG", img.Bounds(), dpi); err != nil {
		return err
	}

	w, _ := s.doc.GetPageSize()
	s.doc.SetAlpha(0, "Normal")
	s.doc.SetFont("Helvetica", "", 10)
	s.doc.SetXY(0, 0)
	s.doc.MultiCell(w, 12, s.tr(text), "", "L", false)
	s.doc.SetAlpha(1, "Normal")
	return s.doc.Error()
}

func (s *pdfSink) Write(path string) error {
	return s.doc.OutputFileAndClose(path)
}

// runOCR recognises each page of a PDF (rendered first) or a single image
func runOCR(ctx context.Context, x *execution) ([]job.Output, error) {
	rec := x.engine.recognizer
	if rec == nil {
		return nil, job.BackendUnavailable(string(capability.OCREngine))
	}
	src := x.sources[0]
	lang := x.plan.Language

	var sink ocrSink = &textSink{}
	if x.plan.Format == "pdf" {
		sink = newPDFSink()
	}

	recognise := func(page int, img image.Image, dpi int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := rec.Recognize(ctx, img, lang)
		if err != nil {
			return fmt.Errorf("page %d: %w", page+1, err)
		}
		x.engine.logger.WithFields(logrus.Fields{
			"page":  page + 1,
			"chars": len(text),
		}).Debug("Recognised page")
		return sink.Add(img, text, dpi)
	}

	if src.Ext() == "pdf" {
		if !x.caps[capability.Rasterizer] || x.engine.renderer == nil {
			return nil, job.BackendUnavailable(string(capability.Rasterizer))
		}
		err := x.engine.renderer.Render(src.Path, ocrDPI, func(page int, img image.Image) error {
			return recognise(page, img, ocrDPI)
		})
		if err != nil {
			return nil, err
		}
	} else {
		img, err := convert.DecodeImageFile(src.Path)
		if err != nil {
			return nil, err
		}
		if err := recognise(0, img, raster.DefaultDPI); err != nil {
			return nil, err
		}
	}

	name := fmt.Sprintf("ocr_%s.%s", src.Stem(), x.plan.Format)
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}
	if err := sink.Write(out); err != nil {
		return nil, fmt.Errorf("failed to write OCR output: %w", err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// runOCRUnavailable returns a plain-text note in place of recognised text
func runOCRUnavailable(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := fmt.Sprintf("ocr_%s.txt", src.Stem())
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}
	note := fmt.Sprintf("OCR unavailable: no text recognition engine could process %s.\n", src.Filename)
	if err := os.WriteFile(out, []byte(note), 0600); err != nil {
		return nil, err
	}
	return []job.Output{{Name: name, Path: out}}, nil
}
