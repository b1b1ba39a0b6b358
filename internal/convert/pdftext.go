package convert

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
)

// readPDFBlocks extracts plain text page by page
func readPDFBlocks(path string) ([]block, error) {
	text, err := ExtractPDFText(path)
	if err != nil {
		return nil, err
	}
	return paragraphs(text), nil
}

// ExtractPDFText returns the text of every page, pages separated by a blank line
func ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

var headingSizes = [7]float64{11, 20, 17, 15, 13, 12, 11}

// writeTextPDF lays blocks out on A4 pages with the core Helvetica font.
// Text outside cp1252 is replaced by the translator.
func writeTextPDF(path string, blocks []block) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	for _, b := range blocks {
		size := headingSizes[min(b.Level, 6)]
		style := ""
		if b.Level > 0 {
			style = "B"
		}
		doc.SetFont("Helvetica", style, size)
		doc.MultiCell(0, size*0.5, tr(b.Text), "", "L", false)
		doc.Ln(size * 0.3)
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
