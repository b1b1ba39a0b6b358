// Package job holds the data model shared by the conversion core: requests,
// options, results and the error taxonomy.
package job

import (
	"io"
	"path/filepath"
	"strings"
)

// Operation names a requested transformation
type Operation string

const (
	// OpConvert is a plain format conversion routed by extension pair
	OpConvert Operation = "convert"

	OpSplit       Operation = "split"
	OpMerge       Operation = "merge"
	OpCompress    Operation = "compress"
	OpProtect     Operation = "protect"
	OpUnlock      Operation = "unlock"
	OpRotate      Operation = "rotate"
	OpWatermark   Operation = "watermark"
	OpPDFToImages Operation = "pdf_to_images"
	OpImagesToPDF Operation = "images_to_pdf"
	OpOCR         Operation = "ocr"
)

// PDFOperations lists the PDF engine operations in a stable order
var PDFOperations = []Operation{
	OpSplit,
	OpMerge,
	OpCompress,
	OpProtect,
	OpUnlock,
	OpRotate,
	OpWatermark,
	OpPDFToImages,
	OpImagesToPDF,
	OpOCR,
}

// AllOperations returns every operation name, PDF operations first
func AllOperations() []Operation {
	ops := make([]Operation, 0, len(PDFOperations)+1)
	ops = append(ops, PDFOperations...)
	return append(ops, OpConvert)
}

// ParseOperation maps a name onto an Operation, accepting hyphens for underscores
func ParseOperation(name string) (Operation, bool) {
	normalised := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for _, op := range AllOperations() {
		if string(op) == normalised {
			return op, true
		}
	}
	return "", false
}

// Input is one uploaded artifact: the client-supplied filename and its content
type Input struct {
	Filename string
	Content  io.Reader
}

// Ext returns the lowercased extension of the input filename without the dot
func (i Input) Ext() string {
	return Ext(i.Filename)
}

// Stem returns the input filename without directory or extension
func (i Input) Stem() string {
	base := filepath.Base(i.Filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Request is an immutable conversion request
type Request struct {
	Operation Operation
	Inputs    []Input
	// OutputFormat is the target extension for OpConvert and the output kind
	// for operations that offer a choice (ocr, pdf_to_images)
	OutputFormat string
	Options      Options
}

// Output describes one artifact produced inside a temp scope
type Output struct {
	// Name is the suggested filename for the artifact
	Name string
	// Path is the temp file holding the artifact; valid only inside the scope
	Path string
}

// Result is what an engine or converter returns for a single request
type Result struct {
	Outputs []Output
	// Degraded is true whenever a fallback or pass-through tier produced the outputs
	Degraded   bool
	Diagnostic string
	// Tier names the strategy that produced the outputs
	Tier string
}

// Ext returns the lowercased extension of name without the leading dot
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Source is an input after it has been written to a temp file
type Source struct {
	// Filename is the client-supplied name, used only for naming outputs
	Filename string
	Path     string
}

// Ext returns the lowercased extension of the original filename
func (s Source) Ext() string {
	return Ext(s.Filename)
}

// Stem returns the original filename without directory or extension
func (s Source) Stem() string {
	return Input{Filename: s.Filename}.Stem()
}
