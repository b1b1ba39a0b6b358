// Package router classifies a requested conversion into an operation family
// using extension tables only. It never inspects file content.
package router

import (
	"slices"
	"strings"

	"github.com/sammcj/mcp-fileconv/internal/job"
)

// Family is the operation family a request belongs to
type Family string

const (
	FamilyAudio    Family = "audio"
	FamilyImage    Family = "image"
	FamilyDocument Family = "document"
	FamilyPDF      Family = "pdf"
)

// The three extension sets must stay disjoint
var (
	AudioExtensions    = []string{"mp3", "wav", "ogg", "flac", "aac", "m4a"}
	ImageExtensions    = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "tiff"}
	DocumentExtensions = []string{"pdf", "docx", "txt", "md", "html"}
)

// imageInputExtensions also accepts the short tiff spelling for PDF operations
var imageInputExtensions = append(slices.Clone(ImageExtensions), "tif")

// Classify maps an (input, output) extension pair onto a family. Extensions
// may carry a leading dot and are compared case-insensitively.
func Classify(inputExt, outputExt string) (Family, error) {
	in := normaliseExt(inputExt)
	out := normaliseExt(outputExt)

	switch {
	case slices.Contains(AudioExtensions, in) && slices.Contains(AudioExtensions, out):
		return FamilyAudio, nil
	case slices.Contains(ImageExtensions, in) && slices.Contains(ImageExtensions, out):
		return FamilyImage, nil
	case slices.Contains(DocumentExtensions, in) && slices.Contains(DocumentExtensions, out):
		return FamilyDocument, nil
	default:
		return "", job.Rejected("%s to %s", displayExt(in), displayExt(out))
	}
}

// Route classifies a whole request. Plain conversions go through Classify;
// PDF operations check that every input has an extension the operation accepts.
func Route(req job.Request) (Family, error) {
	if len(req.Inputs) == 0 {
		return "", job.Rejected("no input provided")
	}

	if req.Operation == job.OpConvert {
		if len(req.Inputs) != 1 {
			return "", job.Rejected("conversion takes exactly one input, got %d", len(req.Inputs))
		}
		return Classify(req.Inputs[0].Ext(), req.OutputFormat)
	}

	accepted, ok := acceptedInputs(req.Operation)
	if !ok {
		return "", job.Rejected("unknown operation %q", req.Operation)
	}
	for _, in := range req.Inputs {
		if !slices.Contains(accepted, in.Ext()) {
			return "", job.Rejected("%s does not accept .%s input (%s)", req.Operation, in.Ext(), in.Filename)
		}
	}
	return FamilyPDF, nil
}

// acceptedInputs lists the input extensions each PDF operation takes
func acceptedInputs(op job.Operation) ([]string, bool) {
	switch op {
	case job.OpSplit, job.OpMerge, job.OpCompress, job.OpProtect, job.OpUnlock,
		job.OpRotate, job.OpWatermark, job.OpPDFToImages:
		return []string{"pdf"}, true
	case job.OpImagesToPDF:
		return imageInputExtensions, true
	case job.OpOCR:
		return append([]string{"pdf"}, imageInputExtensions...), true
	default:
		return nil, false
	}
}

// IsImageExt reports whether ext names a supported raster image format
func IsImageExt(ext string) bool {
	return slices.Contains(imageInputExtensions, normaliseExt(ext))
}

func normaliseExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func displayExt(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return ext
}
