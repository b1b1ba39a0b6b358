package pdfengine

import (
	"slices"
	"strings"

	"github.com/sammcj/mcp-fileconv/internal/convert"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/raster"
)

// Watermark opacity bounds
const (
	MinOpacity     = 0.1
	MaxOpacity     = 0.9
	DefaultOpacity = 0.3
)

// ocrDPI is the render resolution for recognition
const ocrDPI = 300

var (
	rasterFormats  = []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff", "webp"}
	ocrFormats     = []string{"txt", "pdf"}
	watermarkSpots = map[string]string{"center": "c", "top": "tc", "bottom": "bc"}
)

// Plan is a validated operation with its options parsed. Building one is the
// only place option errors are raised, so a bad request never reaches a temp
// scope.
type Plan struct {
	Op job.Operation

	Ranges []job.PageRange
	Pages  job.PageSelection

	JPEGQuality int

	UserPassword  string
	OwnerPassword string
	Password      string

	Rotation int

	Text     string
	Position string
	Opacity  float64

	Format   string
	DPI      int
	Language string

	OutputName string
}

// Prepare validates opts for op. outputFormat is the request-level format and
// is used when the format option is absent.
func (e *Engine) Prepare(op job.Operation, opts job.Options, outputFormat string) (*Plan, error) {
	p := &Plan{Op: op, OutputName: opts.Get(job.OptOutputName)}
	format := strings.ToLower(strings.TrimPrefix(opts.GetDefault(job.OptFormat, outputFormat), "."))

	switch op {
	case job.OpSplit:
		ranges, err := job.ParsePageRanges(opts.Get(job.OptPageRanges))
		if err != nil {
			return nil, err
		}
		p.Ranges = ranges

	case job.OpMerge, job.OpImagesToPDF:

	case job.OpUnlock:
		p.Password = opts.Get(job.OptPassword)

	case job.OpCompress:
		q, err := convert.QualityFactor(opts.Get(job.OptQuality))
		if err != nil {
			return nil, err
		}
		p.JPEGQuality = q

	case job.OpProtect:
		p.UserPassword = opts.Get(job.OptUserPassword)
		if p.UserPassword == "" {
			return nil, job.InvalidOptions("%s is required", job.OptUserPassword)
		}
		p.OwnerPassword = opts.GetDefault(job.OptOwnerPassword, p.UserPassword)

	case job.OpRotate:
		rotation, ok, err := opts.Int(job.OptRotation)
		if err != nil {
			return nil, err
		}
		if !ok || (rotation != 90 && rotation != 180 && rotation != 270) {
			return nil, job.InvalidOptions("rotation must be 90, 180 or 270")
		}
		p.Rotation = rotation
		sel, err := job.ParsePageSelection(opts.Get(job.OptPages))
		if err != nil {
			return nil, err
		}
		p.Pages = sel

	case job.OpWatermark:
		p.Text = opts.Get(job.OptWatermarkText)
		if p.Text == "" {
			return nil, job.InvalidOptions("%s is required", job.OptWatermarkText)
		}
		position := strings.ToLower(opts.GetDefault(job.OptPosition, "center"))
		if _, ok := watermarkSpots[position]; !ok {
			return nil, job.InvalidOptions("position must be center, top or bottom, got %q", position)
		}
		p.Position = position
		opacity, ok, err := opts.Float(job.OptOpacity)
		if err != nil {
			return nil, err
		}
		if !ok {
			opacity = DefaultOpacity
		}
		if opacity < MinOpacity || opacity > MaxOpacity {
			return nil, job.InvalidOptions("opacity must be between %.1f and %.1f, got %g", MinOpacity, MaxOpacity, opacity)
		}
		p.Opacity = opacity

	case job.OpPDFToImages:
		if format == "" {
			format = "png"
		}
		if !slices.Contains(rasterFormats, format) {
			return nil, job.InvalidOptions("image format must be one of %s, got %q", strings.Join(rasterFormats, ", "), format)
		}
		p.Format = format
		dpi, _, err := opts.Int(job.OptDPI)
		if err != nil {
			return nil, err
		}
		p.DPI = raster.ClampDPI(dpi)

	case job.OpOCR:
		if format == "" {
			format = "pdf"
		}
		if !slices.Contains(ocrFormats, format) {
			return nil, job.InvalidOptions("OCR output format must be txt or pdf, got %q", format)
		}
		p.Format = format
		p.Language = opts.GetDefault(job.OptLanguage, e.language)

	default:
		return nil, job.Rejected("%q is not a PDF operation", op)
	}

	return p, nil
}
