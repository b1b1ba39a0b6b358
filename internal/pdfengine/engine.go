// Package pdfengine runs the PDF operations. Each operation is an ordered
// list of tiers (primary, then fallbacks, then pass-through); the first tier
// whose capabilities are present and which succeeds produces the result.
package pdfengine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/config"
	"github.com/sammcj/mcp-fileconv/internal/convert"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/ocr"
	"github.com/sammcj/mcp-fileconv/internal/raster"
	"github.com/sammcj/mcp-fileconv/internal/tempfs"
	"github.com/sirupsen/logrus"
)

// Kind ranks a tier
type Kind string

const (
	Primary     Kind = "primary"
	Fallback    Kind = "fallback"
	PassThrough Kind = "pass-through"
)

// Tier is one strategy for an operation
type Tier struct {
	Name     string
	Kind     Kind
	Requires []capability.Name
	// Diagnostic explains a degraded result produced by this tier
	Diagnostic string

	run func(ctx context.Context, x *execution) ([]job.Output, error)
}

// Config wires the engine's backends. Renderer and Recognizer may be nil when
// the corresponding capability is absent.
type Config struct {
	Caps       capability.Checker
	Renderer   raster.Renderer
	Recognizer ocr.Engine
	Validation config.PDFValidation
	Language   string
	Logger     *logrus.Logger
}

// Engine is stateless after construction and safe for concurrent use
type Engine struct {
	caps       capability.Checker
	renderer   raster.Renderer
	recognizer ocr.Engine
	validation int
	language   string
	logger     *logrus.Logger
	tiers      map[job.Operation][]Tier
}

// New builds the engine and its tier table
func New(cfg Config) *Engine {
	api.DisableConfigDir()

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	e := &Engine{
		caps:       cfg.Caps,
		renderer:   cfg.Renderer,
		recognizer: cfg.Recognizer,
		validation: model.ValidationRelaxed,
		language:   cfg.Language,
		logger:     logger,
	}
	if cfg.Validation == config.PDFValidationStrict {
		e.validation = model.ValidationStrict
	}
	if e.language == "" {
		e.language = config.DefaultOCRLanguage
	}
	e.tiers = e.buildTiers()
	return e
}

func (e *Engine) buildTiers() map[job.Operation][]Tier {
	pdfLib := []capability.Name{capability.PDFLibrary}
	return map[job.Operation][]Tier{
		job.OpSplit: {
			{Name: "pdfcpu-trim", Kind: Primary, Requires: pdfLib, run: runSplit},
		},
		job.OpMerge: {
			{Name: "pdfcpu-merge", Kind: Primary, Requires: pdfLib, run: runMerge},
		},
		job.OpCompress: {
			{Name: "rasterize-jpeg", Kind: Primary, Requires: []capability.Name{capability.Rasterizer}, run: runCompressRaster},
			{Name: "pdfcpu-optimize", Kind: Fallback, Requires: pdfLib, run: runCompressOptimize,
				Diagnostic: "compression unavailable, document rewritten without rasterizing"},
			{Name: "copy", Kind: PassThrough, run: runCopy,
				Diagnostic: "compression unavailable, original returned"},
		},
		job.OpProtect: {
			{Name: "pdfcpu-encrypt", Kind: Primary, Requires: pdfLib, run: runProtect},
		},
		job.OpUnlock: {
			{Name: "pdfcpu-decrypt", Kind: Primary, Requires: pdfLib, run: runUnlock},
		},
		job.OpRotate: {
			{Name: "pdfcpu-rotate", Kind: Primary, Requires: pdfLib, run: runRotate},
		},
		job.OpWatermark: {
			{Name: "pdfcpu-stamp", Kind: Primary, Requires: pdfLib, run: runWatermark},
			{Name: "copy", Kind: PassThrough, run: runCopy,
				Diagnostic: "watermarking unavailable"},
		},
		job.OpPDFToImages: {
			{Name: "mupdf-render", Kind: Primary, Requires: []capability.Name{capability.Rasterizer}, run: runRasterize},
			{Name: "placeholder", Kind: Fallback, run: runRasterizePlaceholder,
				Diagnostic: "rasterization unavailable, placeholder image returned"},
		},
		job.OpImagesToPDF: {
			{Name: "pdfcpu-import", Kind: Primary, Requires: pdfLib, run: runImagesToPDF},
		},
		job.OpOCR: {
			{Name: "tesseract", Kind: Primary, Requires: []capability.Name{capability.OCREngine}, run: runOCR},
			{Name: "ocr-unavailable", Kind: Fallback, run: runOCRUnavailable,
				Diagnostic: "OCR unavailable"},
		},
	}
}

// Tiers returns the ordered tier list for op
func (e *Engine) Tiers(op job.Operation) []Tier {
	return slices.Clone(e.tiers[op])
}

// execution is the per-call state shared by the tiers of one Run
type execution struct {
	engine  *Engine
	plan    *Plan
	sources []job.Source
	scope   *tempfs.Scope
	caps    map[capability.Name]bool

	workDir string
	seq     int
}

// outPath returns a fresh, not yet existing path in the call's work directory
func (x *execution) outPath(name string) (string, error) {
	if x.workDir == "" {
		dir, err := x.scope.Dir("pdf-")
		if err != nil {
			return "", err
		}
		x.workDir = dir.Path
	}
	x.seq++
	return filepath.Join(x.workDir, fmt.Sprintf("%03d-%s", x.seq, name)), nil
}

func (x *execution) conf() *model.Configuration {
	return x.engine.conf()
}

func (e *Engine) conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = e.validation
	return c
}

// CheckInputs validates the number of inputs for the plan's operation
func (p *Plan) CheckInputs(n int) error {
	switch p.Op {
	case job.OpMerge:
		if n < 2 {
			return job.InvalidOptions("merge needs at least two PDFs, got %d", n)
		}
	case job.OpImagesToPDF:
		if n < 1 {
			return job.InvalidOptions("images_to_pdf needs at least one image")
		}
	default:
		if n != 1 {
			return job.InvalidOptions("%s takes exactly one input, got %d", p.Op, n)
		}
	}
	return nil
}

// Run executes plan against sources inside scope. Capabilities are read once
// up front. A tier whose capability is missing is skipped; an error from a
// tier is logged and the next tier is tried, except for user input errors,
// which are returned as-is. When no tier succeeds the last error is returned
// as ErrUnexpected.
func (e *Engine) Run(ctx context.Context, scope *tempfs.Scope, plan *Plan, sources []job.Source) (*job.Result, error) {
	if err := plan.CheckInputs(len(sources)); err != nil {
		return nil, err
	}
	tiers, ok := e.tiers[plan.Op]
	if !ok {
		return nil, job.Rejected("%q is not a PDF operation", plan.Op)
	}

	x := &execution{
		engine:  e,
		plan:    plan,
		sources: sources,
		scope:   scope,
		caps:    e.snapshot(),
	}

	var reasons []string
	var lastErr error
	for _, tier := range tiers {
		log := e.logger.WithFields(logrus.Fields{
			"operation": plan.Op,
			"tier":      tier.Name,
		})

		if missing := x.missing(tier.Requires); len(missing) > 0 {
			lastErr = job.BackendUnavailable(strings.Join(missing, ", "))
			reasons = append(reasons, fmt.Sprintf("%s: %s not available", tier.Name, strings.Join(missing, ", ")))
			log.WithField("missing", missing).Debug("Skipping tier")
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, job.Unexpected(err)
		}

		outputs, err := tier.run(ctx, x)
		if err == nil {
			result := &job.Result{Outputs: outputs, Tier: tier.Name}
			if tier.Kind != Primary {
				result.Degraded = true
				result.Diagnostic = tier.Diagnostic
				if len(reasons) > 0 {
					result.Diagnostic += " (" + strings.Join(reasons, "; ") + ")"
				}
				log.WithField("diagnostic", result.Diagnostic).Info("Operation degraded")
			}
			return result, nil
		}

		if job.IsUserError(err) {
			return nil, err
		}

		log.WithError(err).Warn("Tier failed, trying next")
		lastErr = err
		reasons = append(reasons, fmt.Sprintf("%s: %v", tier.Name, err))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no tiers for %s", plan.Op)
	}
	return nil, job.Unexpected(lastErr)
}

// snapshot reads every capability once for the current call
func (e *Engine) snapshot() map[capability.Name]bool {
	out := make(map[capability.Name]bool, len(capability.All))
	for _, name := range capability.All {
		out[name] = e.caps != nil && e.caps.IsAvailable(name)
	}
	return out
}

func (x *execution) missing(required []capability.Name) []string {
	var out []string
	for _, name := range required {
		if !x.caps[name] {
			out = append(out, string(name))
		}
	}
	return out
}

// runCopy is the pass-through tier: the input returned byte for byte
func runCopy(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := fmt.Sprintf("%s_%s.pdf", x.plan.Op, src.Stem())
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}
	if err := convert.CopyFile(src.Path, out); err != nil {
		return nil, err
	}
	return []job.Output{{Name: name, Path: out}}, nil
}
