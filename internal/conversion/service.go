// Package conversion is the entry point of the conversion core. It routes a
// request, validates its options, runs it inside a temp scope and returns
// the produced artifacts in memory.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/config"
	"github.com/sammcj/mcp-fileconv/internal/convert"
	"github.com/sammcj/mcp-fileconv/internal/failurelog"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/ocr"
	"github.com/sammcj/mcp-fileconv/internal/pdfengine"
	"github.com/sammcj/mcp-fileconv/internal/raster"
	"github.com/sammcj/mcp-fileconv/internal/router"
	"github.com/sammcj/mcp-fileconv/internal/telemetry"
	"github.com/sammcj/mcp-fileconv/internal/tempfs"
	"github.com/sirupsen/logrus"
)

// Artifact is one produced output
type Artifact struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Response is the outcome of a successful request. Degraded responses must
// be presented differently from full successes.
type Response struct {
	RequestID  string        `json:"request_id"`
	Operation  job.Operation `json:"operation"`
	Artifacts  []Artifact    `json:"artifacts"`
	Degraded   bool          `json:"degraded"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Tier       string        `json:"tier"`
}

// Service runs conversion requests. All fields are fixed after New, so one
// Service is shared by every concurrent request.
type Service struct {
	caps        *capability.Registry
	temp        *tempfs.Manager
	engine      *pdfengine.Engine
	converters  *convert.Set
	failures    *failurelog.Logger
	maxFileSize int64
	logger      *logrus.Logger
}

// Probes returns the capability probes for cfg
func Probes(cfg *config.Config) map[capability.Name]capability.Probe {
	return map[capability.Name]capability.Probe{
		capability.PDFLibrary: pdfengine.Probe,
		capability.Rasterizer: raster.Probe,
		capability.OCREngine: func() (string, error) {
			_, detail, err := ocr.Detect(ocr.Options{TesseractPath: cfg.TesseractPath})
			return detail, err
		},
		capability.OfficeConverter: capability.BinaryProbe(cfg.SofficePath, []string{"--version"}, "soffice", "libreoffice"),
		capability.AudioTranscoder: capability.BinaryProbe(cfg.FFmpegPath, []string{"-version"}, "ffmpeg"),
	}
}

// ProbeCapabilities runs every probe once, honouring disabled capabilities
func ProbeCapabilities(cfg *config.Config, logger *logrus.Logger) *capability.Registry {
	return capability.ProbeAll(logger, Probes(cfg), func(name capability.Name) bool {
		return cfg.IsCapabilityDisabled(string(name))
	})
}

// New builds a Service around an already probed registry and sweeps stale
// temp resources left by earlier processes
func New(cfg *config.Config, caps *capability.Registry, failures *failurelog.Logger, logger *logrus.Logger) (*Service, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if failures == nil {
		failures = failurelog.Disabled()
	}

	temp, err := tempfs.NewManager(cfg.TempRoot, config.TempPrefix, logger)
	if err != nil {
		return nil, err
	}
	if _, err := temp.Sweep(cfg.StaleAfter); err != nil {
		logger.WithError(err).Warn("Failed to sweep stale temp resources")
	}

	engineCfg := pdfengine.Config{
		Caps:       caps,
		Validation: cfg.PDFValidation,
		Language:   cfg.OCRLanguage,
		Logger:     logger,
	}
	if caps.IsAvailable(capability.Rasterizer) {
		engineCfg.Renderer = raster.NewFitz()
	}
	if caps.IsAvailable(capability.OCREngine) {
		recognizer, _, err := ocr.Detect(ocr.Options{TesseractPath: cfg.TesseractPath})
		if err != nil {
			logger.WithError(err).Warn("OCR engine was detected at startup but could not be initialised")
		} else {
			engineCfg.Recognizer = recognizer
		}
	}

	return &Service{
		caps:   caps,
		temp:   temp,
		engine: pdfengine.New(engineCfg),
		converters: convert.NewSet(caps, convert.Settings{
			SofficePath: cfg.SofficePath,
			FFmpegPath:  cfg.FFmpegPath,
			FFmpegArgs:  cfg.FFmpegArgs,
		}, logger),
		failures:    failures,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}, nil
}

// Capabilities lists the probed backends
func (s *Service) Capabilities() []capability.Capability {
	return s.caps.List()
}

// Tiers exposes the PDF engine's tier list for op
func (s *Service) Tiers(op job.Operation) []pdfengine.Tier {
	return s.engine.Tiers(op)
}

// TempRoot returns the directory holding request temp resources
func (s *Service) TempRoot() string {
	return s.temp.Root()
}

// Execute runs req. Routing and option validation happen before any temp
// resource exists; everything created afterwards is released before Execute
// returns, whatever the outcome.
func (s *Service) Execute(ctx context.Context, req job.Request) (*Response, error) {
	requestID := uuid.NewString()
	start := time.Now()
	ctx, span := telemetry.StartConversionSpan(ctx, requestID, string(req.Operation), req.OutputFormat, len(req.Inputs))

	resp, err := s.execute(ctx, requestID, req)

	rec := telemetry.Conversion{Operation: string(req.Operation), Duration: time.Since(start), Err: err}
	if resp != nil {
		rec.Tier = resp.Tier
		rec.Degraded = resp.Degraded
		rec.Artifacts = len(resp.Artifacts)
	}
	telemetry.EndConversionSpan(span, rec)
	telemetry.RecordConversion(ctx, rec)
	return resp, err
}

func (s *Service) execute(ctx context.Context, requestID string, req job.Request) (*Response, error) {
	log := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"operation":  req.Operation,
	})

	family, err := router.Route(req)
	if err != nil {
		log.WithError(err).Info("Request rejected")
		return nil, err
	}

	var plan *pdfengine.Plan
	if family == router.FamilyPDF {
		if plan, err = s.engine.Prepare(req.Operation, req.Options, req.OutputFormat); err == nil {
			err = plan.CheckInputs(len(req.Inputs))
		}
	} else {
		err = validateConvertOptions(family, req.Options)
	}
	if err != nil {
		log.WithError(err).Info("Invalid options")
		return nil, err
	}

	resp, err := tempfs.WithScope(s.temp, requestID, func(scope *tempfs.Scope) (*Response, error) {
		sources, err := s.materialise(ctx, scope, req)
		if err != nil {
			return nil, err
		}

		var result *job.Result
		if plan != nil {
			result, err = s.engine.Run(ctx, scope, plan, sources)
		} else {
			result, err = s.convert(ctx, scope, family, sources[0], req)
		}
		if err != nil {
			return nil, err
		}

		artifacts, err := collect(result.Outputs)
		if err != nil {
			return nil, err
		}
		return &Response{
			RequestID:  requestID,
			Operation:  req.Operation,
			Artifacts:  artifacts,
			Degraded:   result.Degraded,
			Diagnostic: result.Diagnostic,
			Tier:       result.Tier,
		}, nil
	})

	if err != nil {
		if !job.IsUserError(err) {
			err = job.Unexpected(err)
			log.WithError(err).Error("Conversion failed")
			s.failures.Record(failurelog.Entry{
				RequestID: requestID,
				Operation: string(req.Operation),
				Inputs:    inputNames(req.Inputs),
				Output:    req.OutputFormat,
				Error:     err.Error(),
			})
		} else {
			log.WithError(err).Info("Request refused")
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"tier":      resp.Tier,
		"degraded":  resp.Degraded,
		"artifacts": len(resp.Artifacts),
	}).Info("Conversion complete")
	return resp, nil
}

// materialise writes every input into the scope, enforcing the size limit
func (s *Service) materialise(ctx context.Context, scope *tempfs.Scope, req job.Request) ([]job.Source, error) {
	sources := make([]job.Source, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		if in.Content == nil {
			return nil, job.InvalidOptions("input %s has no content", in.Filename)
		}
		r, err := scope.Write("in-", "."+in.Ext(), in.Content, s.maxFileSize)
		if err != nil {
			if tempfs.IsSizeLimit(err) {
				return nil, job.InvalidOptions("%s: %v", in.Filename, err)
			}
			return nil, err
		}
		if info, err := os.Stat(r.Path); err == nil {
			telemetry.RecordInputSize(ctx, string(req.Operation), info.Size())
		}
		sources = append(sources, job.Source{Filename: in.Filename, Path: r.Path})
	}
	return sources, nil
}

func (s *Service) convert(ctx context.Context, scope *tempfs.Scope, family router.Family, src job.Source, req job.Request) (*job.Result, error) {
	conv, err := s.converters.For(family)
	if err != nil {
		return nil, err
	}
	outExt := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.OutputFormat), "."))

	art, err := conv.Convert(ctx, scope, src, outExt, req.Options)
	if err != nil {
		if errors.Is(err, job.ErrBackendUnavailable) {
			return nil, job.Unexpected(err)
		}
		return nil, err
	}
	return &job.Result{
		Outputs: []job.Output{{Name: convertedName(src, outExt, req.Options), Path: art.Path}},
		Tier:    art.Tier,
	}, nil
}

// convertedName is custom_filename (given the target extension) or
// <stem>_copy.<ext>
func convertedName(src job.Source, outExt string, opts job.Options) string {
	if custom := opts.Get(job.OptCustomFilename); custom != "" {
		custom = strings.TrimSuffix(custom, "."+job.Ext(custom))
		return custom + "." + outExt
	}
	return fmt.Sprintf("%s_copy.%s", src.Stem(), outExt)
}

func validateConvertOptions(family router.Family, opts job.Options) error {
	switch family {
	case router.FamilyImage:
		_, err := convert.QualityFactor(opts.Get(job.OptQuality))
		return err
	case router.FamilyAudio:
		return convert.ValidateBitrate(opts)
	}
	return nil
}

// collect reads every output into memory before the scope releases it.
// Duplicate names get a numeric suffix.
func collect(outputs []job.Output) ([]Artifact, error) {
	seen := make(map[string]int, len(outputs))
	artifacts := make([]Artifact, 0, len(outputs))
	for _, out := range outputs {
		data, err := os.ReadFile(out.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read output %s: %w", out.Name, err)
		}

		name := out.Name
		seen[name]++
		if n := seen[name]; n > 1 {
			ext := job.Ext(name)
			name = fmt.Sprintf("%s_%d.%s", strings.TrimSuffix(name, "."+ext), n, ext)
		}
		artifacts = append(artifacts, Artifact{Name: name, MIMEType: convert.MIMEType(name), Data: data})
	}
	return artifacts, nil
}

func inputNames(inputs []job.Input) []string {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Filename
	}
	return names
}
