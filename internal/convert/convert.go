// Package convert holds the single-tier format converters for the document,
// image and audio families. Each converter either succeeds or fails; there is
// no fallback chain here.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/router"
	"github.com/sammcj/mcp-fileconv/internal/tempfs"
	"github.com/sirupsen/logrus"
)

// Artifact is a converter's output file inside the request scope
type Artifact struct {
	Path string
	// Tier names the path the converter took, e.g. "soffice" or "image/png"
	Tier string
}

// Converter turns one source into the outExt format
type Converter interface {
	Convert(ctx context.Context, scope *tempfs.Scope, src job.Source, outExt string, opts job.Options) (*Artifact, error)
}

// Settings configures the converters that shell out to external tools
type Settings struct {
	SofficePath string
	FFmpegPath  string
	FFmpegArgs  []string
}

// Set holds one stateless converter per family
type Set struct {
	converters map[router.Family]Converter
}

// NewSet builds the converters. caps decides whether the external tools are
// used; it is consulted per call and never mutated.
func NewSet(caps capability.Checker, settings Settings, logger *logrus.Logger) *Set {
	return &Set{converters: map[router.Family]Converter{
		router.FamilyDocument: &Documents{caps: caps, sofficePath: settings.SofficePath, logger: logger},
		router.FamilyImage:    Images{},
		router.FamilyAudio:    &Audio{caps: caps, ffmpegPath: settings.FFmpegPath, extraArgs: settings.FFmpegArgs},
	}}
}

// For returns the converter for family
func (s *Set) For(family router.Family) (Converter, error) {
	c, ok := s.converters[family]
	if !ok {
		return nil, job.Rejected("no converter for %s family", family)
	}
	return c, nil
}

// CopyFile copies src to dst, creating or truncating dst
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
