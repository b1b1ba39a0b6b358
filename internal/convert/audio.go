package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/tempfs"
)

var bitratePattern = regexp.MustCompile(`^[0-9]{2,4}k$`)

// Audio transcodes with ffmpeg
type Audio struct {
	caps       capability.Checker
	ffmpegPath string
	extraArgs  []string
}

// ValidateBitrate checks the optional bitrate option
func ValidateBitrate(opts job.Options) error {
	if b := opts.Get(job.OptBitrate); b != "" && !bitratePattern.MatchString(b) {
		return job.InvalidOptions("bitrate must look like 192k, got %q", b)
	}
	return nil
}

// Convert runs ffmpeg -i src [extra args] [-b:a bitrate] out
func (a *Audio) Convert(ctx context.Context, scope *tempfs.Scope, src job.Source, outExt string, opts job.Options) (*Artifact, error) {
	if err := ValidateBitrate(opts); err != nil {
		return nil, err
	}
	if !a.caps.IsAvailable(capability.AudioTranscoder) {
		return nil, job.BackendUnavailable(string(capability.AudioTranscoder))
	}

	bin, err := capability.ResolveBinary(a.ffmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}

	// ffmpeg refuses to overwrite without -y, and the scope pre-creates the file
	out, err := scope.File("audio-", "."+outExt)
	if err != nil {
		return nil, err
	}

	args := []string{"-y", "-i", src.Path}
	args = append(args, a.extraArgs...)
	if b := opts.Get(job.OptBitrate); b != "" {
		args = append(args, "-b:a", b)
	}
	args = append(args, out.Path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return &Artifact{Path: out.Path, Tier: "ffmpeg"}, nil
}
