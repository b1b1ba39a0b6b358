package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"

	"github.com/sammcj/mcp-fileconv/internal/capability"
)

// CLI runs the tesseract binary, feeding the image on stdin as PNG
type CLI struct {
	path   string
	detail string
}

// NewCLI resolves the tesseract binary and checks that it runs
func NewCLI(configured string) (*CLI, error) {
	detail, err := capability.BinaryProbe(configured, []string{"--version"}, "tesseract")()
	if err != nil {
		return nil, err
	}
	path, err := capability.ResolveBinary(configured, "tesseract")
	if err != nil {
		return nil, err
	}
	return &CLI{path: path, detail: detail}, nil
}

func (c *CLI) Name() string { return "tesseract-cli" }

// Detail reports the binary path and version
func (c *CLI) Detail() string { return c.detail }

// Recognize pipes img through `tesseract stdin stdout -l language`
func (c *CLI) Recognize(ctx context.Context, img image.Image, language string) (string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}

	args := []string{"stdin", "stdout"}
	if language != "" {
		args = append(args, "-l", language)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdin = &in
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
