//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Native recognises text through libtesseract in-process
type Native struct {
	clientFactory func() *gosseract.Client
}

func (n *Native) Name() string { return "tesseract-native" }

// Recognize performs OCR on a single image with a fresh client
func (n *Native) Recognize(ctx context.Context, img image.Image, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}

	c := n.clientFactory()
	defer func() { _ = c.Close() }()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if language != "" {
		if err := c.SetLanguage(language); err != nil {
			return "", fmt.Errorf("set language: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

func detectNative() (Engine, string, error) {
	c := gosseract.NewClient()
	defer func() { _ = c.Close() }()
	version := c.Version()
	if version == "" {
		return nil, "", fmt.Errorf("libtesseract did not initialise")
	}
	return &Native{clientFactory: gosseract.NewClient}, "libtesseract " + version, nil
}
