package pdfengine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/convert"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func pageImageName(stem string, page int, format string) string {
	return fmt.Sprintf("%s_page_%03d.%s", stem, page, format)
}

// runRasterize writes one image per page in the requested format
func runRasterize(ctx context.Context, x *execution) ([]job.Output, error) {
	renderer := x.engine.renderer
	if renderer == nil {
		return nil, job.BackendUnavailable(string(capability.Rasterizer))
	}
	src := x.sources[0]

	var outputs []job.Output
	err := renderer.Render(src.Path, x.plan.DPI, func(page int, img image.Image) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := pageImageName(src.Stem(), page+1, x.plan.Format)
		out, err := x.outPath(name)
		if err != nil {
			return err
		}
		if err := convert.EncodeImageFile(out, img, x.plan.Format, convert.QualityHigh); err != nil {
			return err
		}
		outputs = append(outputs, job.Output{Name: name, Path: out})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

// runRasterizePlaceholder returns a single image saying rendering is unavailable
func runRasterizePlaceholder(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := pageImageName(src.Stem(), 1, x.plan.Format)
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}

	img := placeholder("PDF to image conversion is unavailable on this server.", src.Filename)
	if err := convert.EncodeImageFile(out, img, x.plan.Format, convert.QualityHigh); err != nil {
		return nil, err
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// placeholder draws lines of text on a white canvas
func placeholder(lines ...string) image.Image {
	const (
		width      = 640
		lineHeight = 20
		margin     = 24
	)
	img := image.NewRGBA(image.Rect(0, 0, width, margin*2+lineHeight*len(lines)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		d.Dot = fixed.P(margin, margin+lineHeight*(i+1))
		d.DrawString(line)
	}
	return img
}
