package pdfengine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/mcp-fileconv/internal/convert"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sirupsen/logrus"
)

func pageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	return n, nil
}

// outputName returns the requested name with a .pdf extension, or fallback
func outputName(requested, fallback string) string {
	if requested == "" {
		return fallback
	}
	if job.Ext(requested) != "pdf" {
		requested += ".pdf"
	}
	return requested
}

// runSplit writes one document per range. Ranges are intersected with the
// page count; a range with no pages left is dropped.
func runSplit(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	count, err := pageCount(src.Path)
	if err != nil {
		return nil, err
	}

	var outputs []job.Output
	for _, r := range x.plan.Ranges {
		clamped, ok := r.Clamp(count)
		if !ok {
			x.engine.logger.WithFields(logrus.Fields{
				"range": r.String(),
				"pages": count,
			}).Info("Dropping page range outside the document")
			continue
		}

		name := fmt.Sprintf("split_%s.pdf", clamped)
		out, err := x.outPath(name)
		if err != nil {
			return nil, err
		}
		if err := api.TrimFile(src.Path, out, []string{clamped.String()}, x.conf()); err != nil {
			return nil, fmt.Errorf("failed to extract pages %s: %w", clamped, err)
		}
		outputs = append(outputs, job.Output{Name: name, Path: out})
	}

	if len(outputs) == 0 {
		return nil, job.InvalidOptions("no page range overlaps the document's %d pages", count)
	}
	return outputs, nil
}

// runMerge appends every input in order
func runMerge(_ context.Context, x *execution) ([]job.Output, error) {
	paths := make([]string, len(x.sources))
	for i, s := range x.sources {
		paths[i] = s.Path
	}

	name := outputName(x.plan.OutputName, "merged.pdf")
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}
	if err := api.MergeCreateFile(paths, out, false, x.conf()); err != nil {
		return nil, fmt.Errorf("failed to merge %d documents: %w", len(paths), err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

func runProtect(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := "protected_" + src.Stem() + ".pdf"
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}

	conf := x.conf()
	conf.UserPW = x.plan.UserPassword
	conf.OwnerPW = x.plan.OwnerPassword
	conf.EncryptUsingAES = true
	conf.EncryptKeyLength = 256

	if err := api.EncryptFile(src.Path, out, conf); err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// runUnlock decrypts with the supplied password. A document that is not
// encrypted is returned unchanged; a password pdfcpu rejects is a user error.
func runUnlock(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := "unlocked_" + src.Stem() + ".pdf"
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}

	conf := x.conf()
	conf.UserPW = x.plan.Password
	conf.OwnerPW = x.plan.Password

	err = api.DecryptFile(src.Path, out, conf)
	switch {
	case err == nil:
	case strings.Contains(strings.ToLower(err.Error()), "not encrypted"):
		x.engine.logger.WithField("file", src.Filename).Debug("Document is not encrypted, returning a copy")
		if err := convert.CopyFile(src.Path, out); err != nil {
			return nil, err
		}
	case strings.Contains(strings.ToLower(err.Error()), "password"):
		return nil, fmt.Errorf("%w: the password does not unlock %s", job.ErrInvalidPassword, src.Filename)
	default:
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// runRotate adds rotation to the selected pages. A selection that misses
// every page leaves the document unchanged.
func runRotate(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := "rotated_" + src.Stem() + ".pdf"
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}

	var selected []string
	if !x.plan.Pages.All {
		count, err := pageCount(src.Path)
		if err != nil {
			return nil, err
		}
		for _, p := range x.plan.Pages.Pages(count) {
			selected = append(selected, strconv.Itoa(p))
		}
		if len(selected) == 0 {
			x.engine.logger.WithField("pages", count).Info("No selected page is in the document, nothing to rotate")
			if err := convert.CopyFile(src.Path, out); err != nil {
				return nil, err
			}
			return []job.Output{{Name: name, Path: out}}, nil
		}
	}

	if err := api.RotateFile(src.Path, out, x.plan.Rotation, selected, x.conf()); err != nil {
		return nil, fmt.Errorf("failed to rotate: %w", err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// watermarkDescription builds a pdfcpu text watermark description
func watermarkDescription(p *Plan) string {
	return fmt.Sprintf("fontname:Helvetica, points:48, rotation:45, opacity:%.2f, position:%s, scalefactor:0.5 rel, fillcolor:#808080",
		p.Opacity, watermarkSpots[p.Position])
}

func runWatermark(_ context.Context, x *execution) ([]job.Output, error) {
	src := x.sources[0]
	name := "watermarked_" + src.Stem() + ".pdf"
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}

	if err := api.AddTextWatermarksFile(src.Path, out, nil, true, x.plan.Text, watermarkDescription(x.plan), x.conf()); err != nil {
		return nil, fmt.Errorf("failed to add watermark: %w", err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}

// runImagesToPDF imports the images in input order, one page each. Formats
// pdfcpu cannot import are re-encoded as PNG first.
func runImagesToPDF(_ context.Context, x *execution) ([]job.Output, error) {
	paths := make([]string, 0, len(x.sources))
	for _, s := range x.sources {
		switch s.Ext() {
		case "jpg", "jpeg", "png":
			paths = append(paths, s.Path)
			continue
		}

		img, err := convert.DecodeImageFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Filename, err)
		}
		normalised, err := x.scope.File("img-", ".png")
		if err != nil {
			return nil, err
		}
		if err := convert.EncodeImageFile(normalised.Path, img, "png", 0); err != nil {
			return nil, err
		}
		paths = append(paths, normalised.Path)
	}

	name := outputName(x.plan.OutputName, "images_to_pdf_"+x.sources[0].Stem()+".pdf")
	out, err := x.outPath(name)
	if err != nil {
		return nil, err
	}
	if err := api.ImportImagesFile(paths, out, nil, x.conf()); err != nil {
		return nil, fmt.Errorf("failed to import images: %w", err)
	}
	return []job.Output{{Name: name, Path: out}}, nil
}
