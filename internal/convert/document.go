package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/tempfs"
	"github.com/sirupsen/logrus"
)

// block is one paragraph or heading of an extracted document. Level 0 is body
// text; 1-6 are heading levels.
type block struct {
	Level int
	Text  string
}

// Documents converts between pdf, docx, txt, md and html. Text-family outputs
// come from extracted plain text or light markup reformatting and are lossy.
type Documents struct {
	caps        capability.Checker
	sofficePath string
	logger      *logrus.Logger
}

// Convert dispatches on the (input, output) extension pair
func (d *Documents) Convert(ctx context.Context, scope *tempfs.Scope, src job.Source, outExt string, opts job.Options) (*Artifact, error) {
	in := src.Ext()

	if in == "docx" && outExt == "pdf" {
		if !d.caps.IsAvailable(capability.OfficeConverter) {
			return nil, job.BackendUnavailable(string(capability.OfficeConverter))
		}
		return d.officeToPDF(ctx, scope, src)
	}

	out, err := scope.File("doc-", "."+outExt)
	if err != nil {
		return nil, err
	}

	switch {
	case in == outExt:
		return &Artifact{Path: out.Path, Tier: "copy"}, CopyFile(src.Path, out.Path)
	case in == "md" && outExt == "html":
		return &Artifact{Path: out.Path, Tier: "goldmark"}, markdownFileToHTML(src.Path, out.Path, src.Stem())
	case in == "html" && outExt == "md":
		return &Artifact{Path: out.Path, Tier: "html-to-markdown"}, htmlFileToMarkdown(src.Path, out.Path)
	case in == "md" && outExt == "txt":
		return &Artifact{Path: out.Path, Tier: "markdown-strip"}, markdownFileToText(src.Path, out.Path)
	}

	blocks, err := readBlocks(src.Path, in)
	if err != nil {
		return nil, err
	}
	d.logger.WithFields(logrus.Fields{
		"from":   in,
		"to":     outExt,
		"blocks": len(blocks),
	}).Debug("Extracted document structure")

	if err := writeBlocks(out.Path, outExt, blocks, src.Stem()); err != nil {
		return nil, err
	}
	return &Artifact{Path: out.Path, Tier: "extract/" + in}, nil
}

func readBlocks(path, ext string) ([]block, error) {
	switch ext {
	case "pdf":
		return readPDFBlocks(path)
	case "docx":
		return readDocxBlocks(path)
	case "txt":
		text, err := readTextFile(path)
		if err != nil {
			return nil, err
		}
		return paragraphs(text), nil
	case "md":
		text, err := readTextFile(path)
		if err != nil {
			return nil, err
		}
		return markdownBlocks(text), nil
	case "html":
		return readHTMLBlocks(path)
	default:
		return nil, job.Rejected("cannot read .%s documents", ext)
	}
}

func writeBlocks(path, ext string, blocks []block, title string) error {
	switch ext {
	case "txt":
		return os.WriteFile(path, []byte(blocksToText(blocks)), 0600)
	case "md":
		return os.WriteFile(path, []byte(blocksToMarkdown(blocks)), 0600)
	case "html":
		return os.WriteFile(path, []byte(blocksToHTML(blocks, title)), 0600)
	case "docx":
		return writeDocx(path, blocks)
	case "pdf":
		return writeTextPDF(path, blocks)
	default:
		return job.Rejected("cannot write .%s documents", ext)
	}
}

// paragraphs splits text on blank lines, folding single line breaks inside a
// paragraph into spaces
func paragraphs(text string) []block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []block
	for chunk := range strings.SplitSeq(text, "\n\n") {
		lines := strings.Fields(strings.ReplaceAll(chunk, "\n", " "))
		if len(lines) == 0 {
			continue
		}
		out = append(out, block{Text: strings.Join(lines, " ")})
	}
	return out
}

func blocksToText(blocks []block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func blocksToMarkdown(blocks []block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Level > 0 {
			parts = append(parts, strings.Repeat("#", b.Level)+" "+b.Text)
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// officeToPDF runs soffice headless. Each call gets its own profile directory
// so concurrent conversions do not contend for the user installation lock.
func (d *Documents) officeToPDF(ctx context.Context, scope *tempfs.Scope, src job.Source) (*Artifact, error) {
	bin, err := capability.ResolveBinary(d.sofficePath, "soffice", "libreoffice")
	if err != nil {
		return nil, err
	}

	work, err := scope.Dir("office-")
	if err != nil {
		return nil, err
	}
	profile := filepath.Join(work.Path, "profile")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-env:UserInstallation=file://"+filepath.ToSlash(profile),
		"--headless", "--convert-to", "pdf", "--outdir", work.Path, src.Path)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("soffice failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	base := filepath.Base(src.Path)
	out := filepath.Join(work.Path, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
	if _, err := os.Stat(out); err != nil {
		return nil, fmt.Errorf("soffice produced no output: %w", err)
	}
	return &Artifact{Path: out, Tier: "soffice"}, nil
}
