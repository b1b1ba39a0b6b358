package convert

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/router"
	"github.com/sammcj/mcp-fileconv/internal/tempfs"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScope(t *testing.T) *tempfs.Scope {
	t.Helper()
	m, err := tempfs.NewManager(t.TempDir(), "fileconv-", nil)
	require.NoError(t, err)
	scope := m.NewScope("test")
	t.Cleanup(scope.Close)
	return scope
}

func newSet() *Set {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewSet(capability.NewStatic(nil), Settings{}, logger)
}

func writeSource(t *testing.T, name, content string) job.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return job.Source{Filename: name, Path: path}
}

func convertDocument(t *testing.T, src job.Source, outExt string) string {
	t.Helper()
	conv, err := newSet().For(router.FamilyDocument)
	require.NoError(t, err)
	art, err := conv.Convert(context.Background(), newScope(t), src, outExt, nil)
	require.NoError(t, err)
	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	return string(data)
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "heading", input: "## Install", expected: "Install\n"},
		{name: "emphasis", input: "a **bold** and *soft* and __strong__ word", expected: "a bold and soft and strong word\n"},
		{name: "link keeps text", input: "see [the docs](https://example.com)", expected: "see the docs\n"},
		{name: "image keeps alt", input: "![diagram](d.png)", expected: "diagram\n"},
		{name: "inline code", input: "run `make`", expected: "run make\n"},
		{name: "quote", input: "> quoted", expected: "quoted\n"},
		{name: "rule", input: "above\n---\nbelow", expected: "above\n\nbelow\n"},
		{name: "snake_case untouched", input: "use max_file_size", expected: "use max_file_size\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripMarkdown(tt.input))
		})
	}
}

func TestMarkdownBlocks(t *testing.T) {
	blocks := markdownBlocks("# Title\n\nFirst line\nsecond line\n\n### Sub **bold**\ntext")
	assert.Equal(t, []block{
		{Level: 1, Text: "Title"},
		{Text: "First line second line"},
		{Level: 3, Text: "Sub bold"},
		{Text: "text"},
	}, blocks)
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("Title"))
	assert.Equal(t, 2, headingLevel("Heading2"))
	assert.Equal(t, 3, headingLevel("heading 3"))
	assert.Equal(t, 6, headingLevel("Heading9"))
	assert.Equal(t, 1, headingLevel("HeadingX"))
	assert.Equal(t, 0, headingLevel("Normal"))
}

func TestMarkdownToHTML(t *testing.T) {
	src := writeSource(t, "notes.md", "# Hello\n\nSome *text* & more.\n")
	out := convertDocument(t, src, "html")

	assert.Contains(t, out, "<title>notes</title>")
	assert.Contains(t, out, "<h1>Hello</h1>")
	assert.Contains(t, out, "<em>text</em>")
}

func TestHTMLToMarkdown(t *testing.T) {
	src := writeSource(t, "page.html", "<html><body><h2>Usage</h2><p>Call <strong>now</strong>.</p></body></html>")
	out := convertDocument(t, src, "md")

	assert.Contains(t, out, "## Usage")
	assert.Contains(t, out, "**now**")
}

func TestMarkdownToText(t *testing.T) {
	src := writeSource(t, "readme.md", "# Title\n\nA [link](http://x) here.\n")
	assert.Equal(t, "Title\n\nA link here.\n", convertDocument(t, src, "txt"))
}

func TestSameFormatCopies(t *testing.T) {
	src := writeSource(t, "plain.txt", "unchanged\n")
	assert.Equal(t, "unchanged\n", convertDocument(t, src, "txt"))
}

func TestHTMLNestedBlocksNotRepeated(t *testing.T) {
	src := writeSource(t, "nested.html", "<ul><li><p>first</p></li><li>second</li></ul><blockquote><p>quoted</p></blockquote>")
	assert.Equal(t, "first\n\nsecond\n\nquoted\n", convertDocument(t, src, "txt"))
}

func TestTextWithBOM(t *testing.T) {
	src := writeSource(t, "bom.txt", "\xef\xbb\xbfFirst\n\nSecond")
	assert.Equal(t, "First\n\nSecond\n", convertDocument(t, src, "md"))
}

func TestDocxRoundTrip(t *testing.T) {
	src := writeSource(t, "doc.md", "# Report\n\nBody with <angle> & ampersand.\n\n## Details\n\nMore.")
	docx := convertDocument(t, src, "docx")

	docxSrc := writeSource(t, "doc.docx", docx)
	md := convertDocument(t, docxSrc, "md")
	assert.Equal(t, "# Report\n\nBody with <angle> & ampersand.\n\n## Details\n\nMore.\n", md)
}

func TestHTMLToText(t *testing.T) {
	src := writeSource(t, "list.html", "<h1>Shopping</h1><ul><li>eggs</li><li>milk</li></ul>")
	assert.Equal(t, "Shopping\n\neggs\n\nmilk\n", convertDocument(t, src, "txt"))
}

func TestTextToPDFAndBack(t *testing.T) {
	src := writeSource(t, "letter.txt", "Greetings\n\nRegards")
	pdfData := convertDocument(t, src, "pdf")
	require.True(t, strings.HasPrefix(pdfData, "%PDF-"))

	pdfSrc := writeSource(t, "letter.pdf", pdfData)
	text, err := ExtractPDFText(pdfSrc.Path)
	require.NoError(t, err)
	assert.Contains(t, text, "Greetings")
	assert.Contains(t, text, "Regards")
}

func TestDocxToPDFNeedsOffice(t *testing.T) {
	src := writeSource(t, "doc.md", "# Heading\n\nParagraph")
	docxSrc := writeSource(t, "doc.docx", convertDocument(t, src, "docx"))

	conv, err := newSet().For(router.FamilyDocument)
	require.NoError(t, err)
	art, err := conv.Convert(context.Background(), newScope(t), docxSrc, "pdf", nil)
	assert.ErrorIs(t, err, job.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "office_converter")
	assert.Nil(t, art)
}

func writePNG(t *testing.T, name string, img image.Image) job.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return job.Source{Filename: name, Path: path}
}

func TestImageConversions(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	src := writePNG(t, "dot.png", img)

	conv, err := newSet().For(router.FamilyImage)
	require.NoError(t, err)

	for _, ext := range []string{"jpg", "jpeg", "gif", "bmp", "tiff", "webp", "png"} {
		t.Run(ext, func(t *testing.T) {
			art, err := conv.Convert(context.Background(), newScope(t), src, ext, job.Options{job.OptQuality: "high"})
			require.NoError(t, err)
			assert.Equal(t, "image/"+ext, art.Tier)

			decoded, err := DecodeImageFile(art.Path)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds().Size(), decoded.Bounds().Size())
		})
	}
}

func TestJPEGFlattensTransparency(t *testing.T) {
	src := writePNG(t, "clear.png", image.NewNRGBA(image.Rect(0, 0, 4, 4)))

	conv, err := newSet().For(router.FamilyImage)
	require.NoError(t, err)
	art, err := conv.Convert(context.Background(), newScope(t), src, "jpg", nil)
	require.NoError(t, err)

	decoded, err := DecodeImageFile(art.Path)
	require.NoError(t, err)
	r, g, b, _ := decoded.At(2, 2).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestQualityFactor(t *testing.T) {
	q, err := QualityFactor("")
	require.NoError(t, err)
	assert.Equal(t, QualityMedium, q)

	q, err = QualityFactor("low")
	require.NoError(t, err)
	assert.Equal(t, QualityLow, q)

	_, err = QualityFactor("ultra")
	assert.ErrorIs(t, err, job.ErrInvalidOptions)
}

func TestAudio(t *testing.T) {
	assert.NoError(t, ValidateBitrate(job.Options{job.OptBitrate: "192k"}))
	assert.NoError(t, ValidateBitrate(nil))
	assert.ErrorIs(t, ValidateBitrate(job.Options{job.OptBitrate: "loud"}), job.ErrInvalidOptions)

	conv, err := newSet().For(router.FamilyAudio)
	require.NoError(t, err)
	src := writeSource(t, "song.mp3", "not really audio")
	_, err = conv.Convert(context.Background(), newScope(t), src, "wav", nil)
	assert.ErrorIs(t, err, job.ErrBackendUnavailable)
}

func TestUnknownFamily(t *testing.T) {
	_, err := newSet().For(router.FamilyPDF)
	assert.ErrorIs(t, err, job.ErrRejected)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMEType("split_1-3.pdf"))
	assert.Equal(t, "image/jpeg", MIMEType("a.JPG"))
	assert.Equal(t, "application/octet-stream", MIMEType("blob"))
}
