package conversion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/config"
	"github.com/sammcj/mcp-fileconv/internal/failurelog"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, caps map[capability.Name]bool, failures *failurelog.Logger) *Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.TempRoot = t.TempDir()
	cfg.MaxFileSize = 1024 * 1024
	svc, err := New(cfg, capability.NewStatic(caps), failures, nil)
	require.NoError(t, err)
	return svc
}

// leftovers lists temp entries, ignoring hidden lock files
func leftovers(t *testing.T, svc *Service) []string {
	t.Helper()
	entries, err := os.ReadDir(svc.TempRoot())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

func textInput(name, content string) job.Input {
	return job.Input{Filename: name, Content: strings.NewReader(content)}
}

func pdfBytes(t *testing.T, pages int) string {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for range pages {
		doc.AddPage()
		doc.Cell(40, 10, "content")
	}
	var b strings.Builder
	require.NoError(t, doc.Output(&b))
	return b.String()
}

func TestConvertDocument(t *testing.T) {
	svc := newService(t, nil, nil)

	resp, err := svc.Execute(context.Background(), job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{textInput("notes.md", "# Title\n\nbody")},
		OutputFormat: "HTML",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Artifacts, 1)
	assert.Equal(t, "notes_copy.html", resp.Artifacts[0].Name)
	assert.Equal(t, "text/html; charset=utf-8", resp.Artifacts[0].MIMEType)
	assert.Contains(t, string(resp.Artifacts[0].Data), "<h1>Title</h1>")
	assert.Empty(t, leftovers(t, svc))
}

func TestConvertCustomFilename(t *testing.T) {
	svc := newService(t, nil, nil)

	resp, err := svc.Execute(context.Background(), job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{textInput("notes.md", "plain")},
		OutputFormat: "txt",
		Options:      job.Options{job.OptCustomFilename: "summary.md"},
	})
	require.NoError(t, err)
	assert.Equal(t, "summary.txt", resp.Artifacts[0].Name)
}

func TestDocxToPDFWithoutOfficeFails(t *testing.T) {
	svc := newService(t, nil, nil)

	docx, err := svc.Execute(context.Background(), job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{textInput("report.md", "# Report\n\nbody")},
		OutputFormat: "docx",
	})
	require.NoError(t, err)
	require.Len(t, docx.Artifacts, 1)

	resp, err := svc.Execute(context.Background(), job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{{Filename: "report.docx", Content: strings.NewReader(string(docx.Artifacts[0].Data))}},
		OutputFormat: "pdf",
	})
	assert.ErrorIs(t, err, job.ErrUnexpected)
	assert.ErrorIs(t, err, job.ErrBackendUnavailable)
	assert.Nil(t, resp)
	assert.Empty(t, leftovers(t, svc))
}

func TestRejectedBeforeTempFiles(t *testing.T) {
	svc := newService(t, nil, nil)

	_, err := svc.Execute(context.Background(), job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{textInput("song.mp3", "id3")},
		OutputFormat: "pdf",
	})
	assert.ErrorIs(t, err, job.ErrRejected)
	assert.Empty(t, leftovers(t, svc))
}

func TestInvalidOptionsBeforeTempFiles(t *testing.T) {
	svc := newService(t, map[capability.Name]bool{capability.PDFLibrary: true}, nil)

	_, err := svc.Execute(context.Background(), job.Request{
		Operation: job.OpRotate,
		Inputs:    []job.Input{textInput("a.pdf", pdfBytes(t, 1))},
		Options:   job.Options{job.OptRotation: "33"},
	})
	assert.ErrorIs(t, err, job.ErrInvalidOptions)

	_, err = svc.Execute(context.Background(), job.Request{
		Operation: job.OpMerge,
		Inputs:    []job.Input{textInput("a.pdf", pdfBytes(t, 1))},
	})
	assert.ErrorIs(t, err, job.ErrInvalidOptions)
	assert.Empty(t, leftovers(t, svc))
}

func TestSizeLimit(t *testing.T) {
	svc := newService(t, nil, nil)
	svc.maxFileSize = 4

	_, err := svc.Execute(context.Background(), job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{textInput("big.txt", "more than four bytes")},
		OutputFormat: "md",
	})
	assert.ErrorIs(t, err, job.ErrInvalidOptions)
	assert.Empty(t, leftovers(t, svc))
}

func TestMissingContent(t *testing.T) {
	svc := newService(t, nil, nil)

	_, err := svc.Execute(context.Background(), job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{{Filename: "a.txt"}},
		OutputFormat: "md",
	})
	assert.ErrorIs(t, err, job.ErrInvalidOptions)
}

func TestSplitProducesArtifacts(t *testing.T) {
	svc := newService(t, map[capability.Name]bool{capability.PDFLibrary: true}, nil)

	resp, err := svc.Execute(context.Background(), job.Request{
		Operation: job.OpSplit,
		Inputs:    []job.Input{textInput("report.pdf", pdfBytes(t, 3))},
		Options:   job.Options{job.OptPageRanges: "1,2-3"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Artifacts, 2)
	assert.Equal(t, "split_1.pdf", resp.Artifacts[0].Name)
	assert.Equal(t, "split_2-3.pdf", resp.Artifacts[1].Name)
	for _, a := range resp.Artifacts {
		assert.True(t, strings.HasPrefix(string(a.Data), "%PDF-"))
		assert.Equal(t, "application/pdf", a.MIMEType)
	}
	assert.Empty(t, leftovers(t, svc))
}

func TestUnexpectedFailureIsRecorded(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "failures.log")
	failures, err := failurelog.Open(logPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = failures.Close() })

	svc := newService(t, map[capability.Name]bool{capability.PDFLibrary: true}, failures)

	_, err = svc.Execute(context.Background(), job.Request{
		Operation: job.OpSplit,
		Inputs:    []job.Input{textInput("broken.pdf", "this is not a PDF")},
		Options:   job.Options{job.OptPageRanges: "1"},
	})
	assert.ErrorIs(t, err, job.ErrUnexpected)
	assert.Empty(t, leftovers(t, svc))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), "broken.pdf")
	}, time.Second, 10*time.Millisecond)
}

func TestCollectSuffixesDuplicates(t *testing.T) {
	dir := t.TempDir()
	var outputs []job.Output
	for i, name := range []string{"page.png", "page.png", "other.png", "page.png"} {
		path := filepath.Join(dir, string(rune('a'+i)))
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0600))
		outputs = append(outputs, job.Output{Name: name, Path: path})
	}

	artifacts, err := collect(outputs)
	require.NoError(t, err)
	var names []string
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"page.png", "page_2.png", "other.png", "page_3.png"}, names)
	assert.Equal(t, []byte{3}, artifacts[3].Data)
}

func TestConvertedName(t *testing.T) {
	src := job.Source{Filename: "My Report.docx"}
	assert.Equal(t, "My Report_copy.pdf", convertedName(src, "pdf", nil))
	assert.Equal(t, "final.pdf", convertedName(src, "pdf", job.Options{job.OptCustomFilename: "final"}))
	assert.Equal(t, "final.pdf", convertedName(src, "pdf", job.Options{job.OptCustomFilename: "final.docx"}))
}
