package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sammcj/mcp-fileconv/internal/conversion"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArtifactsNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "merged.pdf"), []byte("existing"), 0600))

	paths, err := WriteArtifacts(dir, []conversion.Artifact{
		{Name: "merged.pdf", Data: []byte("first")},
		{Name: "merged.pdf", Data: []byte("second")},
		{Name: "../escape.txt", Data: []byte("contained")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "merged-1.pdf"),
		filepath.Join(dir, "merged-2.pdf"),
		filepath.Join(dir, "escape.txt"),
	}, paths)

	existing, err := os.ReadFile(filepath.Join(dir, "merged.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(existing))

	second, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "second", string(second))
}

func TestWriteArtifactsRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()

	paths, err := WriteArtifacts(dir, []conversion.Artifact{
		{Name: "page_001.png", Data: []byte("one")},
		{Name: "page\x00002.png", Data: []byte("two")},
	})
	require.Error(t, err)
	assert.Nil(t, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRequireAbsolute(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
		wantErr  bool
	}{
		{name: "absolute", path: "/tmp/a/../b.pdf", expected: "/tmp/b.pdf"},
		{name: "trimmed", path: "  /tmp/c.md ", expected: "/tmp/c.md"},
		{name: "relative", path: "docs/a.md", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RequireAbsolute("file_path", tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestOpenInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# hi"), 0600))

	in, f, err := OpenInput(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, "notes.md", in.Filename)

	_, _, err = OpenInput(dir)
	assert.Error(t, err)
	_, _, err = OpenInput(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestConversionError(t *testing.T) {
	userErrors := []error{
		job.Rejected("mp3 to pdf"),
		job.InvalidOptions("rotation must be 90, 180 or 270"),
		fmt.Errorf("%w: wrong", job.ErrInvalidPassword),
	}
	for _, err := range userErrors {
		assert.Same(t, err, ConversionError(err))
	}

	internal := job.Unexpected(errors.New("/tmp/fileconv-in-123.pdf: corrupt xref"))
	mapped := ConversionError(internal)
	assert.NotContains(t, mapped.Error(), "/tmp")
	assert.Contains(t, mapped.Error(), "conversion failed")
}

func TestSummarise(t *testing.T) {
	resp := &conversion.Response{
		RequestID:  "id",
		Operation:  job.OpCompress,
		Degraded:   true,
		Diagnostic: "compression unavailable",
		Tier:       "copy",
	}
	got := Summarise(resp, []string{"/out/compress_a.pdf"})
	assert.Equal(t, ConversionResult{
		RequestID:  "id",
		Operation:  "compress",
		Outputs:    []string{"/out/compress_a.pdf"},
		Degraded:   true,
		Diagnostic: "compression unavailable",
		Tier:       "copy",
	}, got)
}
