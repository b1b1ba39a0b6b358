package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fileconv/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTool() mcp.Tool {
	return mcp.NewTool("pdf_operation",
		mcp.WithString("operation", mcp.Required()),
		mcp.WithArray("file_paths"),
		mcp.WithString("output_dir"),
		mcp.WithNumber("dpi"),
		mcp.WithBoolean("dry_run"),
		mcp.WithObject("options"),
	)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected map[string]any
		wantErr  bool
	}{
		{
			name:     "kebab flags map to snake params",
			args:     []string{"--operation=split", "--output-dir", "/out"},
			expected: map[string]any{"operation": "split", "output_dir": "/out"},
		},
		{
			name:     "comma separated array",
			args:     []string{"--file-paths=/a.pdf, /b.pdf"},
			expected: map[string]any{"file_paths": []any{"/a.pdf", "/b.pdf"}},
		},
		{
			name:     "json array",
			args:     []string{`--file-paths=["/a,b.pdf"]`},
			expected: map[string]any{"file_paths": []any{"/a,b.pdf"}},
		},
		{
			name:     "number and bare boolean",
			args:     []string{"--dpi=300", "--dry-run"},
			expected: map[string]any{"dpi": int64(300), "dry_run": true},
		},
		{
			name:     "object flag",
			args:     []string{`--options={"page_ranges":"1-2"}`},
			expected: map[string]any{"options": map[string]any{"page_ranges": "1-2"}},
		},
		{
			name:     "flags win over json",
			args:     []string{"--operation=merge", `{"operation":"split","output_dir":"/x"}`},
			expected: map[string]any{"operation": "merge", "output_dir": "/x"},
		},
		{name: "missing value", args: []string{"--output-dir"}, wantErr: true},
		{name: "positional", args: []string{"split"}, wantErr: true},
		{name: "bad json", args: []string{"{nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args, testTool())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, int64(90), coerceValue("90", "integer"))
	assert.Equal(t, 0.3, coerceValue("0.3", "number"))
	assert.Equal(t, "high", coerceValue("high", "number"))
	assert.Equal(t, false, coerceValue("no", "boolean"))
	assert.Equal(t, "maybe", coerceValue("maybe", "boolean"))
	assert.Equal(t, "90", coerceValue("90", "string"))
}

func TestSuggest(t *testing.T) {
	ops := []string{"split", "merge", "watermark", "pdf_to_images", "images_to_pdf"}
	assert.Equal(t, `, did you mean "watermark"?`, Suggest("watermrk", ops))
	assert.Equal(t, `, did you mean "pdf_to_images"?`, Suggest("pdf-to-img", ops))
	assert.Empty(t, Suggest("zzz", ops))
}

func TestRenderConversion(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := &Runner{output: OutputText, out: &buf}

	result, err := tools.NewToolResultJSON(tools.ConversionResult{
		RequestID:  "abc",
		Operation:  "watermark",
		Outputs:    []string{"/nonexistent/watermark_a.pdf"},
		Degraded:   true,
		Diagnostic: "watermarking unavailable",
		Tier:       "copy",
	})
	require.NoError(t, err)
	require.NoError(t, r.renderResult(result))

	out := buf.String()
	assert.Contains(t, out, "watermark completed in degraded mode: watermarking unavailable")
	assert.Contains(t, out, "/nonexistent/watermark_a.pdf (?)")
}

func TestRenderPlainText(t *testing.T) {
	var buf bytes.Buffer
	r := &Runner{output: OutputText, out: &buf}
	require.NoError(t, r.renderResult(mcp.NewToolResultText("hello")))
	assert.Equal(t, "hello\n", buf.String())

	buf.Reset()
	assert.Error(t, r.renderResult(mcp.NewToolResultError("failed")))
}
