package job

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRanges(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		expected []PageRange
		hasError bool
	}{
		{name: "single page", spec: "3", expected: []PageRange{{3, 3}}},
		{name: "range", spec: "2-4", expected: []PageRange{{2, 4}}},
		{name: "mixed with spaces", spec: " 1-3, 5 ,7-9", expected: []PageRange{{1, 3}, {5, 5}, {7, 9}}},
		{name: "order preserved", spec: "5,1", expected: []PageRange{{5, 5}, {1, 1}}},
		{name: "empty parts skipped", spec: "1,,2", expected: []PageRange{{1, 1}, {2, 2}}},
		{name: "beyond any page count is accepted", spec: "100-200", expected: []PageRange{{100, 200}}},
		{name: "blank", spec: "  ", hasError: true},
		{name: "only commas", spec: ",,", hasError: true},
		{name: "start after end", spec: "5-3", hasError: true},
		{name: "zero start left for clamping", spec: "0-2", expected: []PageRange{{0, 2}}},
		{name: "negative", spec: "-2", hasError: true},
		{name: "letters", spec: "abc", hasError: true},
		{name: "open range", spec: "3-", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges, err := ParsePageRanges(tt.spec)
			if tt.hasError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ranges)
		})
	}
}

func TestPageRangeClamp(t *testing.T) {
	clamped, ok := PageRange{Start: 3, End: 10}.Clamp(5)
	require.True(t, ok)
	assert.Equal(t, PageRange{Start: 3, End: 5}, clamped)
	assert.Equal(t, "3-5", clamped.String())
	assert.Equal(t, []int{2, 3, 4}, clamped.Indices())

	_, ok = PageRange{Start: 6, End: 8}.Clamp(5)
	assert.False(t, ok)

	clamped, ok = PageRange{Start: 0, End: 2}.Clamp(5)
	require.True(t, ok)
	assert.Equal(t, PageRange{Start: 1, End: 2}, clamped)

	_, ok = PageRange{Start: 0, End: 0}.Clamp(5)
	assert.False(t, ok)

	assert.Equal(t, "4", PageRange{Start: 4, End: 4}.String())
}

func TestPageSelection(t *testing.T) {
	all, err := ParsePageSelection("all")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, all.Pages(3))

	blank, err := ParsePageSelection("")
	require.NoError(t, err)
	assert.True(t, blank.All)

	sel, err := ParsePageSelection("4-9,1,2-3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, sel.Pages(5))

	zero, err := ParsePageSelection("0,1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, zero.Pages(5))

	outside, err := ParsePageSelection("7")
	require.NoError(t, err)
	assert.Empty(t, outside.Pages(5))

	_, err = ParsePageSelection("x")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestParseOperation(t *testing.T) {
	op, ok := ParseOperation("PDF-to-Images")
	require.True(t, ok)
	assert.Equal(t, OpPDFToImages, op)

	op, ok = ParseOperation("convert")
	require.True(t, ok)
	assert.Equal(t, OpConvert, op)

	_, ok = ParseOperation("explode")
	assert.False(t, ok)
}

func TestOptions(t *testing.T) {
	opts := FromArgs(map[string]any{
		"rotation": float64(90),
		"opacity":  0.25,
		"dpi":      int64(300),
		"format":   " png ",
		"flag":     true,
		"nested":   map[string]any{"x": 1},
	})

	assert.Equal(t, "png", opts.Get(OptFormat))
	assert.Equal(t, "true", opts.Get("flag"))
	assert.NotContains(t, opts, "nested")

	rotation, ok, err := opts.Int(OptRotation)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90, rotation)

	dpi, ok, err := opts.Int(OptDPI)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 300, dpi)

	opacity, ok, err := opts.Float(OptOpacity)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.25, opacity, 1e-9)

	_, ok, err = opts.Int(OptPages)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Options{OptDPI: "high"}.Int(OptDPI)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	assert.Equal(t, "center", opts.GetDefault(OptPosition, "center"))

	clone := opts.Clone()
	clone[OptFormat] = "jpg"
	assert.Equal(t, "png", opts.Get(OptFormat))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsUserError(Rejected("mp3 to pdf")))
	assert.True(t, IsUserError(InvalidOptions("bad")))
	assert.True(t, IsUserError(fmt.Errorf("unlock: %w", ErrInvalidPassword)))
	assert.False(t, IsUserError(BackendUnavailable("tesseract")))
	assert.False(t, IsUserError(errors.New("disk full")))

	wrapped := Unexpected(errors.New("disk full"))
	assert.ErrorIs(t, wrapped, ErrUnexpected)
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.Same(t, wrapped, Unexpected(wrapped))
	assert.NoError(t, Unexpected(nil))
}

func TestInputNames(t *testing.T) {
	in := Input{Filename: "/tmp/Report.Final.PDF"}
	assert.Equal(t, "pdf", in.Ext())
	assert.Equal(t, "Report.Final", in.Stem())

	src := Source{Filename: "notes.md", Path: "/tmp/fileconv-in-1.md"}
	assert.Equal(t, "md", src.Ext())
	assert.Equal(t, "notes", src.Stem())
}
