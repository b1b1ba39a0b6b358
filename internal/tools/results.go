package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fileconv/internal/conversion"
	"github.com/sammcj/mcp-fileconv/internal/job"
)

// ConversionResult is the JSON body returned by the conversion tools
type ConversionResult struct {
	RequestID  string   `json:"request_id"`
	Operation  string   `json:"operation"`
	Outputs    []string `json:"outputs"`
	Degraded   bool     `json:"degraded"`
	Diagnostic string   `json:"diagnostic,omitempty"`
	Tier       string   `json:"tier"`
}

// NewToolResultJSON marshals data as indented JSON text
func NewToolResultJSON(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// StringArg returns a trimmed string argument, or "" when absent
func StringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// RequireAbsolute returns path cleaned, or an error when it is not absolute
func RequireAbsolute(param, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("missing required parameter: %s", param)
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%s must be an absolute path, got %s", param, path)
	}
	return filepath.Clean(path), nil
}

// OpenInput opens path for a request. The caller closes the returned file.
func OpenInput(path string) (job.Input, *os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return job.Input{}, nil, fmt.Errorf("cannot read input %s: %w", path, err)
	}
	if info.IsDir() {
		return job.Input{}, nil, fmt.Errorf("input %s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return job.Input{}, nil, fmt.Errorf("cannot open input %s: %w", path, err)
	}
	return job.Input{Filename: filepath.Base(path), Content: f}, f, nil
}

// WriteArtifacts saves every artifact under dir and returns the written paths.
// Existing files are never overwritten; a numeric suffix is added instead.
// If any artifact fails, the ones already written are removed again.
func WriteArtifacts(dir string, artifacts []conversion.Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path, err := writeUnique(dir, filepath.Base(a.Name), a.Data)
		if err != nil {
			for _, written := range paths {
				_ = os.Remove(written)
			}
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeUnique(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		_, writeErr := f.Write(data)
		if closeErr := f.Close(); writeErr == nil {
			writeErr = closeErr
		}
		if writeErr != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("failed to write %s: %w", path, writeErr)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

// Summarise builds the tool response for a finished conversion
func Summarise(resp *conversion.Response, paths []string) ConversionResult {
	return ConversionResult{
		RequestID:  resp.RequestID,
		Operation:  string(resp.Operation),
		Outputs:    paths,
		Degraded:   resp.Degraded,
		Diagnostic: resp.Diagnostic,
		Tier:       resp.Tier,
	}
}

// ConversionError maps core errors to what the client sees. User errors keep
// their message; anything else becomes a generic failure with the request
// logged server side.
func ConversionError(err error) error {
	switch {
	case errors.Is(err, job.ErrRejected),
		errors.Is(err, job.ErrInvalidOptions),
		errors.Is(err, job.ErrInvalidPassword):
		return err
	default:
		return errors.New("conversion failed unexpectedly, see the server log for details")
	}
}
