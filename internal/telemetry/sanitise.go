package telemetry

import (
	"encoding/json"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// secretKeyPattern matches argument names whose values must never be exported
var secretKeyPattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|authorization)`)

// SanitiseArguments renders tool arguments as JSON with secret values
// redacted at any depth. user_password, owner_password and password inside
// the pdf_operation options map are all caught by name.
func SanitiseArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(sanitiseValue(args))
	if err != nil {
		return `{"error": "failed to serialise arguments"}`
	}
	return string(data)
}

func sanitiseValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if secretKeyPattern.MatchString(k) {
				out[k] = redacted
				continue
			}
			out[k] = sanitiseValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = sanitiseValue(inner)
		}
		return out
	default:
		return v
	}
}

// TruncateString shortens s to maxLen bytes, ending with an ellipsis
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", max(maxLen, 0))
	}
	return s[:maxLen-3] + "..."
}
