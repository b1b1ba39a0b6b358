// Package cli runs the conversion tools from the command line without an MCP
// server. Tools are invoked in-process through the registry.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-fileconv/internal/registry"
	"github.com/sammcj/mcp-fileconv/internal/tools"
	"github.com/sirupsen/logrus"
)

// OutputFormat controls how tool results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Runner executes CLI commands against the tool registry.
type Runner struct {
	logger *logrus.Logger
	output OutputFormat
	out    io.Writer
}

// NewRunner creates a Runner that writes to stdout.
func NewRunner(logger *logrus.Logger, output OutputFormat) *Runner {
	return &Runner{logger: logger, output: output, out: os.Stdout}
}

// ListTools prints all enabled tools with their descriptions.
func (r *Runner) ListTools() error {
	names := registry.GetEnabledToolNames()

	if r.output == OutputJSON {
		type jsonEntry struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		out := make([]jsonEntry, 0, len(names))
		for _, name := range names {
			tool, _ := registry.GetTool(name)
			out = append(out, jsonEntry{Name: name, Description: firstLine(tool.Definition().Description)})
		}
		return writeJSON(r.out, out)
	}

	tw := newTable("Tool", "Description")
	for _, name := range names {
		tool, _ := registry.GetTool(name)
		tw.AppendRow(table.Row{name, firstLine(tool.Definition().Description)})
	}
	_, err := fmt.Fprintln(r.out, tw.Render())
	return err
}

// HelpTool prints the schema and usage information for a single tool.
func (r *Runner) HelpTool(name string) error {
	tool, err := lookupTool(name)
	if err != nil {
		return err
	}
	def := tool.Definition()

	if r.output == OutputJSON {
		return writeJSON(r.out, def)
	}

	fmt.Fprintf(r.out, "Tool: %s\n\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(r.out, "%s\n\n", def.Description)
	}

	props := def.InputSchema.Properties
	if len(props) == 0 {
		fmt.Fprintln(r.out, "No parameters.")
		return nil
	}
	required := toSet(def.InputSchema.Required)

	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	slices.Sort(names)

	tw := newTable("Flag", "Type", "Description")
	for _, pName := range names {
		pMap, ok := props[pName].(map[string]any)
		if !ok {
			continue
		}
		pType, _ := pMap["type"].(string)
		pDesc, _ := pMap["description"].(string)
		if required[pName] {
			pDesc += " (required)"
		}
		tw.AppendRow(table.Row{"--" + toFlagName(pName), pType, firstLine(pDesc) + formatEnum(pMap)})
	}
	_, err = fmt.Fprintln(r.out, tw.Render())
	return err
}

// RunTool executes a tool by name with the given arguments.
// args can be:
//   - A single JSON string: '{"key": "value"}'
//   - Flag-style arguments: --key=value --flag
//   - Mixed: --key=value '{"other": "json"}'  (flags take precedence)
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	tool, err := lookupTool(name)
	if err != nil {
		return err
	}

	params, err := parseArgs(args, tool.Definition())
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}
	return r.Execute(ctx, tool.Definition().Name, params)
}

// Execute runs a tool with already decoded parameters and renders its result
func (r *Runner) Execute(ctx context.Context, name string, params map[string]any) error {
	tool, err := lookupTool(name)
	if err != nil {
		return err
	}

	result, err := tool.Execute(ctx, r.logger, params)
	if err != nil {
		return fmt.Errorf("tool error: %w", err)
	}
	return r.renderResult(result)
}

// lookupTool resolves name, accepting kebab-case, and suggests close matches
// when nothing is registered under it
func lookupTool(name string) (tools.Tool, error) {
	if tool, ok := registry.GetTool(name); ok {
		return tool, nil
	}
	if tool, ok := registry.GetTool(strings.ReplaceAll(name, "-", "_")); ok {
		return tool, nil
	}
	return nil, fmt.Errorf("unknown tool: %s%s (run 'mcp-fileconv cli list' to see available tools)",
		name, Suggest(name, registry.GetEnabledToolNames()))
}

// Suggest returns ", did you mean X?" for the closest candidate, or "" when
// nothing is close
func Suggest(input string, candidates []string) string {
	matches := fuzzy.Find(strings.ReplaceAll(input, "-", "_"), candidates)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(", did you mean %q?", matches[0].Str)
}

// parseArgs converts CLI arguments into a map[string]any suitable for tool.Execute().
// Supports JSON input, --key=value flags, and --flag (boolean true).
func parseArgs(args []string, def mcp.Tool) (map[string]any, error) {
	params := make(map[string]any)
	schema := buildSchemaInfo(def)

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "{") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(arg), &obj); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}
			for k, v := range obj {
				if _, exists := params[k]; !exists {
					params[k] = v
				}
			}
			continue
		}

		if strings.HasPrefix(arg, "--") {
			key, val, err := parseFlag(arg, args, &i, schema)
			if err != nil {
				return nil, err
			}
			params[key] = val
			continue
		}

		return nil, fmt.Errorf("unexpected argument: %s (use --key=value flags or pass a JSON object)", arg)
	}

	return params, nil
}

// schemaInfo holds resolved schema information for argument parsing.
type schemaInfo struct {
	// typeMap maps actual parameter names to their JSON Schema types
	typeMap map[string]string
	// flagToParam maps kebab-case flag names to actual parameter names
	flagToParam map[string]string
}

// parseFlag parses a single --key=value or --key value or --flag (bool true).
func parseFlag(arg string, args []string, idx *int, schema schemaInfo) (string, any, error) {
	stripped := strings.TrimPrefix(arg, "--")

	if flagName, rawVal, found := strings.Cut(stripped, "="); found {
		paramName := schema.resolveParam(flagName)
		return paramName, coerceValue(rawVal, schema.typeMap[paramName]), nil
	}

	flagName := stripped
	paramName := schema.resolveParam(flagName)
	if schema.typeMap[paramName] == "boolean" {
		return paramName, true, nil
	}

	*idx++
	if *idx >= len(args) {
		return "", nil, fmt.Errorf("flag --%s requires a value", flagName)
	}
	return paramName, coerceValue(args[*idx], schema.typeMap[paramName]), nil
}

// resolveParam converts a kebab-case flag name to the actual parameter name.
// Falls back to snake_case.
func (s schemaInfo) resolveParam(flagName string) string {
	if actual, ok := s.flagToParam[flagName]; ok {
		return actual
	}
	return strings.ReplaceAll(flagName, "-", "_")
}

func buildSchemaInfo(def mcp.Tool) schemaInfo {
	info := schemaInfo{
		typeMap:     make(map[string]string, len(def.InputSchema.Properties)),
		flagToParam: make(map[string]string, len(def.InputSchema.Properties)),
	}
	for name, prop := range def.InputSchema.Properties {
		if pm, ok := prop.(map[string]any); ok {
			if t, ok := pm["type"].(string); ok {
				info.typeMap[name] = t
			}
		}
		info.flagToParam[toFlagName(name)] = name
	}
	return info
}

// coerceValue converts a string value to the appropriate Go type based on JSON Schema type.
func coerceValue(raw, schemaType string) any {
	switch schemaType {
	case "number", "integer":
		var i int64
		if _, err := fmt.Sscanf(raw, "%d", &i); err == nil && fmt.Sprintf("%d", i) == raw {
			return i
		}
		var f float64
		if _, err := fmt.Sscanf(raw, "%g", &f); err == nil && fmt.Sprintf("%g", f) == raw {
			return f
		}
		return raw
	case "boolean":
		switch strings.ToLower(raw) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		return raw
	case "array":
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr
		}
		parts := strings.Split(raw, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	case "object":
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			return obj
		}
		return raw
	default:
		return raw
	}
}

// renderResult formats a CallToolResult for terminal output. Conversion
// results get a summary with output sizes; degraded ones are highlighted.
func (r *Runner) renderResult(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, result)
	}

	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			var conv tools.ConversionResult
			if err := json.Unmarshal([]byte(c.Text), &conv); err == nil && conv.RequestID != "" {
				r.renderConversion(conv)
				continue
			}
			fmt.Fprintln(r.out, c.Text)
		default:
			data, err := json.MarshalIndent(c, "", "  ")
			if err != nil {
				fmt.Fprintf(r.out, "%+v\n", c)
			} else {
				fmt.Fprintln(r.out, string(data))
			}
		}
	}

	if result.IsError {
		return fmt.Errorf("tool returned an error")
	}
	return nil
}

func (r *Runner) renderConversion(conv tools.ConversionResult) {
	if conv.Degraded {
		color.New(color.FgYellow).Fprintf(r.out, "⚠ %s completed in degraded mode: %s\n", conv.Operation, conv.Diagnostic)
	} else {
		color.New(color.FgGreen).Fprintf(r.out, "✓ %s completed (%s)\n", conv.Operation, conv.Tier)
	}

	for _, path := range conv.Outputs {
		size := "?"
		if info, err := os.Stat(path); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Fprintf(r.out, "  %s (%s)\n", path, size)
	}
}

// --- helpers ---

func newTable(headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	return tw
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	if before, _, found := strings.Cut(s, "\n"); found {
		return before
	}
	return s
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// toFlagName converts snake_case to kebab-case for CLI flags.
func toFlagName(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}

// formatEnum returns the allowed values of a schema property, if any
func formatEnum(pMap map[string]any) string {
	var vals []string
	switch e := pMap["enum"].(type) {
	case []string:
		vals = e
	case []any:
		for _, v := range e {
			vals = append(vals, fmt.Sprint(v))
		}
	}
	if len(vals) == 0 {
		return ""
	}
	return " [" + strings.Join(vals, ", ") + "]"
}
