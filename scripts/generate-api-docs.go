//go:build ignore

// Generates markdown reference pages from the registered MCP tool definitions.
//
//	go run scripts/generate-api-docs.go -output docs/tools
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/sammcj/mcp-fileconv/internal/registry"
	"github.com/sammcj/mcp-fileconv/internal/tools"
	"github.com/sirupsen/logrus"

	_ "github.com/sammcj/mcp-fileconv/internal/imports"
)

type parameterInfo struct {
	Name        string
	Type        string
	Required    bool
	Description string
	EnumValues  []string
	Default     string
}

type toolInfo struct {
	Name        string
	Description string
	Parameters  []parameterInfo
	Help        *tools.ExtendedHelp
}

var toolTemplate = template.Must(template.New("tool").Funcs(template.FuncMap{
	"join": strings.Join,
	"json": func(v any) string {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	},
}).Parse(`# {{.Name}}

{{.Description}}

## Parameters

| Name | Type | Required | Description |
|------|------|----------|-------------|
{{- range .Parameters}}
| ` + "`{{.Name}}`" + ` | {{.Type}} | {{if .Required}}yes{{else}}no{{end}} | {{.Description}}{{if .EnumValues}} One of: {{join .EnumValues ", "}}.{{end}}{{if .Default}} Default: {{.Default}}.{{end}} |
{{- end}}
{{with .Help}}{{if .WhenToUse}}
## When to use

{{.WhenToUse}}
{{end}}{{if .Examples}}
## Examples
{{range .Examples}}
### {{.Description}}

` + "```json" + `
{{json .Arguments}}
` + "```" + `
{{if .ExpectedResult}}
{{.ExpectedResult}}
{{end}}{{end}}{{end}}{{if .Troubleshooting}}
## Troubleshooting
{{range .Troubleshooting}}
- **{{.Problem}}**: {{.Solution}}
{{- end}}
{{end}}{{end}}`))

func main() {
	var (
		toolName  = flag.String("tool", "", "Generate docs for a single tool only")
		outputDir = flag.String("output", "docs/tools", "Output directory")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	registry.Init(logger)

	var infos []toolInfo
	for name, tool := range registry.GetEnabledTools() {
		if *toolName != "" && name != *toolName {
			continue
		}
		infos = append(infos, extractToolInfo(tool))
	}
	if len(infos) == 0 {
		fmt.Fprintf(os.Stderr, "no tools matched %q\n", *toolName)
		os.Exit(1)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}
	for _, info := range infos {
		if err := writeToolDoc(info, *outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", info.Name, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Generated documentation for %d tools in %s\n", len(infos), *outputDir)
}

func extractToolInfo(tool tools.Tool) toolInfo {
	def := tool.Definition()
	info := toolInfo{Name: def.Name, Description: def.Description}
	if provider, ok := tool.(tools.ExtendedHelpProvider); ok {
		info.Help = provider.ProvideExtendedInfo()
	}

	required := map[string]bool{}
	for _, name := range def.InputSchema.Required {
		required[name] = true
	}
	for name, raw := range def.InputSchema.Properties {
		info.Parameters = append(info.Parameters, parameterFrom(name, raw, required[name]))
	}
	sort.Slice(info.Parameters, func(i, j int) bool {
		if info.Parameters[i].Required != info.Parameters[j].Required {
			return info.Parameters[i].Required
		}
		return info.Parameters[i].Name < info.Parameters[j].Name
	})
	return info
}

func parameterFrom(name string, raw any, required bool) parameterInfo {
	p := parameterInfo{Name: name, Required: required, Type: "any"}
	schema, ok := raw.(map[string]any)
	if !ok {
		return p
	}
	if t, ok := schema["type"].(string); ok {
		p.Type = t
	}
	if d, ok := schema["description"].(string); ok {
		p.Description = strings.ReplaceAll(d, "\n", " ")
	}
	if def, ok := schema["default"]; ok {
		p.Default = fmt.Sprintf("%v", def)
	}
	switch enum := schema["enum"].(type) {
	case []string:
		p.EnumValues = enum
	case []any:
		for _, v := range enum {
			p.EnumValues = append(p.EnumValues, fmt.Sprintf("%v", v))
		}
	}
	return p
}

func writeToolDoc(info toolInfo, outputDir string) error {
	f, err := os.Create(filepath.Join(outputDir, info.Name+".md"))
	if err != nil {
		return err
	}
	if err := toolTemplate.Execute(f, info); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
