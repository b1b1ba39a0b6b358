package pdf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fileconv/internal/conversion"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/registry"
	"github.com/sammcj/mcp-fileconv/internal/tools"
	"github.com/sirupsen/logrus"
)

// PDFOperationTool runs a PDF engine operation on one or more files
type PDFOperationTool struct{}

func init() {
	registry.Register(&PDFOperationTool{})
}

// Request is the parsed tool input
type Request struct {
	Operation job.Operation
	FilePaths []string
	OutputDir string
	Options   job.Options
}

func operationNames() []string {
	names := make([]string, len(job.PDFOperations))
	for i, op := range job.PDFOperations {
		names[i] = string(op)
	}
	return names
}

// Definition returns the tool's definition for MCP registration
func (t *PDFOperationTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_operation",
		mcp.WithDescription(`Split, merge, compress, protect, unlock, rotate or watermark PDFs, render pages to images, build a PDF from images, or OCR a PDF or image. When an optional backend is missing the result is still produced but flagged "degraded" with a diagnostic.`),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("Operation to run"),
			mcp.Enum(operationNames()...),
		),
		mcp.WithArray("file_paths",
			mcp.Required(),
			mcp.Description("Absolute input paths, in order. merge takes two or more PDFs, images_to_pdf one or more images, everything else exactly one file"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory for the outputs (defaults to the first input's directory)"),
		),
		mcp.WithObject("options",
			mcp.Description("Operation options, e.g. {\"page_ranges\": \"1-3,5\"} for split, {\"rotation\": 90, \"pages\": \"1\"} for rotate, {\"watermark_text\": \"DRAFT\", \"position\": \"center\", \"opacity\": 0.3} for watermark, {\"format\": \"png\", \"dpi\": 200} for pdf_to_images, {\"format\": \"txt\", \"language\": \"eng\"} for ocr"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute runs the operation and writes its outputs
func (t *PDFOperationTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	request, err := t.ParseRequest(args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"operation":  request.Operation,
		"file_count": len(request.FilePaths),
		"output_dir": request.OutputDir,
	}).Debug("PDF operation parameters")

	svc, err := conversion.Default()
	if err != nil {
		return nil, fmt.Errorf("conversion service unavailable: %w", err)
	}

	inputs := make([]job.Input, 0, len(request.FilePaths))
	for _, path := range request.FilePaths {
		input, f, err := tools.OpenInput(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		inputs = append(inputs, input)
	}

	resp, err := svc.Execute(ctx, job.Request{
		Operation:    request.Operation,
		Inputs:       inputs,
		OutputFormat: request.Options.Get(job.OptFormat),
		Options:      request.Options,
	})
	if err != nil {
		return nil, tools.ConversionError(err)
	}

	paths, err := tools.WriteArtifacts(request.OutputDir, resp.Artifacts)
	if err != nil {
		return nil, err
	}

	if resp.Degraded {
		logger.WithFields(logrus.Fields{
			"operation":  request.Operation,
			"diagnostic": resp.Diagnostic,
		}).Warn("PDF operation returned a degraded result")
	}
	return tools.NewToolResultJSON(tools.Summarise(resp, paths))
}

// ParseRequest parses and validates the tool arguments
func (t *PDFOperationTool) ParseRequest(args map[string]any) (*Request, error) {
	opName := tools.StringArg(args, "operation")
	op, ok := job.ParseOperation(opName)
	if !ok || op == job.OpConvert {
		return nil, fmt.Errorf("unknown operation %q, expected one of %s", opName, strings.Join(operationNames(), ", "))
	}

	rawPaths, ok := args["file_paths"].([]any)
	if !ok || len(rawPaths) == 0 {
		return nil, fmt.Errorf("missing or invalid required parameter: file_paths")
	}
	paths := make([]string, 0, len(rawPaths))
	for i, raw := range rawPaths {
		s, _ := raw.(string)
		path, err := tools.RequireAbsolute(fmt.Sprintf("file_paths[%d]", i), s)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	outputDir := filepath.Dir(paths[0])
	if dir := tools.StringArg(args, "output_dir"); dir != "" {
		var err error
		if outputDir, err = tools.RequireAbsolute("output_dir", dir); err != nil {
			return nil, err
		}
	}

	options := job.Options{}
	if raw, ok := args["options"].(map[string]any); ok {
		options = job.FromArgs(raw)
	}

	return &Request{Operation: op, FilePaths: paths, OutputDir: outputDir, Options: options}, nil
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *PDFOperationTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Split pages 1-3 and 5 into separate files",
				Arguments: map[string]any{
					"operation":  "split",
					"file_paths": []string{"/Users/username/documents/report.pdf"},
					"options":    map[string]any{"page_ranges": "1-3,5"},
				},
				ExpectedResult: "Writes split_1-3.pdf and split_5.pdf",
			},
			{
				Description: "Merge two PDFs",
				Arguments: map[string]any{
					"operation":  "merge",
					"file_paths": []string{"/Users/username/a.pdf", "/Users/username/b.pdf"},
					"options":    map[string]any{"output_name": "combined.pdf"},
				},
				ExpectedResult: "Writes combined.pdf with a's pages followed by b's",
			},
			{
				Description: "Extract searchable text from a scanned PDF",
				Arguments: map[string]any{
					"operation":  "ocr",
					"file_paths": []string{"/Users/username/scans/invoice.pdf"},
					"options":    map[string]any{"format": "txt", "language": "eng"},
				},
				ExpectedResult: "Writes ocr_invoice.txt; degraded with a diagnostic if no OCR engine is installed",
			},
		},
		CommonPatterns: []string{
			"Page ranges are 1-based and inclusive; ranges beyond the last page are clamped",
			"Check the degraded flag: a degraded result used a fallback tier and may not contain the requested transformation",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "invalid password",
				Solution: "unlock needs the document's password; protect sets the owner password to the user password unless owner_password is given",
			},
			{
				Problem:  "degraded result with 'OCR unavailable'",
				Solution: "Install tesseract (and MuPDF support for PDF input) and check conversion_capabilities",
			},
		},
		ParameterDetails: map[string]string{
			"options.page_ranges": "split: comma separated ranges, e.g. '1-3,5'",
			"options.quality":     "compress: low, medium or high",
			"options.rotation":    "rotate: 90, 180 or 270; options.pages selects pages (default all)",
			"options.opacity":     "watermark: between 0.1 and 0.9 (default 0.3)",
			"options.dpi":         "pdf_to_images: clamped to 72-600 (default 200)",
		},
		WhenToUse:    "Page-level PDF work, rasterising, image packing and OCR",
		WhenNotToUse: "Plain format changes such as docx to pdf; use convert_file",
	}
}
