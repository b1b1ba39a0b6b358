package convertfile

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

// ConvertFileTool converts one file between formats of the same family
type ConvertFileTool struct{}

func init() {
	registry.Register(&ConvertFileTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ConvertFileTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"convert_file",
		mcp.WithDescription(`Convert a file to another format in the same family: audio (mp3, wav, ogg, flac, aac, m4a), image (jpg, jpeg, png, gif, webp, bmp, tiff) or document (pdf, docx, txt, md, html). Cross-family conversions such as mp3 to pdf are rejected.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path of the file to convert"),
		),
		mcp.WithString("output_format",
			mcp.Required(),
			mcp.Description("Target extension, e.g. 'png' or 'md'"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory for the converted file (defaults to the input's directory)"),
		),
		mcp.WithString("custom_filename",
			mcp.Description("File name for the output; the target extension is applied"),
		),
		mcp.WithString("quality",
			mcp.Description("JPEG quality for image output: low, medium or high (default medium)"),
			mcp.Enum("low", "medium", "high"),
		),
		mcp.WithString("bitrate",
			mcp.Description("Audio bitrate for audio output, e.g. '192k'"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute runs the conversion and writes the result next to the input
func (t *ConvertFileTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := tools.RequireAbsolute("file_path", tools.StringArg(args, "file_path"))
	if err != nil {
		return nil, err
	}
	format := strings.TrimPrefix(strings.ToLower(tools.StringArg(args, "output_format")), ".")
	if format == "" {
		return nil, fmt.Errorf("missing required parameter: output_format")
	}
	outputDir := filepath.Dir(path)
	if dir := tools.StringArg(args, "output_dir"); dir != "" {
		if outputDir, err = tools.RequireAbsolute("output_dir", dir); err != nil {
			return nil, err
		}
	}

	svc, err := conversion.Default()
	if err != nil {
		return nil, fmt.Errorf("conversion service unavailable: %w", err)
	}

	input, f, err := tools.OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	opts := job.Options{}
	for _, key := range []string{job.OptCustomFilename, job.OptQuality, job.OptBitrate} {
		if v := tools.StringArg(args, key); v != "" {
			opts[key] = v
		}
	}

	logger.WithFields(logrus.Fields{
		"file_path":     path,
		"output_format": format,
	}).Debug("Converting file")

	resp, err := svc.Execute(ctx, job.Request{
		Operation:    job.OpConvert,
		Inputs:       []job.Input{input},
		OutputFormat: format,
		Options:      opts,
	})
	if err != nil {
		return nil, tools.ConversionError(err)
	}

	paths, err := tools.WriteArtifacts(outputDir, resp.Artifacts)
	if err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(tools.Summarise(resp, paths))
}

// ProvideExtendedInfo documents supported pairs and common errors
func (t *ConvertFileTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Convert a markdown file to HTML",
				Arguments: map[string]any{
					"file_path":     "/Users/username/notes/todo.md",
					"output_format": "html",
				},
				ExpectedResult: "Writes todo_copy.html next to the input",
			},
			{
				Description: "Convert a PNG to a small JPEG",
				Arguments: map[string]any{
					"file_path":     "/Users/username/pictures/diagram.png",
					"output_format": "jpg",
					"quality":       "low",
				},
				ExpectedResult: "Writes diagram_copy.jpg with transparency flattened onto white",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "unsupported conversion: mp3 to pdf",
				Solution: "Input and output must both be audio, both image or both document formats",
			},
			{
				Problem:  "conversion failed unexpectedly for audio files",
				Solution: "Audio conversion needs ffmpeg; check the conversion_capabilities tool",
			},
		},
		WhenToUse:    "Changing a single file's format within its family",
		WhenNotToUse: "PDF page operations such as split, merge or OCR; use pdf_operation",
	}
}
