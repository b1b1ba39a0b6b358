package toolhelp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fileconv/internal/registry"
	"github.com/sammcj/mcp-fileconv/internal/tools"
	"github.com/sirupsen/logrus"
)

// ToolHelpTool returns examples and troubleshooting for the other tools
type ToolHelpTool struct{}

func init() {
	registry.Register(&ToolHelpTool{})
}

// Response is the help returned for one tool
type Response struct {
	ToolName     string              `json:"tool_name"`
	Description  string              `json:"description"`
	InputSchema  mcp.ToolInputSchema `json:"input_schema"`
	ExtendedInfo *tools.ExtendedHelp `json:"extended_info,omitempty"`
}

// Definition returns the tool's definition for MCP registration
func (t *ToolHelpTool) Definition() mcp.Tool {
	// Registration order is not fixed, so the enum is resolved when the
	// server lists tools rather than at init
	return mcp.NewTool(
		"get_tool_help",
		mcp.WithDescription("Get usage examples and troubleshooting for the file conversion tools when a call fails unexpectedly."),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(registry.GetToolNamesWithExtendedHelp()...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute returns the extended help for the named tool
func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	toolName := tools.StringArg(args, "tool_name")
	if toolName == "" {
		return nil, fmt.Errorf("invalid parameters: missing or invalid required parameter: tool_name")
	}

	tool, exists := registry.GetTool(toolName)
	provider, ok := tool.(tools.ExtendedHelpProvider)
	if !exists || !ok {
		return nil, fmt.Errorf("tool '%s' not found, disabled, or does not provide extended help. Tools with extended help: %s",
			toolName, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	}

	definition := tool.Definition()
	return tools.NewToolResultJSON(Response{
		ToolName:     definition.Name,
		Description:  definition.Description,
		InputSchema:  definition.InputSchema,
		ExtendedInfo: provider.ProvideExtendedInfo(),
	})
}
