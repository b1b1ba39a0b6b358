package registry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fileconv/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct{ name string }

func (s *stubTool) Definition() mcp.Tool { return mcp.NewTool(s.name) }

func (s *stubTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.name), nil
}

type helpfulTool struct{ stubTool }

func (h *helpfulTool) ProvideExtendedInfo() *tools.ExtendedHelp { return &tools.ExtendedHelp{} }

func withRegistry(t *testing.T, disabled string, registered ...tools.Tool) {
	t.Helper()
	saved := toolRegistry
	t.Cleanup(func() {
		toolRegistry = saved
		disabledTools = make(map[string]bool)
	})

	t.Setenv("DISABLED_TOOLS", disabled)
	toolRegistry = make(map[string]tools.Tool)
	Init(nil)
	for _, tool := range registered {
		Register(tool)
	}
}

func TestDisabledToolsAreHidden(t *testing.T) {
	withRegistry(t, " pdf-operation , other",
		&stubTool{name: "convert_file"},
		&stubTool{name: "pdf_operation"},
	)

	assert.Equal(t, []string{"convert_file"}, GetEnabledToolNames())

	_, ok := GetTool("pdf_operation")
	assert.False(t, ok)

	tool, ok := GetTool("convert_file")
	require.True(t, ok)
	assert.Equal(t, "convert_file", tool.Definition().Name)
}

func TestToolNamesWithExtendedHelp(t *testing.T) {
	withRegistry(t, "",
		&stubTool{name: "conversion_capabilities"},
		&helpfulTool{stubTool{name: "convert_file"}},
		&helpfulTool{stubTool{name: "pdf_operation"}},
	)

	assert.Equal(t, []string{"convert_file", "pdf_operation"}, GetToolNamesWithExtendedHelp())
}
