package capabilities

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fileconv/internal/capability"
	"github.com/sammcj/mcp-fileconv/internal/conversion"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/registry"
	"github.com/sammcj/mcp-fileconv/internal/tools"
	"github.com/sirupsen/logrus"
)

// CapabilitiesTool reports which optional backends were detected and which
// tier each PDF operation would start from
type CapabilitiesTool struct{}

func init() {
	registry.Register(&CapabilitiesTool{})
}

// TierInfo describes one tier of an operation
type TierInfo struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Requires []string `json:"requires,omitempty"`
	Ready    bool     `json:"ready"`
}

// Response is the tool output
type Response struct {
	Capabilities []capability.Capability `json:"capabilities"`
	Operations   map[string][]TierInfo   `json:"operations"`
}

// Definition returns the tool's definition for MCP registration
func (t *CapabilitiesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"conversion_capabilities",
		mcp.WithDescription("List the optional conversion backends found at startup and the tiers each PDF operation can use."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute returns the capability snapshot
func (t *CapabilitiesTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	svc, err := conversion.Default()
	if err != nil {
		return nil, fmt.Errorf("conversion service unavailable: %w", err)
	}
	return tools.NewToolResultJSON(Describe(svc))
}

// Describe builds the response from svc
func Describe(svc *conversion.Service) Response {
	caps := svc.Capabilities()
	available := make(map[capability.Name]bool, len(caps))
	for _, c := range caps {
		available[c.Name] = c.Available
	}

	ops := make(map[string][]TierInfo, len(job.PDFOperations))
	for _, op := range job.PDFOperations {
		for _, tier := range svc.Tiers(op) {
			info := TierInfo{Name: tier.Name, Kind: string(tier.Kind), Ready: true}
			for _, req := range tier.Requires {
				info.Requires = append(info.Requires, string(req))
				info.Ready = info.Ready && available[req]
			}
			ops[string(op)] = append(ops[string(op)], info)
		}
	}
	return Response{Capabilities: caps, Operations: ops}
}
