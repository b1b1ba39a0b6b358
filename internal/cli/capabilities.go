package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/tools/capabilities"
)

// Capabilities prints the probed backends and the tiers of every operation
func (r *Runner) Capabilities(resp capabilities.Response) error {
	if r.output == OutputJSON {
		return writeJSON(r.out, resp)
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	caps := newTable("Capability", "Available", "Detail")
	for _, c := range resp.Capabilities {
		available := yellow("no")
		if c.Available {
			available = green("yes")
		}
		caps.AppendRow(table.Row{c.Name, available, c.Detail})
	}
	fmt.Fprintln(r.out, caps.Render())

	ops := newTable("Operation", "Tiers")
	for _, op := range job.PDFOperations {
		name := string(op)
		var tiers []string
		for _, tier := range resp.Operations[name] {
			label := fmt.Sprintf("%s (%s)", tier.Name, tier.Kind)
			if tier.Ready {
				label = green(label)
			} else {
				label = yellow(label + " needs " + strings.Join(tier.Requires, ", "))
			}
			tiers = append(tiers, label)
		}
		ops.AppendRow(table.Row{name, strings.Join(tiers, "\n")})
	}
	_, err := fmt.Fprintln(r.out, ops.Render())
	return err
}
