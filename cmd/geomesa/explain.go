package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/geomesa/geomesa-core/geomesa/planner"
)

// printExplanation renders a planner.Explanation as a markdown table,
// grounded on the teacher's datalog/executor/table_formatter.go
// (tablewriter.NewTable + renderer.NewMarkdown, one row per logical unit).
func printExplanation(name string, exp *planner.Explanation) {
	if exp.FullScanBlocked {
		color.Red("query %s: full scan blocked: %s", name, exp.Reason)
		return
	}

	color.Green("query %s: %d disjunct(s)", name, len(exp.Disjuncts))

	alignment := []tw.Align{tw.AlignLeft, tw.AlignLeft, tw.AlignRight, tw.AlignLeft}
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"disjunct", "strategy", "ranges", "operators"})
	for i, d := range exp.Disjuncts {
		strat := d.Strategy
		if d.Attr != "" {
			strat = fmt.Sprintf("%s(%s)", strat, d.Attr)
		}
		table.Append([]string{
			fmt.Sprintf("%d", i),
			strat,
			fmt.Sprintf("%d", d.RangeCount),
			joinOps(d.Operators),
		})
	}
	table.Render()

	if len(exp.Operators) > 0 {
		fmt.Printf("plan-wide: %s\n", joinOps(exp.Operators))
	}
}

func joinOps(ops []planner.OperatorKind) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = string(o)
	}
	return strings.Join(parts, " -> ")
}
