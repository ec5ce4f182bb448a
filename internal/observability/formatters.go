// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/auto-apply/internal/batch"
	"github.com/jonathan/auto-apply/internal/platform"
	"github.com/jonathan/auto-apply/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func methodIcon(m types.Method) string {
	switch m {
	case types.MethodAutomated:
		return "✅"
	case types.MethodRedirect:
		return "↪"
	default:
		return "❌"
	}
}

func outcomeIcon(outcome string) string {
	switch outcome {
	case "filled":
		return "✓"
	case "skipped":
		return "-"
	case "not_found":
		return "?"
	default:
		return "✗"
	}
}

// PrintApplicationResult outputs the outcome of one attempt with its field report.
func (p *Printer) PrintApplicationResult(res *types.ApplicationResult) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Platform:  %s\n", res.Platform))
	sb.WriteString(fmt.Sprintf("Method:    %s %s\n", methodIcon(res.Method), res.Method))
	sb.WriteString(fmt.Sprintf("State:     %s\n", res.State))
	sb.WriteString(fmt.Sprintf("Duration:  %dms\n", res.DurationMs))
	if res.ConfirmationID != "" {
		sb.WriteString(fmt.Sprintf("Confirm:   %s\n", res.ConfirmationID))
	}
	if res.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:     %s\n", res.Error))
	}
	if res.RedirectURL != "" {
		sb.WriteString(fmt.Sprintf("Apply at:  %s\n", res.RedirectURL))
	}

	if len(res.Fields) > 0 {
		sb.WriteString("\nFields:\n")
		for _, f := range res.Fields {
			sb.WriteString(fmt.Sprintf("  %s %-14s %s", outcomeIcon(f.Outcome), f.Field, f.Outcome))
			if f.Locator != "" {
				sb.WriteString(fmt.Sprintf(" via %s", f.Locator))
			}
			sb.WriteString("\n")
		}
	}

	p.printBox("APPLICATION RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBatchSummary outputs the totals of a batch run and one line per job.
func (p *Printer) PrintBatchSummary(summary *batch.Summary) {
	if summary == nil || summary.Total == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Jobs: %d   automated: %d   redirect: %d   failed: %d\n",
		summary.Total, summary.Automated, summary.Redirected, summary.Failed))
	sb.WriteString(fmt.Sprintf("Duration: %dms\n\n", summary.DurationMs))

	count := min(len(summary.Items), maxItemsToShow)
	for i := 0; i < count; i++ {
		item := summary.Items[i]
		sb.WriteString(fmt.Sprintf("%s #%d %s\n", methodIcon(item.Result.Method), item.Index+1, item.JobURL))
	}
	if len(summary.Items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more jobs\n", len(summary.Items)-maxItemsToShow))
	}

	p.printBox("BATCH SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPlatforms lists the registered platform strategies.
func (p *Printer) PrintPlatforms(strategies []*platform.Strategy) {
	if len(strategies) == 0 {
		return
	}

	var sb strings.Builder
	for _, s := range strategies {
		sb.WriteString(fmt.Sprintf("%-12s %s\n", s.ID, s.DisplayName()))
		if len(s.Aliases) > 0 {
			sb.WriteString(fmt.Sprintf("  aliases: %s\n", strings.Join(s.Aliases, ", ")))
		}
	}

	p.printBox("SUPPORTED PLATFORMS", strings.TrimSuffix(sb.String(), "\n"))
}
