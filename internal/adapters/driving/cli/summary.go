package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(14)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printSummary writes the report. runErr is the error Ingest returned
// alongside it, if any.
func printSummary(cmd *cobra.Command, report *domain.IngestReport, runErr error) {
	out := cmd.OutOrStdout()
	if isTerminal(out) {
		_, _ = fmt.Fprintln(out, styledSummary(report, runErr))
		return
	}
	_, _ = fmt.Fprint(out, plainSummary(report, runErr))
}

func summaryStatus(runErr error) string {
	if runErr != nil {
		return "failed"
	}
	return "complete"
}

// plainSummary renders the report for logs and pipes.
func plainSummary(r *domain.IngestReport, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset:       %s\n", r.Dataset)
	fmt.Fprintf(&b, "Status:        %s\n", summaryStatus(runErr))
	fmt.Fprintf(&b, "Rows read:     %d\n", r.TotalRows)
	fmt.Fprintf(&b, "Valid:         %d\n", r.ValidRecords)
	fmt.Fprintf(&b, "Parse errors:  %d\n", r.ParseErrors)
	fmt.Fprintf(&b, "Created:       %d\n", r.Stats.Created)
	fmt.Fprintf(&b, "Skipped:       %d\n", r.Stats.Skipped)
	fmt.Fprintf(&b, "Errors:        %d\n", r.Stats.Errors)
	fmt.Fprintf(&b, "Success rate:  %.1f%%\n", r.SuccessRate())
	fmt.Fprintf(&b, "Duration:      %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}

// styledSummary renders the report with a success-rate bar.
func styledSummary(r *domain.IngestReport, runErr error) string {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))

	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}
	errs := fmt.Sprint(r.Stats.Errors)
	if r.Stats.Errors > 0 {
		errs = errorStyle.Render(errs)
	}
	parseErrs := fmt.Sprint(r.ParseErrors)
	if r.ParseErrors > 0 {
		parseErrs = errorStyle.Render(parseErrs)
	}

	title := titleStyle.Render("Ingestion complete: " + r.Dataset)
	if runErr != nil {
		title = errorStyle.Bold(true).Render("Ingestion failed: " + r.Dataset)
	}

	lines := []string{
		title,
		"",
		row("Rows read", fmt.Sprint(r.TotalRows)),
		row("Valid", fmt.Sprint(r.ValidRecords)),
		row("Parse errors", parseErrs),
		row("Created", fmt.Sprint(r.Stats.Created)),
		row("Skipped", fmt.Sprint(r.Stats.Skipped)),
		row("Errors", errs),
		row("Duration", r.Duration.Round(time.Millisecond).String()),
		"",
		row("Success", bar.ViewAs(r.SuccessRate()/100)),
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
