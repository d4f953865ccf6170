package monitor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"questflow/internal/models"

	"github.com/charmbracelet/lipgloss"
)

// SummaryWindowLimit is how many windows the final summary lists.
const SummaryWindowLimit = 5

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// Render writes the live progress view of p. newWindows is the number of
// windows completed since the previous render.
func Render(w io.Writer, p Progress, newWindows int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("Source:"), p.Source)
	fmt.Fprintf(&b, "%s %d  %s %d\n", dimStyle.Render("Pages:"), p.TotalPages, dimStyle.Render("Window size:"), p.WindowSize)
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("Status:"), statusLabel(p.Status))
	if p.TotalWindows > 0 {
		fmt.Fprintf(&b, "%s [%s] %.1f%%\n", dimStyle.Render("Progress:"), ProgressBar(p.Percent), p.Percent)
		fmt.Fprintf(&b, "%s %d/%d\n", dimStyle.Render("Windows:"), p.WindowsCompleted, p.TotalWindows)
	}
	fmt.Fprintf(&b, "%s %d", dimStyle.Render("Questions found:"), p.TotalQuestions)
	if !p.Started.IsZero() {
		fmt.Fprintf(&b, "\n%s %s", dimStyle.Render("Started:"), p.Started.Format(time.RFC3339))
	}
	if p.Completed != nil {
		fmt.Fprintf(&b, "\n%s %s", dimStyle.Render("Completed:"), p.Completed.Format(time.RFC3339))
	}
	fmt.Fprintln(w, boxStyle.Render(titleStyle.Render("Question extraction")+"\n"+b.String()))

	if newWindows > 0 && !p.Terminal {
		fmt.Fprintf(w, "%d new window(s) completed, latest window found %d questions\n", newWindows, p.LatestWindowQuestions)
	}
	if p.Terminal {
		fmt.Fprintln(w, successStyle.Render("Processing completed."))
	}
}

// RenderSummary writes the detailed breakdown of a finished (or stopped) run.
func RenderSummary(w io.Writer, doc *models.ProgressDocument, path string) {
	total := doc.SummaryStats.TotalQuestionsFound

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("Source:"), doc.SourceDescriptor)
	fmt.Fprintf(&b, "%s %d\n", dimStyle.Render("Total pages:"), doc.TotalPages)
	fmt.Fprintf(&b, "%s %d\n", dimStyle.Render("Window size:"), doc.WindowSize)
	fmt.Fprintf(&b, "%s %d/%d\n", dimStyle.Render("Windows completed:"), doc.WindowsCompleted, doc.TotalWindows)
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("Status:"), statusLabel(doc.ProcessingStatus))
	fmt.Fprintf(&b, "%s %d", dimStyle.Render("Total questions found:"), total)
	fmt.Fprintln(w, boxStyle.Render(titleStyle.Render("Processing summary")+"\n"+b.String()))

	writeShares(w, "Questions by type", doc.SummaryStats.QuestionsByType, total)
	writeShares(w, "Questions by difficulty", doc.SummaryStats.QuestionsByDifficulty, total)

	fmt.Fprintln(w, titleStyle.Render("Window breakdown"))
	for i, r := range doc.WindowsResults {
		if i == SummaryWindowLimit {
			fmt.Fprintf(w, "  ... and %d more windows\n", len(doc.WindowsResults)-SummaryWindowLimit)
			break
		}
		line := fmt.Sprintf("  Window %d (pages %s): %d questions", r.WindowID, r.PageRange, r.TotalQuestionsFound)
		if r.Failed() {
			line += " " + warnStyle.Render("["+r.ErrorType+" error]")
		}
		fmt.Fprintln(w, line)
	}

	if !doc.ProcessingStarted.IsZero() {
		fmt.Fprintf(w, "\n%s %s\n", dimStyle.Render("Started:"), doc.ProcessingStarted.Format(time.RFC3339))
	}
	if doc.ProcessingCompleted != nil {
		fmt.Fprintf(w, "%s %s (%s)\n", dimStyle.Render("Completed:"), doc.ProcessingCompleted.Format(time.RFC3339),
			doc.ProcessingCompleted.Sub(doc.ProcessingStarted).Round(time.Second))
	}
	if path != "" {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("Full results:"), path)
	}
}

func writeShares(w io.Writer, title string, hist map[string]int, total int) {
	if len(hist) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, s := range Shares(hist, total) {
		fmt.Fprintf(w, "  • %s: %d (%.1f%%)\n", s.Label, s.Count, s.Percent)
	}
	fmt.Fprintln(w)
}

func statusLabel(status string) string {
	label := strings.ToUpper(status)
	if label == "" {
		label = "UNKNOWN"
	}
	if status == models.StatusCompleted {
		return successStyle.Render(label)
	}
	return warnStyle.Render(label)
}
