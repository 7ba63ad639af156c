package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"timetrack/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4A90E2"))

	totalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04B575"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

// WriteText renders a human readable summary of ts: one line per project
// followed by the grand total.
func WriteText(w io.Writer, ts domain.Timesheet) error {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-32s %8s %7s", "Project", "Hours", "Share")))
	b.WriteByte('\n')
	for _, p := range ts.ByProject {
		name := p.ProjectName
		if name == "" {
			name = p.ProjectID
		}
		fmt.Fprintf(&b, "%-32s %8.2f %6.2f%%\n", truncate(name, 32), float64(p.TotalMinutes)/60, p.Percentage)
	}
	b.WriteString(totalStyle.Render(fmt.Sprintf("%-32s %8.2f %7s", "Total", ts.TotalHours, "")))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%d entries", ts.EntryCount)

	title := titleStyle.Render(fmt.Sprintf("Timesheet %s  %s → %s",
		ts.UserID, ts.Range.From.UTC().Format("2006-01-02"), ts.Range.To.UTC().Format("2006-01-02")))
	out := lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(b.String()))
	_, err := fmt.Fprintln(w, out)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
