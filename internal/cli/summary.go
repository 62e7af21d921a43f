package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"review-reply-automation/internal/processor"
	"review-reply-automation/internal/runner"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderSummary renders one line per store plus a total line.
func renderSummary(codes []string, results map[string]runner.Result, color bool) string {
	paint := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(paint(headerStyle, fmt.Sprintf("%-16s %-6s %s", "STORE", "RESULT", "COUNTS")))
	b.WriteString("\n")

	var total processor.RunStats
	for _, code := range codes {
		res := results[code]
		total.Add(res.Stats)

		result := paint(okStyle, fmt.Sprintf("%-6s", "ok"))
		if res.Err != nil {
			result = paint(errStyle, fmt.Sprintf("%-6s", "error"))
		}
		fmt.Fprintf(&b, "%-16s %s %s %s\n", code, result, res.Stats.String(),
			paint(dimStyle, res.Stats.Duration.Round(time.Millisecond).String()))
		if res.Err != nil {
			fmt.Fprintf(&b, "%-16s %s\n", "", paint(errStyle, res.Err.Error()))
		}
	}

	fmt.Fprintf(&b, "%s %-6s %s\n", paint(headerStyle, fmt.Sprintf("%-16s", "TOTAL")), "", total.String())
	return b.String()
}
