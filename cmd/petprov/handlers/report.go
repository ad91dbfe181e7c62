package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pkg-perl/petprov/internal/provisioning"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	appliedStyle = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	pendingStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	footerStyle  = lipgloss.NewStyle().Foreground(colorDim).MarginTop(1)
)

// statusMarks maps each status to its marker and style.
var statusMarks = map[provisioning.Status]struct {
	mark  string
	style lipgloss.Style
}{
	provisioning.StatusApplied:   {"[OK]", appliedStyle},
	provisioning.StatusSatisfied: {"[--]", dimStyle},
	provisioning.StatusPending:   {"[..]", pendingStyle},
	provisioning.StatusUnguarded: {"[~~]", dimStyle},
	provisioning.StatusFailed:    {"[!!]", failedStyle},
	provisioning.StatusNotRun:    {"[  ]", dimStyle},
}

// renderReport formats a run report, one line per step.
func renderReport(r *provisioning.Report) string {
	var b strings.Builder

	title := fmt.Sprintf("Plan %s", r.Plan)
	if r.DryRun {
		title += " (dry run)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	for _, o := range r.Outcomes {
		m := statusMarks[o.Status]
		line := fmt.Sprintf("%s %2d. %-8s %s", m.mark, o.Index, o.Kind, o.Description)
		if o.Principal != "" {
			line += dimStyle.Render(" as " + o.Principal)
		}
		b.WriteString(m.style.Render(line))
		b.WriteString("\n")
		if o.Err != nil {
			b.WriteString(failedStyle.Render("       " + o.Err.Error()))
			b.WriteString("\n")
		}
	}

	pending := fmt.Sprintf("%d pending", r.Count(provisioning.StatusPending))
	if r.DryRun {
		pending += fmt.Sprintf(", %d unguarded", r.Count(provisioning.StatusUnguarded))
	}
	summary := fmt.Sprintf("%d applied, %d satisfied, %s, %d failed, %d not run in %s",
		r.Count(provisioning.StatusApplied),
		r.Count(provisioning.StatusSatisfied),
		pending,
		r.Count(provisioning.StatusFailed),
		r.Count(provisioning.StatusNotRun),
		r.Duration.Round(time.Millisecond),
	)
	b.WriteString(footerStyle.Render(summary))
	b.WriteString("\n")
	return b.String()
}
