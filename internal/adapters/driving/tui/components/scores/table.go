// Package scores renders per-section confidence scores.
package scores

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

const barWidth = 20

// Table renders section scores as labelled bars against a threshold.
type Table struct {
	styles    *styles.Styles
	threshold float64
	scores    []domain.SectionScore
	width     int
}

// NewTable creates a score table.
func NewTable(s *styles.Styles, threshold float64) *Table {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Table{styles: s, threshold: threshold, width: 80}
}

// SetScores replaces the rows.
func (t *Table) SetScores(scores []domain.SectionScore) {
	t.scores = scores
}

// SetWidth sets the available width.
func (t *Table) SetWidth(width int) {
	t.width = width
}

// View renders the table.
func (t *Table) View() string {
	if len(t.scores) == 0 {
		return t.styles.Muted.Render("No scores yet")
	}

	labelWidth := 0
	for _, s := range t.scores {
		labelWidth = max(labelWidth, lipgloss.Width(s.Title))
	}
	labelWidth = min(labelWidth, max(10, t.width-barWidth-10))

	var b strings.Builder
	for i, s := range t.scores {
		if i > 0 {
			b.WriteString("\n")
		}
		label := truncate(s.Title, labelWidth)
		style := t.styles.Score(s.Score, t.threshold)
		fmt.Fprintf(&b, "%-*s %s %s",
			labelWidth, label, style.Render(bar(s.Score)), style.Render(fmt.Sprintf("%.2f", s.Score)))
	}
	return b.String()
}

// bar draws score in [0,1] as a fixed-width bar.
func bar(score float64) string {
	filled := int(score*barWidth + 0.5)
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
