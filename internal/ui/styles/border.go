// Package styles contains Lip Gloss style definitions.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// Border characters (rounded)
const (
	borderTopLeft     = "╭"
	borderTopRight    = "╮"
	borderBottomLeft  = "╰"
	borderBottomRight = "╯"
	borderHorizontal  = "─"
	borderVertical    = "│"
)

// RenderPanel renders content inside a rounded border sized width x
// height, with the title embedded in the top border on the left and an
// optional status on the right. Pass "" to omit either. The border uses
// BorderFocusedColor when focused, BorderDefaultColor otherwise.
//
// Format: ╭─ Title ──────────── status ─╮
func RenderPanel(content, title, status string, width, height int, focused bool) string {
	borderColor := BorderDefaultColor
	if focused {
		borderColor = BorderFocusedColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Foreground(TextPrimaryColor).Bold(focused)
	statusStyle := lipgloss.NewStyle().Foreground(TextMutedColor)

	innerWidth := max(width-2, 1)
	contentHeight := max(height-2, 1)

	// Constrain content, then pad each line so the right border aligns.
	constrained := lipgloss.NewStyle().Width(innerWidth).Height(contentHeight).Render(content)
	contentLines := strings.Split(constrained, "\n")

	var b strings.Builder
	b.WriteString(renderTopBorder(title, status, innerWidth, borderStyle, titleStyle, statusStyle))
	b.WriteByte('\n')

	side := borderStyle.Render(borderVertical)
	for i := range contentHeight {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		if pad := innerWidth - lipgloss.Width(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		b.WriteString(side)
		b.WriteString(line)
		b.WriteString(side)
		b.WriteByte('\n')
	}

	b.WriteString(borderStyle.Render(borderBottomLeft + strings.Repeat(borderHorizontal, innerWidth) + borderBottomRight))
	return b.String()
}

// renderTopBorder builds ╭─ Title ───── status ─╮, dropping pieces that
// no longer fit as the panel narrows: first the status, then the title.
func renderTopBorder(title, status string, innerWidth int, borderStyle, titleStyle, statusStyle lipgloss.Style) string {
	plain := func() string {
		return borderStyle.Render(borderTopLeft + strings.Repeat(borderHorizontal, max(innerWidth, 0)) + borderTopRight)
	}
	if title == "" && status == "" {
		return plain()
	}

	// "─ " + title + " " on the left costs 3 beyond the title itself;
	// " " + status + " ─" on the right costs 3 beyond the status.
	titleCost := 3 + lipgloss.Width(title)
	statusCost := 3 + lipgloss.Width(status)

	if status != "" && title != "" && innerWidth >= titleCost+statusCost+1 {
		middle := innerWidth - titleCost - statusCost
		return borderStyle.Render(borderTopLeft+borderHorizontal+" ") +
			titleStyle.Render(title) +
			borderStyle.Render(" "+strings.Repeat(borderHorizontal, middle)+" ") +
			statusStyle.Render(status) +
			borderStyle.Render(" "+borderHorizontal+borderTopRight)
	}

	// Not enough room for both: keep the title, truncating if needed.
	label := title
	style := titleStyle
	if label == "" {
		label = status
		style = statusStyle
	}
	if innerWidth < 5 {
		return plain()
	}
	label = TruncateTitle(label, innerWidth-4)

	trailing := innerWidth - 3 - lipgloss.Width(label)
	return borderStyle.Render(borderTopLeft+borderHorizontal+" ") +
		style.Render(label) +
		borderStyle.Render(" "+strings.Repeat(borderHorizontal, trailing)+borderTopRight)
}

// TruncateTitle fits s within maxWidth cells, ending with an ellipsis
// when it had to cut.
func TruncateTitle(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return truncate.StringWithTail(s, uint(maxWidth), "…")
}
