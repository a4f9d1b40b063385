package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/paneltester/internal/device"
)

// Panel renders a rounded-border box with title embedded in the top border.
// width is the total outer width, height=0 means auto-height.
func Panel(title, content string, width, height int, focused bool) string {
	borderColor := Subtle
	if focused {
		borderColor = Primary
	}
	edge := lipgloss.NewStyle().Foreground(borderColor)

	// ╭─ TITLE ─...─╮ spans width: 3 + title + 1 + dashes + 1.
	dashes := width - lipgloss.Width(title) - 5
	if dashes < 0 {
		dashes = 0
	}
	top := edge.Render("╭─ ") + title + edge.Render(" "+strings.Repeat("─", dashes)+"╮")

	innerWidth := width - 2 // border cells; Width includes padding
	if innerWidth < 0 {
		innerWidth = 0
	}
	body := lipgloss.NewStyle().
		Width(innerWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderTop(false).
		BorderLeft(true).
		BorderRight(true).
		BorderBottom(true).
		BorderForeground(borderColor).
		Padding(0, 1)
	if height > 0 {
		body = body.Height(height - 2) // top line and bottom border
	}
	return top + "\n" + body.Render(content)
}

func Title(text string) string {
	return TitleStyle.Render(text)
}

// StatusKey renders a key hint for the status bar.
func StatusKey(k, desc string) string {
	return StatusBarKeyStyle.Render(k) + StatusBarStyle.Render(":"+desc)
}

// StatusColor is the background of a slot verdict.
func StatusColor(s device.Status) lipgloss.Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return Surface
}

// Badge renders text on a colored background.
func Badge(text string, bg lipgloss.Color) string {
	return lipgloss.NewStyle().
		Foreground(OnStatus).
		Background(bg).
		Padding(0, 1).
		Render(text)
}

// StatusBadge renders the verdict name in its own color.
func StatusBadge(s device.Status) string {
	return Badge(s.String(), StatusColor(s))
}

// StepBadge marks a single report step as passed or failed.
func StepBadge(failed bool) string {
	if failed {
		return Badge("!!", StatusColor(device.Error))
	}
	return Badge("ok", StatusColor(device.Pass))
}

// SlotCell renders one slot of the panel grid. id and tty are optional.
func SlotCell(slot int, s device.Status, id, tty string) string {
	lines := []string{fmt.Sprintf("%d %s", slot+1, s), id, tty}
	return CellStyle.Background(StatusColor(s)).Render(strings.Join(lines, "\n"))
}
