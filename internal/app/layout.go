package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/ui"
)

const sidebarWidth = 22 // 20 content + 2 border/padding

func renderStationBar(tester string, slots int, running bool, last string, width int) string {
	state := ui.DimStyle.Render("idle")
	if running {
		state = ui.AccentStyle.Render("running")
	}
	content := fmt.Sprintf("Station: %s  Slots: %d  Run: %s", tester, slots, state)
	if last != "" {
		content += "  " + ui.DimStyle.Render(last)
	}
	return ui.StatusBarStyle.Width(width).MaxHeight(1).Render(content)
}

// tallyOrder is the order verdicts are listed in the sidebar.
var tallyOrder = []device.Status{device.Testing, device.Pass, device.Retested, device.NotUpdated, device.Error, device.PortError}

// renderTally counts slots per verdict, skipping verdicts nobody has.
func renderTally(statuses map[int]device.Status) string {
	counts := make(map[device.Status]int)
	for _, s := range statuses {
		counts[s]++
	}
	var b strings.Builder
	for _, s := range tallyOrder {
		if counts[s] == 0 {
			continue
		}
		dot := lipgloss.NewStyle().Foreground(ui.StatusColor(s)).Render("●")
		b.WriteString(fmt.Sprintf("%s %-11s %2d\n", dot, s, counts[s]))
	}
	return b.String()
}

func renderSidebar(pages []PageID, active PageID, pageMap map[PageID]Page, tally string, height int, focused bool) string {
	var b strings.Builder
	if focused {
		b.WriteString(ui.BoldStyle.Render("paneltester [FOCUSED]"))
	} else {
		b.WriteString(ui.TitleStyle.Render("paneltester"))
	}
	b.WriteString("\n\n")

	for _, id := range pages {
		p := pageMap[id]
		if p == nil {
			continue
		}
		if id == active {
			b.WriteString(ui.SidebarActiveStyle.Render("▸ " + p.Name()))
		} else {
			b.WriteString(ui.SidebarItemStyle.Render("  " + p.Name()))
		}
		b.WriteString("\n")
	}
	if tally != "" {
		b.WriteString("\n")
		b.WriteString(tally)
	}

	style := ui.SidebarStyle.Height(height)
	if focused {
		style = style.BorderForeground(ui.Primary)
	}
	return style.Render(b.String())
}

func renderStatusBar(pageHelp []key.Binding, width int, focus FocusArea) string {
	var parts []string

	// Focus-specific instructions
	if focus == FocusSidebar {
		parts = append(parts,
			ui.StatusKey("↑/↓", "navigate"),
			ui.StatusKey("enter", "select"),
			ui.StatusKey("s", "retest slots"),
		)
	} else {
		// Page-specific keys when content is focused
		for _, kb := range pageHelp {
			if kb.Enabled() {
				parts = append(parts, ui.StatusKey(kb.Help().Key, kb.Help().Desc))
			}
		}
	}

	// Always add global keys
	parts = append(parts,
		ui.StatusKey("tab", "focus"),
		ui.StatusKey("?", "help"),
		ui.StatusKey("q", "quit"),
	)

	line := strings.Join(parts, "  ")
	return ui.StatusBarStyle.Width(width).Render(line)
}

func renderHelp(pageHelp []key.Binding) string {
	var b strings.Builder
	b.WriteString(ui.Title("Keys"))
	b.WriteString("\n")
	bindings := append([]key.Binding{}, pageHelp...)
	bindings = append(bindings, GlobalKeys.SlotPicker, GlobalKeys.JumpPage, GlobalKeys.ToggleFocus, GlobalKeys.Help, GlobalKeys.Quit)
	for _, kb := range bindings {
		h := kb.Help()
		b.WriteString(fmt.Sprintf("  %-8s %s\n", h.Key, h.Desc))
	}
	return b.String()
}

func renderLayout(stationBar, sidebar, content, statusBar string) string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, stationBar, main, statusBar)
}
