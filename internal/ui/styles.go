package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/paneltester/internal/device"
)

// Station palette (256-color).
var (
	Primary = lipgloss.Color("63")
	Accent  = lipgloss.Color("205")
	Subtle  = lipgloss.Color("241")
	Surface = lipgloss.Color("236")
	Text    = lipgloss.Color("252")
	TextDim = lipgloss.Color("245")
	// OnStatus is the foreground drawn over a status background.
	OnStatus = lipgloss.Color("230")
)

// statusColors are the slot verdict backgrounds. Anything missing renders
// on Surface.
var statusColors = map[device.Status]lipgloss.Color{
	device.Testing:    lipgloss.Color("214"), // orange
	device.Pass:       lipgloss.Color("78"),  // green
	device.Error:      lipgloss.Color("196"), // red
	device.PortError:  lipgloss.Color("160"), // dark red
	device.Retested:   lipgloss.Color("33"),  // blue
	device.NotUpdated: lipgloss.Color("178"), // yellow
}

var (
	SidebarStyle = lipgloss.NewStyle().
			Width(20).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderRight(true).
			BorderTop(false).
			BorderBottom(false).
			BorderLeft(false).
			BorderForeground(Surface).
			Padding(1, 1)

	SidebarItemStyle = lipgloss.NewStyle().
				Foreground(TextDim).
				PaddingLeft(1)

	SidebarActiveStyle = lipgloss.NewStyle().
				Foreground(Primary).
				Bold(true).
				PaddingLeft(1)

	ContentStyle = lipgloss.NewStyle().
			Padding(1, 2)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			Background(Surface).
			Padding(0, 1)

	StatusBarKeyStyle = lipgloss.NewStyle().
				Foreground(Text).
				Background(Surface).
				Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	// CellStyle is one slot of the panel grid: three lines of status, board
	// ID and serial port.
	CellStyle = lipgloss.NewStyle().
			Width(18).
			Height(3).
			Align(lipgloss.Center).
			Foreground(OnStatus).
			Margin(0, 1, 1, 0)

	BoldStyle   = lipgloss.NewStyle().Bold(true)
	DimStyle    = lipgloss.NewStyle().Foreground(TextDim)
	AccentStyle = lipgloss.NewStyle().Foreground(Accent)
)
