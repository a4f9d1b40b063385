package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/paneltester/internal/device"
)

// PageID identifies each page in the application.
type PageID int

const (
	PanelPage PageID = iota
	LogPage
	HistoryPage
	SettingsPage
)

var PageOrder = []PageID{
	PanelPage,
	LogPage,
	HistoryPage,
	SettingsPage,
}

// Page is the interface every page in the application implements.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is an optional interface for pages with text inputs.
// When InputCaptured returns true, the app forwards all keys directly
// to the page instead of processing shortcuts like q, ?, left, etc.
type InputCapturer interface {
	InputCaptured() bool
}

// Controller is the part of the orchestrator the dashboard drives.
type Controller interface {
	StartRun(slots ...int) bool
	Transpose() bool
	FailedSlots() []int
	Running() bool
	Count() int
}

// SlotStatusMsg is broadcast to all pages when a slot changes status.
type SlotStatusMsg struct {
	Slot   int
	Status device.Status
}

// SlotIDMsg is broadcast when a slot's identity is read.
type SlotIDMsg struct {
	Slot int
	ID   string
}

// SlotUSBMsg is broadcast when a slot's serial device appears or goes.
type SlotUSBMsg struct {
	Slot int
	TTY  string
}

// ClearSlotsMsg resets every slot cell.
type ClearSlotsMsg struct{}

// StatusLineMsg carries one line of the operator status log.
type StatusLineMsg struct {
	Line string
}

// RunStartedMsg reports whether a run request was accepted.
type RunStartedMsg struct {
	Slots    []int
	Accepted bool
}
