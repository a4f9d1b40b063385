package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/paneltester/internal/device"
)

// Display forwards orchestrator updates into the running program.
type Display struct {
	send func(tea.Msg)
}

// NewDisplay returns a Display posting messages through send, normally
// (*tea.Program).Send.
func NewDisplay(send func(tea.Msg)) *Display {
	return &Display{send: send}
}

func (d *Display) SetStatus(slot int, s device.Status) {
	d.send(SlotStatusMsg{Slot: slot, Status: s})
}

func (d *Display) SetID(slot int, id string) {
	d.send(SlotIDMsg{Slot: slot, ID: id})
}

func (d *Display) SetUSB(slot int, tty string) {
	d.send(SlotUSBMsg{Slot: slot, TTY: tty})
}

func (d *Display) Clear() {
	d.send(ClearSlotsMsg{})
}

// StatusLine posts one status log line. It matches logging.StatusHook.Send.
func (d *Display) StatusLine(line string) {
	d.send(StatusLineMsg{Line: line})
}
