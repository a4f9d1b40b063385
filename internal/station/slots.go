package station

import (
	"fmt"

	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/hw"
)

// Layout maps logical slots onto the channel that serves them and the raw
// slot number shared by the switchboard enable line and the USB hub port.
//
// Production panel:
//
//	logical  channel  raw
//	  0- 4      A     0 2 4 6 8
//	  5- 9      B     0 2 4 6 8
//	 10-14      A     1 3 5 7 9
//	 15-19      B     1 3 5 7 9
//
// Every raw number appears once per channel, so an attach on a USB port
// only identifies a logical slot once the active channel is known.
type Layout struct {
	channels []hw.Channel
	raw      []int
}

// NewLayout builds a Layout from a wiring description.
func NewLayout(topo config.Topology) (Layout, error) {
	if err := topo.Validate(); err != nil {
		return Layout{}, err
	}
	l := Layout{}
	for i, s := range topo.Slots {
		ch, err := hw.ParseChannel(s.Channel)
		if err != nil {
			return Layout{}, fmt.Errorf("slot %d: %w", i, err)
		}
		l.channels = append(l.channels, ch)
		l.raw = append(l.raw, s.Line)
	}
	return l, nil
}

// DefaultLayout is the production 20-slot panel.
func DefaultLayout() Layout {
	l, err := NewLayout(config.DefaultTopology())
	if err != nil {
		panic(err)
	}
	return l
}

// Len is the number of logical slots.
func (l Layout) Len() int {
	return len(l.raw)
}

// ChannelOf returns the channel serving slot.
func (l Layout) ChannelOf(slot int) hw.Channel {
	if slot < 0 || slot >= len(l.channels) {
		return hw.ChannelNone
	}
	return l.channels[slot]
}

// PhysicalSlot returns the raw slot of a logical slot on ch. It reports
// false when the slot is not served by ch.
func (l Layout) PhysicalSlot(slot int, ch hw.Channel) (int, bool) {
	if l.ChannelOf(slot) != ch || ch == hw.ChannelNone {
		return 0, false
	}
	return l.raw[slot], true
}

// LogicalSlot is the inverse of PhysicalSlot.
func (l Layout) LogicalSlot(raw int, ch hw.Channel) (int, bool) {
	if ch == hw.ChannelNone {
		return 0, false
	}
	for slot := range l.raw {
		if l.raw[slot] == raw && l.channels[slot] == ch {
			return slot, true
		}
	}
	return 0, false
}

// transpose maps a slot onto its position on a panel of count boards
// loaded upside down.
func transpose(slot, count int) int {
	return count - 1 - slot
}
