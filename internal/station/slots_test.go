package station

import (
	"testing"

	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/hw"
)

func TestDefaultLayoutTable(t *testing.T) {
	l := DefaultLayout()
	tests := []struct {
		slot    int
		channel hw.Channel
		raw     int
	}{
		{0, hw.ChannelA, 0},
		{1, hw.ChannelA, 2},
		{2, hw.ChannelA, 4},
		{3, hw.ChannelA, 6},
		{4, hw.ChannelA, 8},
		{5, hw.ChannelB, 0},
		{6, hw.ChannelB, 2},
		{7, hw.ChannelB, 4},
		{8, hw.ChannelB, 6},
		{9, hw.ChannelB, 8},
		{10, hw.ChannelA, 1},
		{11, hw.ChannelA, 3},
		{12, hw.ChannelA, 5},
		{13, hw.ChannelA, 7},
		{14, hw.ChannelA, 9},
		{15, hw.ChannelB, 1},
		{16, hw.ChannelB, 3},
		{17, hw.ChannelB, 5},
		{18, hw.ChannelB, 7},
		{19, hw.ChannelB, 9},
	}
	if l.Len() != len(tests) {
		t.Fatalf("expected %d slots, got %d", len(tests), l.Len())
	}

	for _, tt := range tests {
		if got := l.ChannelOf(tt.slot); got != tt.channel {
			t.Errorf("ChannelOf(%d): expected %s, got=%s", tt.slot, tt.channel, got)
		}
		raw, ok := l.PhysicalSlot(tt.slot, tt.channel)
		if !ok || raw != tt.raw {
			t.Errorf("PhysicalSlot(%d, %s): expected %d, got=%d ok=%v", tt.slot, tt.channel, tt.raw, raw, ok)
		}
		other := hw.ChannelA
		if tt.channel == hw.ChannelA {
			other = hw.ChannelB
		}
		if _, ok := l.PhysicalSlot(tt.slot, other); ok {
			t.Errorf("PhysicalSlot(%d, %s): expected slot to be off channel", tt.slot, other)
		}
		slot, ok := l.LogicalSlot(tt.raw, tt.channel)
		if !ok || slot != tt.slot {
			t.Errorf("LogicalSlot(%d, %s): expected %d, got=%d ok=%v", tt.raw, tt.channel, tt.slot, slot, ok)
		}
	}
}

func TestLogicalSlotMatchesHubTable(t *testing.T) {
	// raw slot -> logical slot for channel A; channel B adds 5
	hub := []int{0, 10, 1, 11, 2, 12, 3, 13, 4, 14}
	l := DefaultLayout()
	for raw, want := range hub {
		if got, _ := l.LogicalSlot(raw, hw.ChannelA); got != want {
			t.Errorf("raw %d on A: expected %d, got=%d", raw, want, got)
		}
		if got, _ := l.LogicalSlot(raw, hw.ChannelB); got != want+5 {
			t.Errorf("raw %d on B: expected %d, got=%d", raw, want+5, got)
		}
	}
}

func TestLogicalSlotWithoutChannel(t *testing.T) {
	l := DefaultLayout()
	if _, ok := l.LogicalSlot(0, hw.ChannelNone); ok {
		t.Error("expected no slot without an active channel")
	}
	if _, ok := l.LogicalSlot(10, hw.ChannelA); ok {
		t.Error("expected no slot for unknown raw number")
	}
	if l.ChannelOf(20) != hw.ChannelNone || l.ChannelOf(-1) != hw.ChannelNone {
		t.Error("expected out of range slots to have no channel")
	}
}

func TestTranspose(t *testing.T) {
	tests := []struct {
		slot, count, want int
	}{
		{0, 20, 19},
		{19, 20, 0},
		{7, 20, 12},
		{0, 10, 9},
		{9, 10, 0},
		{4, 10, 5},
		{0, 1, 0},
	}
	for _, tt := range tests {
		if got := transpose(tt.slot, tt.count); got != tt.want {
			t.Errorf("transpose(%d, %d): expected %d, got=%d", tt.slot, tt.count, tt.want, got)
		}
	}
}

func TestNewLayoutRejectsBadChannel(t *testing.T) {
	_, err := NewLayout(config.Topology{Slots: []config.Slot{{Channel: "C", Line: 0}}})
	if err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
