package pages

import (
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/paneltester/internal/app"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/store"
)

type fakeController struct {
	count      int
	busy       bool
	failed     []int
	transposed int
	runs       [][]int
}

func (c *fakeController) StartRun(slots ...int) bool {
	if c.busy {
		return false
	}
	c.runs = append(c.runs, slots)
	return true
}

func (c *fakeController) Transpose() bool {
	if c.busy {
		return false
	}
	c.transposed++
	return true
}

func (c *fakeController) FailedSlots() []int { return c.failed }
func (c *fakeController) Running() bool      { return c.busy }
func (c *fakeController) Count() int         { return c.count }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPanelKeysStartRuns(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want []int
	}{
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, nil},
		{"first half", runes("u"), []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"second half", runes("j"), []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}},
		{"digit", runes("3"), []int{2}},
		{"zero is slot ten", runes("0"), []int{9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{count: 20}
			p := NewPanelPage(ctl)
			p.Update(tt.key)
			if len(ctl.runs) != 1 {
				t.Fatalf("expected 1 run, got %d", len(ctl.runs))
			}
			if len(tt.want) == 0 {
				if len(ctl.runs[0]) != 0 {
					t.Fatalf("expected full run, got %v", ctl.runs[0])
				}
				return
			}
			if !reflect.DeepEqual(ctl.runs[0], tt.want) {
				t.Fatalf("expected slots %v, got %v", tt.want, ctl.runs[0])
			}
		})
	}
}

func TestPanelRetryFailed(t *testing.T) {
	ctl := &fakeController{count: 20}
	p := NewPanelPage(ctl)

	p.Update(runes("f"))
	if len(ctl.runs) != 0 {
		t.Fatal("expected no run without failed slots")
	}
	if p.message != "No failed slots" {
		t.Fatalf("unexpected message %q", p.message)
	}

	ctl.failed = []int{4, 12}
	p.Update(runes("f"))
	if len(ctl.runs) != 1 || !reflect.DeepEqual(ctl.runs[0], []int{4, 12}) {
		t.Fatalf("expected retest of failed slots, got %v", ctl.runs)
	}
	if !strings.Contains(p.message, "5, 13") {
		t.Fatalf("expected 1-based slot numbers in %q", p.message)
	}
}

func TestPanelBusyAndTranspose(t *testing.T) {
	ctl := &fakeController{count: 4, busy: true}
	p := NewPanelPage(ctl)

	p.Update(runes("1"))
	if p.message != "Run already in progress" {
		t.Fatalf("unexpected message %q", p.message)
	}
	p.Update(runes("t"))
	if ctl.transposed != 0 {
		t.Fatal("transposed during a run")
	}

	ctl.busy = false
	p.Update(runes("t"))
	if ctl.transposed != 1 {
		t.Fatal("expected transpose while idle")
	}
	p.Update(runes("9"))
	if len(ctl.runs) != 0 || !strings.Contains(p.message, "No slot 9") {
		t.Fatalf("expected out-of-range slot to be refused, runs=%v message=%q", ctl.runs, p.message)
	}
}

func TestPanelAppliesSlotMessages(t *testing.T) {
	p := NewPanelPage(&fakeController{count: 2})

	p.Update(app.SlotStatusMsg{Slot: 1, Status: device.Pass})
	p.Update(app.SlotIDMsg{Slot: 1, ID: "aa:bb:cc:dd:ee:ff"})
	p.Update(app.SlotUSBMsg{Slot: 1, TTY: "/dev/ttyUSB0"})
	p.Update(app.SlotStatusMsg{Slot: 7, Status: device.Error})

	want := slotView{status: device.Pass, id: "aa:bb:cc:dd:ee:ff", tty: "/dev/ttyUSB0"}
	if p.slots[1] != want {
		t.Fatalf("expected %+v, got %+v", want, p.slots[1])
	}

	p.SetSize(120, 40)
	if !strings.Contains(p.View(), "aa:bb:cc:dd:ee:ff") {
		t.Fatal("expected identity in the grid")
	}

	p.Update(app.ClearSlotsMsg{})
	if p.slots[1] != (slotView{}) {
		t.Fatalf("expected cleared slot, got %+v", p.slots[1])
	}
}

func TestLogPageKeepsLines(t *testing.T) {
	p := NewLogPage()
	p.SetSize(80, 20)

	for i := 0; i < maxLogLines+5; i++ {
		p.Update(app.StatusLineMsg{Line: "line"})
	}
	if len(p.lines) != maxLogLines {
		t.Fatalf("expected %d lines, got %d", maxLogLines, len(p.lines))
	}

	p.Update(runes("c"))
	if len(p.lines) != 0 {
		t.Fatal("expected clear")
	}
	if !strings.Contains(p.View(), "Nothing logged yet") {
		t.Fatal("expected empty placeholder")
	}
}

func TestHistoryPageNewestFirst(t *testing.T) {
	s := store.New(t.TempDir())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"aa:00", "aa:01"} {
		if err := s.AddReport(store.ReportRecord{ID: id, Slot: i + 1, Status: "pass", EndedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	p := NewHistoryPage(s)
	msg := p.Init()()
	p.Update(msg)

	if len(p.records) != 2 || p.records[0].ID != "aa:01" {
		t.Fatalf("expected newest first, got %+v", p.records)
	}

	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !p.detail || p.cursor != 1 {
		t.Fatalf("expected detail of second record, detail=%v cursor=%d", p.detail, p.cursor)
	}
	p.SetSize(100, 30)
	if !strings.Contains(p.View(), "aa:00") {
		t.Fatal("expected selected record in detail view")
	}
}

func TestHistoryPageEmptyStore(t *testing.T) {
	p := NewHistoryPage(store.New(t.TempDir()))
	p.Update(p.Init()())
	p.SetSize(80, 20)
	if !strings.Contains(p.View(), "No reports archived yet") {
		t.Fatal("expected empty placeholder")
	}
}
