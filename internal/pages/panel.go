package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/paneltester/internal/app"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/ui"
)

const panelColumns = 5

type panelKeyMap struct {
	All        key.Binding
	FirstHalf  key.Binding
	SecondHalf key.Binding
	Slot       key.Binding
	Failed     key.Binding
	Transpose  key.Binding
}

var panelKeys = panelKeyMap{
	All:        key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "test all")),
	FirstHalf:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "first half")),
	SecondHalf: key.NewBinding(key.WithKeys("j"), key.WithHelp("j", "second half")),
	Slot: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9", "0"),
		key.WithHelp("1-0", "one slot"),
	),
	Failed:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "retry failed")),
	Transpose: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "transpose")),
}

type slotView struct {
	status device.Status
	id     string
	tty    string
}

// PanelPage shows one colored cell per slot and starts runs.
type PanelPage struct {
	ctl           app.Controller
	slots         []slotView
	message       string
	width, height int
}

func NewPanelPage(ctl app.Controller) *PanelPage {
	return &PanelPage{
		ctl:   ctl,
		slots: make([]slotView, ctl.Count()),
	}
}

func (p *PanelPage) Init() tea.Cmd { return nil }

func (p *PanelPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		p.handleKey(msg)

	case app.SlotStatusMsg:
		if v := p.slot(msg.Slot); v != nil {
			v.status = msg.Status
		}
	case app.SlotIDMsg:
		if v := p.slot(msg.Slot); v != nil {
			v.id = msg.ID
		}
	case app.SlotUSBMsg:
		if v := p.slot(msg.Slot); v != nil {
			v.tty = msg.TTY
		}
	case app.ClearSlotsMsg:
		for i := range p.slots {
			p.slots[i] = slotView{}
		}
	case app.RunStartedMsg:
		p.started(msg.Slots, msg.Accepted)
	}
	return p, nil
}

func (p *PanelPage) handleKey(msg tea.KeyMsg) {
	n := len(p.slots)
	switch {
	case key.Matches(msg, panelKeys.All):
		p.start(nil)
	case key.Matches(msg, panelKeys.FirstHalf):
		p.start(span(0, n/2))
	case key.Matches(msg, panelKeys.SecondHalf):
		p.start(span(n/2, n))
	case key.Matches(msg, panelKeys.Slot):
		slot := int(msg.String()[0] - '1')
		if msg.String() == "0" {
			slot = 9
		}
		if slot >= n {
			p.message = fmt.Sprintf("No slot %d on this panel", slot+1)
			return
		}
		p.start([]int{slot})
	case key.Matches(msg, panelKeys.Failed):
		failed := p.ctl.FailedSlots()
		if len(failed) == 0 {
			p.message = "No failed slots"
			return
		}
		p.start(failed)
	case key.Matches(msg, panelKeys.Transpose):
		if p.ctl.Transpose() {
			p.message = "Panel transposed"
		} else {
			p.message = "Cannot transpose during a run"
		}
	}
}

func (p *PanelPage) start(slots []int) {
	p.started(slots, p.ctl.StartRun(slots...))
}

func (p *PanelPage) started(slots []int, accepted bool) {
	switch {
	case !accepted:
		p.message = "Run already in progress"
	case len(slots) == 0:
		p.message = "Testing all slots"
	default:
		names := make([]string, len(slots))
		for i, s := range slots {
			names[i] = fmt.Sprint(s + 1)
		}
		p.message = "Testing slots " + strings.Join(names, ", ")
	}
}

func (p *PanelPage) slot(n int) *slotView {
	if n < 0 || n >= len(p.slots) {
		return nil
	}
	return &p.slots[n]
}

func span(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func (p *PanelPage) View() string {
	var rows []string
	for start := 0; start < len(p.slots); start += panelColumns {
		var cells []string
		for i := start; i < start+panelColumns && i < len(p.slots); i++ {
			v := p.slots[i]
			cells = append(cells, ui.SlotCell(i, v.status, v.id, v.tty))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))
	b.WriteString("\n")
	if p.message != "" {
		b.WriteString("  " + p.message)
	}
	return ui.Panel("Panel", b.String(), p.width, 0, false)
}

func (p *PanelPage) Name() string { return "Panel" }

func (p *PanelPage) ShortHelp() []key.Binding {
	return []key.Binding{
		panelKeys.All,
		panelKeys.FirstHalf,
		panelKeys.SecondHalf,
		panelKeys.Slot,
		panelKeys.Failed,
		panelKeys.Transpose,
	}
}

func (p *PanelPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
