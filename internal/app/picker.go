package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/ui"
)

// SlotItem is one row of the slot picker.
type SlotItem struct {
	Slot   int
	Status device.Status
	Known  bool // Status is set
	ID     string
}

func (it SlotItem) label() string {
	return fmt.Sprintf("Slot %2d", it.Slot+1)
}

// matches reports whether the filter query selects this slot. Digits match
// the slot number by prefix; anything else matches the board ID.
func (it SlotItem) matches(query string) bool {
	if query == "" {
		return true
	}
	if _, err := strconv.Atoi(query); err == nil {
		return strings.HasPrefix(strconv.Itoa(it.Slot+1), query)
	}
	return it.ID != "" && strings.Contains(strings.ToLower(it.ID), query)
}

// PickerSelectedMsg is sent when the user confirms a set of slots.
type PickerSelectedMsg struct {
	Slots []int
}

// PickerClosedMsg is sent when the user closes the picker without selecting.
type PickerClosedMsg struct{}

// Picker is the retest overlay: a filtered slot list where several slots
// can be marked and retested together.
type Picker struct {
	title      string
	items      []SlotItem
	filtered   []SlotItem
	marked     map[int]bool
	failedOnly bool
	input      textinput.Model
	cursor     int
	width      int
	height     int
}

const maxPickerItems = 12

func NewPicker(title string, items []SlotItem) *Picker {
	ti := textinput.New()
	ti.Placeholder = "slot number or board id..."
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 32

	p := &Picker{
		title:  title,
		items:  items,
		marked: make(map[int]bool),
		input:  ti,
	}
	p.filter()
	return p
}

func (p *Picker) SetSize(w, h int) {
	p.width = w
	p.height = h
}

// Selection returns the marked slots, or the slot under the cursor when
// nothing is marked.
func (p *Picker) Selection() []int {
	if len(p.marked) > 0 {
		slots := make([]int, 0, len(p.marked))
		for s := range p.marked {
			slots = append(slots, s)
		}
		sort.Ints(slots)
		return slots
	}
	if p.cursor < len(p.filtered) {
		return []int{p.filtered[p.cursor].Slot}
	}
	return nil
}

func (p *Picker) Update(msg tea.Msg) (*Picker, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return p, func() tea.Msg { return PickerClosedMsg{} }
		case "enter":
			slots := p.Selection()
			if len(slots) == 0 {
				return p, nil
			}
			return p, func() tea.Msg { return PickerSelectedMsg{Slots: slots} }
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case "down":
			if p.cursor < len(p.filtered)-1 {
				p.cursor++
			}
			return p, nil
		case "tab":
			if p.cursor < len(p.filtered) {
				s := p.filtered[p.cursor].Slot
				if p.marked[s] {
					delete(p.marked, s)
				} else {
					p.marked[s] = true
				}
			}
			return p, nil
		case "ctrl+f":
			p.failedOnly = !p.failedOnly
			p.filter()
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter()
	return p, cmd
}

func (p *Picker) View() string {
	boxWidth := p.width - 4
	if boxWidth > 60 {
		boxWidth = 60
	}
	if boxWidth < 30 {
		boxWidth = 30
	}
	innerWidth := boxWidth - 4 // border + padding

	var b strings.Builder
	p.input.Width = innerWidth - 3 // prompt "> "
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	visible := maxPickerItems
	if visible > len(p.filtered) {
		visible = len(p.filtered)
	}
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := start + visible

	selected := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)
	for i := start; i < end; i++ {
		it := p.filtered[i]
		mark := "[ ]"
		if p.marked[it.Slot] {
			mark = "[x]"
		}
		row := mark + " " + it.label()
		if i == p.cursor {
			row = selected.Render("> " + row)
		} else {
			row = "  " + row
		}
		if it.Known {
			row += "  " + lipgloss.NewStyle().Foreground(ui.StatusColor(it.Status)).Render(it.Status.String())
		}
		if it.ID != "" && lipgloss.Width(row)+len(it.ID)+2 <= innerWidth {
			row += "  " + ui.DimStyle.Render(it.ID)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	if len(p.filtered) == 0 {
		b.WriteString(ui.DimStyle.Render("  No matching slots"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	footer := fmt.Sprintf("(%d/%d slots, %d marked)  tab:mark  ctrl+f:failed  esc:close",
		len(p.filtered), len(p.items), len(p.marked))
	if p.failedOnly {
		footer = "failed only " + footer
	}
	b.WriteString(ui.DimStyle.Render(footer))

	box := lipgloss.NewStyle().
		Width(boxWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ui.Primary).
		Padding(1, 1).
		Render(b.String())

	return titledBorder(box, lipgloss.NewStyle().Foreground(ui.Primary).Bold(true).Render(" "+p.title+" "))
}

// titledBorder writes title over the top border of box, three cells in.
func titledBorder(box, title string) string {
	lines := strings.Split(box, "\n")
	top := []rune(lines[0])
	t := []rune(title)
	const at = 3
	if at+len(t) >= len(top) {
		return box
	}
	out := make([]rune, 0, len(top))
	out = append(out, top[:at]...)
	out = append(out, t...)
	out = append(out, top[at+len(t):]...)
	lines[0] = string(out)
	return strings.Join(lines, "\n")
}

func (p *Picker) filter() {
	query := strings.ToLower(strings.TrimSpace(p.input.Value()))
	p.filtered = nil
	for _, it := range p.items {
		if p.failedOnly && !(it.Known && it.Status.Failed()) {
			continue
		}
		if it.matches(query) {
			p.filtered = append(p.filtered, it)
		}
	}
	if p.cursor >= len(p.filtered) {
		p.cursor = len(p.filtered) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}
