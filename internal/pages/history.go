package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/paneltester/internal/app"
	"github.com/buckleypaul/paneltester/internal/store"
	"github.com/buckleypaul/paneltester/internal/ui"
)

const historyVisible = 15

type historyLoadedMsg struct {
	records []store.ReportRecord
	err     error
}

// HistoryPage lists the locally archived board reports, newest first.
type HistoryPage struct {
	store         *store.Store
	records       []store.ReportRecord
	cursor        int
	detail        bool
	message       string
	width, height int
}

func NewHistoryPage(s *store.Store) *HistoryPage {
	return &HistoryPage{store: s}
}

func (p *HistoryPage) Init() tea.Cmd { return p.load() }

func (p *HistoryPage) load() tea.Cmd {
	s := p.store
	return func() tea.Msg {
		if s == nil {
			return historyLoadedMsg{}
		}
		records, err := s.Reports()
		return historyLoadedMsg{records: records, err: err}
	}
}

func (p *HistoryPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Error loading reports: %v", msg.err)
			return p, nil
		}
		p.message = ""
		p.records = make([]store.ReportRecord, len(msg.records))
		for i, r := range msg.records {
			p.records[len(msg.records)-1-i] = r
		}
		if p.cursor >= len(p.records) {
			p.cursor = 0
		}
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "down":
			if p.cursor < len(p.records)-1 {
				p.cursor++
			}
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "enter":
			p.detail = !p.detail
		case "esc":
			p.detail = false
		case "r":
			return p, p.load()
		}
	}
	return p, nil
}

func (p *HistoryPage) View() string {
	var inner strings.Builder

	if p.message != "" {
		inner.WriteString("  " + p.message + "\n")
	}
	if len(p.records) == 0 {
		inner.WriteString(ui.DimStyle.Render("  No reports archived yet."))
		return ui.Panel("History", inner.String(), p.width, 0, false)
	}

	if p.detail {
		p.writeDetail(&inner, p.records[p.cursor])
		return ui.Panel("History", inner.String(), p.width, 0, false)
	}

	start := 0
	if p.cursor >= historyVisible {
		start = p.cursor - historyVisible + 1
	}
	for i := start; i < len(p.records) && i < start+historyVisible; i++ {
		r := p.records[i]
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}
		failed := 0
		for _, res := range r.Results {
			if res.Failed {
				failed++
			}
		}
		inner.WriteString(fmt.Sprintf("%s%s  slot %-2d %-17s %-11s %d steps, %d failed\n",
			cursor, r.EndedAt.Local().Format("2006-01-02 15:04"), r.Slot, r.ID, r.Status, len(r.Results), failed))
	}
	return ui.Panel("History", inner.String(), p.width, 0, false)
}

func (p *HistoryPage) writeDetail(b *strings.Builder, r store.ReportRecord) {
	b.WriteString(fmt.Sprintf("  %s  slot %d  %s\n", r.ID, r.Slot, r.Status))
	if r.LogFile != "" {
		b.WriteString(ui.DimStyle.Render("  "+r.LogFile) + "\n")
	}
	b.WriteString("\n")
	for _, res := range r.Results {
		b.WriteString(fmt.Sprintf("  %s %-30s %s\n", ui.StepBadge(res.Failed), res.Step, res.Value))
	}
}

func (p *HistoryPage) Name() string { return "History" }

func (p *HistoryPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
}

func (p *HistoryPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
