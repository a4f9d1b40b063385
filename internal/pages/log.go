package pages

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/paneltester/internal/app"
	"github.com/buckleypaul/paneltester/internal/ui"
)

const maxLogLines = 1000

// LogPage is the scrolling operator status log.
type LogPage struct {
	lines         []string
	viewport      viewport.Model
	follow        bool
	width, height int
}

func NewLogPage() *LogPage {
	return &LogPage{
		viewport: viewport.New(0, 0),
		follow:   true,
	}
}

func (p *LogPage) Init() tea.Cmd { return nil }

func (p *LogPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.StatusLineMsg:
		p.lines = append(p.lines, msg.Line)
		if len(p.lines) > maxLogLines {
			p.lines = p.lines[len(p.lines)-maxLogLines:]
		}
		p.viewport.SetContent(strings.Join(p.lines, "\n"))
		if p.follow {
			p.viewport.GotoBottom()
		}
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			p.lines = nil
			p.viewport.SetContent("")
			return p, nil
		case "end", "G":
			p.follow = true
			p.viewport.GotoBottom()
			return p, nil
		}
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		p.follow = p.viewport.AtBottom()
		return p, cmd
	}
	return p, nil
}

func (p *LogPage) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("Status"))
	b.WriteString("\n")
	if len(p.lines) == 0 {
		b.WriteString(ui.DimStyle.Render("  Nothing logged yet."))
		return b.String()
	}
	b.WriteString(p.viewport.View())
	return b.String()
}

func (p *LogPage) Name() string { return "Status log" }

func (p *LogPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
		key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "follow")),
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	}
}

func (p *LogPage) SetSize(w, h int) {
	p.width = w
	p.height = h
	vpHeight := h - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	p.viewport.Width = w - 4
	p.viewport.Height = vpHeight
}
