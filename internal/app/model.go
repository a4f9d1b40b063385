package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/ui"
)

type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusContent
)

type Model struct {
	pages      map[PageID]Page
	activePage PageID
	focus      FocusArea
	width      int
	height     int
	showHelp   bool
	picker     *Picker
	ctl        Controller
	tester     string
	statuses   map[int]device.Status
	ids        map[int]string
	lastLine   string
}

// New builds the dashboard. It starts on the panel page with the content
// focused so the run keys work immediately.
func New(pages map[PageID]Page, ctl Controller, tester string) Model {
	return Model{
		pages:      pages,
		activePage: PanelPage,
		focus:      FocusContent,
		ctl:        ctl,
		tester:     tester,
		statuses:   make(map[int]device.Status),
		ids:        make(map[int]string),
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range m.pages {
		if cmd := p.Init(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentWidth := m.width - sidebarWidth
		contentHeight := m.height - 2 - 1 // status bar + station bar
		for _, p := range m.pages {
			p.SetSize(contentWidth, contentHeight)
		}
		return m, nil

	case PickerSelectedMsg:
		m.picker = nil
		slots := msg.Slots
		ok := m.ctl.StartRun(slots...)
		return m, func() tea.Msg { return RunStartedMsg{Slots: slots, Accepted: ok} }

	case PickerClosedMsg:
		m.picker = nil
		return m, nil

	case SlotStatusMsg:
		m.statuses[msg.Slot] = msg.Status

	case SlotIDMsg:
		m.ids[msg.Slot] = msg.ID

	case ClearSlotsMsg:
		m.statuses = make(map[int]device.Status)
		m.ids = make(map[int]string)

	case StatusLineMsg:
		m.lastLine = msg.Line

	case tea.KeyMsg:
		// When picker is open, forward all keys to picker
		if m.picker != nil {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}

		// When a page has an active text input, forward all keys
		// directly to the page; only ctrl+c still quits.
		if m.focus == FocusContent {
			if ic, ok := m.pages[m.activePage].(InputCapturer); ok && ic.InputCaptured() {
				if msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				page := m.pages[m.activePage]
				newPage, cmd := page.Update(msg)
				m.pages[m.activePage] = newPage
				return m, cmd
			}
		}

		// Global key handling
		switch {
		case key.Matches(msg, GlobalKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, GlobalKeys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, GlobalKeys.JumpPage):
			if id := pageJumps[msg.String()]; m.pages[id] != nil {
				m.activePage = id
				m.focus = FocusContent
			}
			return m, nil
		case key.Matches(msg, GlobalKeys.ToggleFocus):
			if m.focus == FocusSidebar {
				m.focus = FocusContent
			} else {
				m.focus = FocusSidebar
			}
			return m, nil
		}

		// Sidebar-only shortcuts
		if m.focus == FocusSidebar {
			if key.Matches(msg, GlobalKeys.SlotPicker) {
				m.picker = NewPicker("Retest slots", m.slotItems())
				m.picker.SetSize(m.width-sidebarWidth, m.height-2-1)
				return m, nil
			}
		}

		// Handle arrow keys based on focus
		if m.focus == FocusSidebar {
			switch msg.String() {
			case "up":
				m.prevPage()
				return m, nil
			case "down":
				m.nextPage()
				return m, nil
			case "enter", "right":
				m.focus = FocusContent
				return m, nil
			}
		} else if m.focus == FocusContent {
			if msg.String() == "left" {
				m.focus = FocusSidebar
				return m, nil
			}
		}
	}

	// Key messages: only forward to active page when content is focused
	if _, isKey := msg.(tea.KeyMsg); isKey {
		if m.focus != FocusContent {
			return m, nil
		}
		page := m.pages[m.activePage]
		newPage, cmd := page.Update(msg)
		m.pages[m.activePage] = newPage
		return m, cmd
	}

	// Non-key messages (slot updates, status lines, command results):
	// forward to all pages
	var cmds []tea.Cmd
	for id, page := range m.pages {
		newPage, cmd := page.Update(msg)
		m.pages[id] = newPage
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	contentWidth := m.width - sidebarWidth
	contentHeight := m.height - 2 - 1 // status bar + station bar

	page := m.pages[m.activePage]

	body := page.View()
	if m.showHelp {
		body = renderHelp(page.ShortHelp())
	}

	stationBar := renderStationBar(m.tester, m.ctl.Count(), m.ctl.Running(), m.lastLine, m.width)
	sidebar := renderSidebar(PageOrder, m.activePage, m.pages, renderTally(m.statuses), contentHeight, m.focus == FocusSidebar)
	content := ui.ContentStyle.
		Width(contentWidth).
		Height(contentHeight).
		Render(body)

	// Overlay picker on content area when open
	if m.picker != nil {
		m.picker.SetSize(contentWidth, contentHeight)
		pickerView := m.picker.View()
		content = lipgloss.Place(
			contentWidth, contentHeight,
			lipgloss.Center, lipgloss.Center,
			pickerView,
		)
	}

	statusBar := renderStatusBar(page.ShortHelp(), m.width, m.focus)

	return renderLayout(stationBar, sidebar, content, statusBar)
}

func (m Model) slotItems() []SlotItem {
	items := make([]SlotItem, m.ctl.Count())
	for i := range items {
		status, known := m.statuses[i]
		items[i] = SlotItem{Slot: i, Status: status, Known: known, ID: m.ids[i]}
	}
	return items
}

func (m *Model) nextPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i+1)%len(PageOrder)]
			return
		}
	}
}

func (m *Model) prevPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i-1+len(PageOrder))%len(PageOrder)]
			return
		}
	}
}
