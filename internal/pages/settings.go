package pages

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/paneltester/internal/app"
	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/ui"
)

type fieldKind int

const (
	textField fieldKind = iota
	secretField
	pathField
	intField
	boolField
)

// settingField binds one editable value to its place in the config. Exactly
// one accessor is set, matching kind.
type settingField struct {
	label string
	key   string
	kind  fieldKind
	min   int

	str  func(*config.Config) *string
	num  func(*config.Config) *int
	flag func(*config.Config) *bool
}

var settingFields = []settingField{
	{label: "Firmware Image", key: "firmware_file", kind: pathField,
		str: func(c *config.Config) *string { return &c.FirmwareFile }},
	{label: "Firmware Build", key: "firmware_build", kind: intField,
		num: func(c *config.Config) *int { return &c.FirmwareBuild }},
	{label: "Retries", key: "retries", kind: intField, min: 1,
		num: func(c *config.Config) *int { return &c.Retries }},
	{label: "Tester Name", key: "tester_name", kind: textField,
		str: func(c *config.Config) *string { return &c.TesterName }},
	{label: "WiFi SSID", key: "wifi_ssid", kind: textField,
		str: func(c *config.Config) *string { return &c.WifiSSID }},
	{label: "WiFi Password", key: "wifi_password", kind: secretField,
		str: func(c *config.Config) *string { return &c.WifiPassword }},
	{label: "Check I2C", key: "check_i2c", kind: boolField,
		flag: func(c *config.Config) *bool { return &c.CheckI2C }},
	{label: "Factory Reset", key: "factory_reset", kind: boolField,
		flag: func(c *config.Config) *bool { return &c.FactoryReset }},
}

// SettingsPage edits the station config. Changes apply on the next start.
type SettingsPage struct {
	cfg           *config.Config
	stationRoot   string
	cursor        int
	editing       bool
	dirty         bool
	input         textinput.Model
	width, height int
	message       string
}

func NewSettingsPage(cfg *config.Config, stationRoot string) *SettingsPage {
	ti := textinput.New()
	ti.CharLimit = 128
	return &SettingsPage{
		cfg:         cfg,
		stationRoot: stationRoot,
		input:       ti,
	}
}

func (p *SettingsPage) Init() tea.Cmd { return nil }

func (p *SettingsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}

	if p.editing {
		switch km.String() {
		case "enter":
			p.commit(p.input.Value())
			p.stopEditing()
			return p, nil
		case "esc":
			p.stopEditing()
			return p, nil
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(km)
		return p, cmd
	}

	switch km.String() {
	case "down":
		if p.cursor < len(settingFields)-1 {
			p.cursor++
		}
	case "up":
		if p.cursor > 0 {
			p.cursor--
		}
	case "enter", "e", " ":
		f := settingFields[p.cursor]
		if f.kind == boolField {
			v := f.flag(p.cfg)
			*v = !*v
			p.dirty = true
			p.message = fmt.Sprintf("%s %s", f.label, onOff(*v))
			return p, nil
		}
		p.editing = true
		p.input.SetValue(p.rawValue(f))
		if f.kind == secretField {
			p.input.EchoMode = textinput.EchoPassword
		}
		return p, p.input.Focus()
	case "s":
		if err := config.Save(*p.cfg, p.stationRoot, false); err != nil {
			p.message = fmt.Sprintf("Error saving: %v", err)
		} else {
			p.dirty = false
			p.message = "Settings saved to station, restart to apply"
		}
	}
	return p, nil
}

func (p *SettingsPage) stopEditing() {
	p.editing = false
	p.input.EchoMode = textinput.EchoNormal
	p.input.Blur()
}

func (p *SettingsPage) View() string {
	var inner strings.Builder

	for i, f := range settingFields {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}
		val := p.getValue(i)
		if val == "" {
			val = ui.DimStyle.Render("(not set)")
		}
		inner.WriteString(fmt.Sprintf("%s%-20s %s\n", cursor, f.label, val))
	}

	if p.editing {
		inner.WriteString(fmt.Sprintf("\n  Edit %s:\n  %s\n", settingFields[p.cursor].label, p.input.View()))
	}
	if p.dirty {
		inner.WriteString("\n  " + ui.AccentStyle.Render("unsaved changes"))
	}
	if p.message != "" {
		inner.WriteString("\n  " + p.message)
	}

	return ui.Panel("Settings", inner.String(), p.width, 0, false)
}

func (p *SettingsPage) Name() string { return "Settings" }

func (p *SettingsPage) ShortHelp() []key.Binding {
	if p.editing {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit/toggle")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save to disk")),
	}
}

func (p *SettingsPage) InputCaptured() bool {
	return p.editing
}

func (p *SettingsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}

// getValue is the displayed value of field idx.
func (p *SettingsPage) getValue(idx int) string {
	f := settingFields[idx]
	switch f.kind {
	case secretField:
		return strings.Repeat("*", len(*f.str(p.cfg)))
	case boolField:
		return onOff(*f.flag(p.cfg))
	}
	return p.rawValue(f)
}

func (p *SettingsPage) rawValue(f settingField) string {
	switch f.kind {
	case intField:
		if n := *f.num(p.cfg); n != 0 {
			return strconv.Itoa(n)
		}
		return ""
	case boolField:
		return strconv.FormatBool(*f.flag(p.cfg))
	default:
		return *f.str(p.cfg)
	}
}

func (p *SettingsPage) commit(val string) {
	f := settingFields[p.cursor]
	if err := p.apply(f, strings.TrimSpace(val)); err != nil {
		p.message = fmt.Sprintf("%s: %v", f.label, err)
		return
	}
	p.dirty = true
	p.message = fmt.Sprintf("%s updated", f.label)
}

var errNotNumber = errors.New("must be a number")

func (p *SettingsPage) apply(f settingField, val string) error {
	switch f.kind {
	case intField:
		n := 0
		if val != "" {
			var err error
			if n, err = strconv.Atoi(val); err != nil {
				return errNotNumber
			}
		}
		if n < f.min {
			return fmt.Errorf("must be at least %d", f.min)
		}
		*f.num(p.cfg) = n
	case pathField:
		if val != "" {
			path := val
			if !filepath.IsAbs(path) {
				path = filepath.Join(p.stationRoot, path)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("not found: %s", path)
			}
		}
		*f.str(p.cfg) = val
	default:
		*f.str(p.cfg) = val
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
