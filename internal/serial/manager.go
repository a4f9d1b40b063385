package serial

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager tracks which serial ports are already bound to a slot and owns
// the ports opened for them.
type Manager struct {
	mu       sync.Mutex
	baudRate int
	known    map[string]bool
	open     map[string]*Port
	log      *logrus.Entry
	list     func() ([]PortInfo, error)
}

func NewManager(log *logrus.Entry, baudRate int) *Manager {
	return &Manager{
		baudRate: baudRate,
		known:    make(map[string]bool),
		open:     make(map[string]*Port),
		log:      log,
		list:     ListPorts,
	}
}

// FindNewPorts lists board ports not yet marked known, sorted by name.
func (m *Manager) FindNewPorts() ([]PortInfo, error) {
	ports, err := m.list()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PortInfo
	for _, p := range ports {
		if m.known[p.Name] || !IsBoardPort(p) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MarkKnown excludes name from later FindNewPorts results.
func (m *Manager) MarkKnown(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[name] = true
}

// Open opens name for l. An already open port is closed first.
func (m *Manager) Open(name string, l Listener) (io.Writer, error) {
	m.Close(name)

	p, err := Open(name, m.baudRate, l, m.log)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	m.mu.Lock()
	m.open[name] = p
	m.known[name] = true
	m.mu.Unlock()
	return p, nil
}

// Close closes name if it is open.
func (m *Manager) Close(name string) {
	m.mu.Lock()
	p := m.open[name]
	delete(m.open, name)
	m.mu.Unlock()
	if p != nil {
		if err := p.Close(); err != nil {
			m.log.WithError(err).WithField("port", name).Debug("close failed")
		}
	}
}

// CloseAll closes every open port and forgets all known ports.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.open))
	for name := range m.open {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.Close(name)
	}

	m.mu.Lock()
	m.known = make(map[string]bool)
	m.mu.Unlock()
}
