package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Slot places one logical slot on a channel and enable line.
type Slot struct {
	Channel string `yaml:"channel"`
	Line    int    `yaml:"line"`
}

// Topology describes how the panel is wired: which USB hub port serves
// which raw slot, and where every logical slot sits.
type Topology struct {
	USB   map[string]int `yaml:"usb"`
	Slots []Slot         `yaml:"slots"`
}

// DefaultTopology is the production 20-slot panel.
func DefaultTopology() Topology {
	t := Topology{
		USB: map[string]int{
			"1-1.3.2": 0,
			"1-1.4.2": 1,
			"1-1.2.1": 2,
			"1-1.4.1": 3,
			"1-1.3.1": 4,
			"1-1.2.2": 5,
			"1-1.3.3": 6,
			"1-1.2.3": 7,
			"1-1.2.4": 8,
			"1-1.3.4": 9,
		},
	}
	for _, half := range []int{0, 1} {
		for _, ch := range []string{"A", "B"} {
			for i := 0; i < 5; i++ {
				t.Slots = append(t.Slots, Slot{Channel: ch, Line: i*2 + half})
			}
		}
	}
	return t
}

// LoadTopology reads a YAML topology file. A missing file yields the
// default topology.
func LoadTopology(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultTopology(), nil
	}
	if err != nil {
		return Topology{}, err
	}

	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Topology{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Topology{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Validate checks that every slot occupies a distinct line on its channel
// and every USB address maps to a distinct raw slot.
func (t Topology) Validate() error {
	if len(t.Slots) == 0 {
		return errors.New("no slots defined")
	}
	used := make(map[Slot]int)
	for i, s := range t.Slots {
		if s.Channel != "A" && s.Channel != "B" {
			return fmt.Errorf("slot %d: unknown channel %q", i, s.Channel)
		}
		if s.Line < 0 {
			return fmt.Errorf("slot %d: negative line %d", i, s.Line)
		}
		if prev, ok := used[s]; ok {
			return fmt.Errorf("slot %d: channel %s line %d already used by slot %d", i, s.Channel, s.Line, prev)
		}
		used[s] = i
	}
	raw := make(map[int]string)
	for addr, n := range t.USB {
		if prev, ok := raw[n]; ok {
			return fmt.Errorf("usb %s: raw slot %d already used by %s", addr, n, prev)
		}
		raw[n] = addr
	}
	return nil
}

// Save writes t as YAML to path.
func (t Topology) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
