package hw

import (
	"fmt"
	"sort"
	"sync"
)

// HealthyRails returns readings of a good board powered from rail.
func HealthyRails(rail Rail) Rails {
	switch rail {
	case RailVBUS:
		return Rails{VBUS: 5.0, VCC: 4.8, V3V3: 3.1, Battery: 4.0}
	case RailBattery:
		return Rails{Battery: 5.0, VBUS: 0.1, VCC: 4.8, V3V3: 3.3}
	default:
		return Rails{}
	}
}

type railKey struct {
	ch   Channel
	line int
	rail Rail
}

// Simulator is an in-memory Switchboard and VoltageSource. Every board is
// healthy unless overridden with SetRails.
type Simulator struct {
	mu       sync.Mutex
	rail     Rail
	channel  Channel
	enabled  map[int]bool
	reset    bool
	flash    bool
	pressed  int
	fault    bool
	override map[railKey]Rails
	calls    []string

	// OnEnable, when set, is called after a line is enabled.
	OnEnable func(line int, rail Rail, ch Channel)
	// OnReset, when set, is called after reset is released.
	OnReset func(flash bool)
}

func NewSimulator() *Simulator {
	return &Simulator{
		enabled:  make(map[int]bool),
		override: make(map[railKey]Rails),
	}
}

// SetRails overrides the readings of line on ch while powered from rail.
func (s *Simulator) SetRails(ch Channel, line int, rail Rail, r Rails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override[railKey{ch, line, rail}] = r
}

// Press queues one button press.
func (s *Simulator) Press() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressed++
}

// SetPowerFault sets the value reported by IsPowerFault.
func (s *Simulator) SetPowerFault(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = v
}

// Calls returns the recorded switchboard commands.
func (s *Simulator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Enabled returns the enabled lines in ascending order.
func (s *Simulator) Enabled() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for l, on := range s.enabled {
		if on {
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

func (s *Simulator) record(format string, args ...any) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *Simulator) setRail(r Rail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rail = r
	s.record("power %s", r)
}

func (s *Simulator) PowerOff()     { s.setRail(RailOff) }
func (s *Simulator) PowerVBUS()    { s.setRail(RailVBUS) }
func (s *Simulator) PowerBattery() { s.setRail(RailBattery) }

func (s *Simulator) Enable(line int) {
	s.mu.Lock()
	s.enabled[line] = true
	s.record("enable %d", line)
	hook, rail, ch := s.OnEnable, s.rail, s.channel
	s.mu.Unlock()
	if hook != nil {
		hook(line, rail, ch)
	}
}

func (s *Simulator) Disable(line int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enabled, line)
	s.record("disable %d", line)
}

func (s *Simulator) DisableAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = make(map[int]bool)
	s.record("disable all")
}

func (s *Simulator) ResetMode(on bool) {
	s.mu.Lock()
	s.reset = on
	s.record("reset %t", on)
	hook, flash := s.OnReset, s.flash
	s.mu.Unlock()
	if !on && hook != nil {
		hook(flash)
	}
}

func (s *Simulator) FlashMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = on
	s.record("flash %t", on)
}

func (s *Simulator) setChannel(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = ch
	s.record("channel %s", ch)
}

func (s *Simulator) EnableChannelA()  { s.setChannel(ChannelA) }
func (s *Simulator) EnableChannelB()  { s.setChannel(ChannelB) }
func (s *Simulator) DisableChannels() { s.setChannel(ChannelNone) }

func (s *Simulator) IsPowerFault() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// IsButtonPressed consumes one queued press.
func (s *Simulator) IsButtonPressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pressed == 0 {
		return false
	}
	s.pressed--
	return true
}

// rails returns the readings for the single enabled line. With nothing or
// several lines enabled the ADC sees the bare rail.
func (s *Simulator) rails() Rails {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []int
	for l, on := range s.enabled {
		if on {
			lines = append(lines, l)
		}
	}
	if len(lines) != 1 {
		r := Rails{}
		switch s.rail {
		case RailVBUS:
			r.VBUS = 5.0
		case RailBattery:
			r.Battery = 5.0
		}
		return r
	}
	if r, ok := s.override[railKey{s.channel, lines[0], s.rail}]; ok {
		return r
	}
	return HealthyRails(s.rail)
}

func (s *Simulator) VBUS() (float64, error)    { return s.rails().VBUS, nil }
func (s *Simulator) Battery() (float64, error) { return s.rails().Battery, nil }
func (s *Simulator) V3V3() (float64, error)    { return s.rails().V3V3, nil }
func (s *Simulator) VCC() (float64, error)     { return s.rails().VCC, nil }
