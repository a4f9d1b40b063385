package hw

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// Consumer labels the lines this process holds in the kernel's line info.
const Consumer = "paneltester"

// Pins maps switchboard functions to line offsets on the GPIO chip.
type Pins struct {
	Enable   []int `json:"enable,omitempty"`
	Battery  int   `json:"battery,omitempty"`
	VBUS     int   `json:"vbus,omitempty"`
	Reset    int   `json:"reset,omitempty"`
	Flash    int   `json:"flash,omitempty"`
	ChannelA int   `json:"channel_a,omitempty"`
	ChannelB int   `json:"channel_b,omitempty"`
	Button   int   `json:"button,omitempty"`
	Fault    int   `json:"fault,omitempty"`
}

// DefaultPins is the wiring of the reference tester board.
func DefaultPins() Pins {
	return Pins{
		Enable:   []int{26, 24, 23, 21, 20, 25, 16, 12, 8, 7},
		Battery:  6,
		VBUS:     5,
		Reset:    19,
		Flash:    13,
		ChannelA: 9,
		ChannelB: 11,
		Button:   10,
		Fault:    22,
	}
}

func (p Pins) outputs() []int {
	return append([]int{p.Battery, p.VBUS, p.Reset, p.Flash, p.ChannelA, p.ChannelB}, p.Enable...)
}

func (p Pins) inputs() []int {
	return []int{p.Button, p.Fault}
}

// line is the part of a requested GPIO line the switchboard uses.
type line interface {
	SetValue(value int) error
	Value() (int, error)
	Close() error
}

// lineRequester claims a single line, as an output driven low or as an
// input.
type lineRequester func(offset int, output bool) (line, error)

func chipRequester(chip string) lineRequester {
	return func(offset int, output bool) (line, error) {
		opt := gpiocdev.LineReqOption(gpiocdev.AsInput)
		if output {
			opt = gpiocdev.AsOutput(0)
		}
		l, err := gpiocdev.RequestLine(chip, offset, opt, gpiocdev.WithConsumer(Consumer))
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// GPIO drives a Switchboard through the GPIO character device.
type GPIO struct {
	pins  Pins
	lines map[int]line
	log   *logrus.Entry
}

// OpenGPIO requests every pin on chip (a name such as "gpiochip0" or a
// /dev path) and configures its direction. Close releases the lines.
func OpenGPIO(chip string, pins Pins, log *logrus.Entry) (*GPIO, error) {
	return openGPIO(chipRequester(chip), pins, log)
}

func openGPIO(request lineRequester, pins Pins, log *logrus.Entry) (*GPIO, error) {
	g := &GPIO{pins: pins, lines: make(map[int]line), log: log}
	claim := func(offsets []int, output bool) error {
		for _, offset := range offsets {
			if _, ok := g.lines[offset]; ok {
				return fmt.Errorf("gpio %d assigned twice", offset)
			}
			l, err := request(offset, output)
			if err != nil {
				return fmt.Errorf("request gpio %d: %w", offset, err)
			}
			g.lines[offset] = l
		}
		return nil
	}
	if err := claim(pins.outputs(), true); err != nil {
		g.Close()
		return nil, err
	}
	if err := claim(pins.inputs(), false); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Close releases every requested line.
func (g *GPIO) Close() error {
	var errs []error
	for offset, l := range g.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release gpio %d: %w", offset, err))
		}
	}
	g.lines = make(map[int]line)
	return errors.Join(errs...)
}

func (g *GPIO) write(pin int, high bool) {
	l, ok := g.lines[pin]
	if !ok {
		g.log.WithField("pin", pin).Warn("gpio not requested")
		return
	}
	v := 0
	if high {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		g.log.WithError(err).WithField("pin", pin).Warn("gpio write failed")
	}
}

func (g *GPIO) read(pin int) bool {
	l, ok := g.lines[pin]
	if !ok {
		g.log.WithField("pin", pin).Warn("gpio not requested")
		return false
	}
	v, err := l.Value()
	if err != nil {
		g.log.WithError(err).WithField("pin", pin).Warn("gpio read failed")
		return false
	}
	return v == 1
}

func (g *GPIO) PowerOff() {
	g.write(g.pins.VBUS, false)
	g.write(g.pins.Battery, false)
}

func (g *GPIO) PowerVBUS() {
	g.write(g.pins.Battery, false)
	g.write(g.pins.VBUS, true)
}

func (g *GPIO) PowerBattery() {
	g.write(g.pins.VBUS, false)
	g.write(g.pins.Battery, true)
}

func (g *GPIO) Enable(line int) {
	if line < 0 || line >= len(g.pins.Enable) {
		g.log.WithField("line", line).Warn("enable line out of range")
		return
	}
	g.write(g.pins.Enable[line], true)
}

func (g *GPIO) Disable(line int) {
	if line < 0 || line >= len(g.pins.Enable) {
		return
	}
	g.write(g.pins.Enable[line], false)
}

func (g *GPIO) DisableAll() {
	for _, pin := range g.pins.Enable {
		g.write(pin, false)
	}
}

func (g *GPIO) ResetMode(on bool) { g.write(g.pins.Reset, on) }
func (g *GPIO) FlashMode(on bool) { g.write(g.pins.Flash, on) }

func (g *GPIO) EnableChannelA() {
	g.write(g.pins.ChannelB, false)
	g.write(g.pins.ChannelA, true)
}

func (g *GPIO) EnableChannelB() {
	g.write(g.pins.ChannelA, false)
	g.write(g.pins.ChannelB, true)
}

func (g *GPIO) DisableChannels() {
	g.write(g.pins.ChannelA, false)
	g.write(g.pins.ChannelB, false)
}

func (g *GPIO) IsPowerFault() bool { return g.read(g.pins.Fault) }

// IsButtonPressed reads the active-low start button.
func (g *GPIO) IsButtonPressed() bool { return !g.read(g.pins.Button) }
