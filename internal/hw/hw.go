// Package hw abstracts the tester switchboard and its voltage ADC.
package hw

import (
	"fmt"
	"time"
)

// Rail is the supply feeding the enabled slots.
type Rail int

const (
	RailOff Rail = iota
	RailVBUS
	RailBattery
)

func (r Rail) String() string {
	switch r {
	case RailVBUS:
		return "VBUS"
	case RailBattery:
		return "battery"
	default:
		return "off"
	}
}

// Channel selects which half of the panel is routed to the USB hubs.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelA
	ChannelB
)

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	default:
		return "none"
	}
}

// ParseChannel accepts "A" or "B" in either case.
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "A", "a":
		return ChannelA, nil
	case "B", "b":
		return ChannelB, nil
	}
	return ChannelNone, fmt.Errorf("unknown channel %q", s)
}

// Switchboard drives the power and control lines of the panel. Commands are
// fire-and-forget.
type Switchboard interface {
	PowerOff()
	PowerVBUS()
	PowerBattery()

	Enable(line int)
	Disable(line int)
	DisableAll()

	ResetMode(on bool)
	FlashMode(on bool)

	EnableChannelA()
	EnableChannelB()
	DisableChannels()

	IsPowerFault() bool
	IsButtonPressed() bool
}

// VoltageSource reads the four monitored rails of the enabled slot.
type VoltageSource interface {
	VBUS() (float64, error)
	Battery() (float64, error)
	V3V3() (float64, error)
	VCC() (float64, error)
}

// Rails is one sample of every monitored rail.
type Rails struct {
	VBUS    float64
	Battery float64
	V3V3    float64
	VCC     float64
}

// Sample reads all rails from src.
func Sample(src VoltageSource) (Rails, error) {
	var (
		r   Rails
		err error
	)
	if r.VBUS, err = src.VBUS(); err != nil {
		return r, fmt.Errorf("read VBUS: %w", err)
	}
	if r.Battery, err = src.Battery(); err != nil {
		return r, fmt.Errorf("read battery: %w", err)
	}
	if r.V3V3, err = src.V3V3(); err != nil {
		return r, fmt.Errorf("read 3v3: %w", err)
	}
	if r.VCC, err = src.VCC(); err != nil {
		return r, fmt.Errorf("read VCC: %w", err)
	}
	return r, nil
}

// Timing holds the settle delays of the switching sequences.
type Timing struct {
	Settle    time.Duration // after toggling power or flash mode
	FlashPins time.Duration // between reset transitions
	Reset     time.Duration // after leaving flash mode
	Boot      time.Duration // after releasing reset for a normal boot
}

// SelectRail disables every slot before switching the rail.
func SelectRail(sb Switchboard, rail Rail, settle time.Duration) {
	sb.DisableAll()
	sb.PowerOff()
	time.Sleep(settle)
	switch rail {
	case RailVBUS:
		sb.PowerVBUS()
	case RailBattery:
		sb.PowerBattery()
	}
}

// SelectChannel routes ch to the USB hubs.
func SelectChannel(sb Switchboard, ch Channel) {
	switch ch {
	case ChannelA:
		sb.EnableChannelA()
	case ChannelB:
		sb.EnableChannelB()
	default:
		sb.DisableChannels()
	}
}

// FlashPulse puts every enabled board into its bootloader.
func FlashPulse(sb Switchboard, t Timing) {
	sb.FlashMode(true)
	time.Sleep(t.Settle)
	sb.ResetMode(true)
	time.Sleep(t.FlashPins)
	sb.ResetMode(false)
	time.Sleep(t.FlashPins)
	sb.FlashMode(false)
	time.Sleep(t.Reset)
}

// Reboot restarts every enabled board into its firmware.
func Reboot(sb Switchboard, t Timing) {
	sb.ResetMode(true)
	time.Sleep(t.FlashPins)
	sb.ResetMode(false)
	time.Sleep(t.Boot)
}

// PowerCycle holds line in flash mode while toggling its supply.
func PowerCycle(sb Switchboard, line int, t Timing) {
	sb.FlashMode(true)
	time.Sleep(t.Settle)
	sb.Disable(line)
	time.Sleep(t.FlashPins)
	sb.Enable(line)
	time.Sleep(t.FlashPins)
	sb.FlashMode(false)
	time.Sleep(t.Reset)
}
