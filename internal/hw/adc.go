package hw

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ADCChannels maps rails to IIO voltage channel indices and divider gains.
type ADCChannels struct {
	V3V3    int     `json:"v3v3"`
	VCC     int     `json:"vcc"`
	VBUS    int     `json:"vbus"`
	Battery int     `json:"battery"`
	Gain    float64 `json:"gain,omitempty"`
}

func DefaultADCChannels() ADCChannels {
	return ADCChannels{V3V3: 0, VCC: 1, VBUS: 2, Battery: 3, Gain: 1}
}

// IIO reads rail voltages from a Linux industrial I/O device such as an
// ADS1115 bound to its kernel driver.
type IIO struct {
	dir string
	ch  ADCChannels
}

// OpenIIO checks that dir (e.g. /sys/bus/iio/devices/iio:device0) exposes
// every configured channel.
func OpenIIO(dir string, ch ADCChannels) (*IIO, error) {
	if ch.Gain == 0 {
		ch.Gain = 1
	}
	for _, n := range []int{ch.V3V3, ch.VCC, ch.VBUS, ch.Battery} {
		raw := filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", n))
		if _, err := os.Stat(raw); err != nil {
			return nil, fmt.Errorf("adc channel %d: %w", n, err)
		}
	}
	return &IIO{dir: dir, ch: ch}, nil
}

func (a *IIO) readFloat(name string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}

// voltage returns raw * scale in volts; IIO scales are millivolts per LSB.
func (a *IIO) voltage(n int) (float64, error) {
	raw, err := a.readFloat(fmt.Sprintf("in_voltage%d_raw", n))
	if err != nil {
		return 0, err
	}
	scale, err := a.readFloat(fmt.Sprintf("in_voltage%d_scale", n))
	if os.IsNotExist(err) {
		scale, err = a.readFloat("in_voltage_scale")
	}
	if err != nil {
		return 0, err
	}
	return raw * scale / 1000 * a.ch.Gain, nil
}

func (a *IIO) VBUS() (float64, error)    { return a.voltage(a.ch.VBUS) }
func (a *IIO) Battery() (float64, error) { return a.voltage(a.ch.Battery) }
func (a *IIO) V3V3() (float64, error)    { return a.voltage(a.ch.V3V3) }
func (a *IIO) VCC() (float64, error)     { return a.voltage(a.ch.VCC) }
