package serial

import (
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

var enumeratorGetDetailedPortsList = enumerator.GetDetailedPortsList

// ListPorts returns available serial ports.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumeratorGetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return result, nil
}

var bridgeChips = []string{"ch340", "cp21", "ch910", "usb", "seri"}

// IsBoardPort reports whether p looks like a USB-serial bridge of a board
// under test.
func IsBoardPort(p PortInfo) bool {
	if !strings.HasPrefix(p.Name, "/dev/ttyUSB") && !strings.HasPrefix(p.Name, "COM") {
		return false
	}
	if p.IsUSB {
		return true
	}
	desc := strings.ToLower(p.Product)
	for _, chip := range bridgeChips {
		if strings.Contains(desc, chip) {
			return true
		}
	}
	return false
}
