package station

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/buckleypaul/paneltester/internal/action"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
	"github.com/buckleypaul/paneltester/internal/serial"
)

var findPort = action.NewSuccess("Find serial port")

// selectChannel releases every port of the previous channel and routes ch
// to the hubs.
func (o *Orchestrator) selectChannel(ch hw.Channel) {
	o.ports.CloseAll()

	o.mu.Lock()
	o.ttys = make(map[string]int)
	o.mu.Unlock()
	for slot := 0; slot < o.count; slot++ {
		o.display.SetUSB(slot, "")
	}

	o.setChannel(ch)
	time.Sleep(o.timing.Settle.Duration())
}

// enumerate boots every live slot on ch from VBUS and binds the serial
// ports that appear to their slots. It returns the number of bound slots.
func (o *Orchestrator) enumerate(ch hw.Channel) (int, error) {
	targets := o.active(ch)
	if len(targets) == 0 {
		return 0, nil
	}
	o.setPhase(PhaseEnumerate)
	log := o.log.WithField("channel", ch)

	o.board.PowerOff()
	o.board.DisableAll()
	time.Sleep(o.timing.PowerOff.Duration())
	o.board.PowerVBUS()
	for _, d := range targets {
		o.board.Enable(o.line(d))
	}
	time.Sleep(o.timing.SerialBoot.Duration())
	if v, err := o.power.VBUS(); err == nil {
		log.Infof("VBUS %.2fV", v)
	}

	ports := o.waitPorts(len(targets))
	if len(ports) > len(targets) {
		names := make([]string, len(ports))
		for i, p := range ports {
			names[i] = p.Name
		}
		msg := fmt.Sprintf("expected %d ports, found %d: %s", len(targets), len(ports), strings.Join(names, ", "))
		for _, d := range targets {
			o.addResult(d, device.NewResult(findPort.Name, device.Error, msg))
		}
		return 0, fmt.Errorf("%w: %s", ErrStructuralFault, msg)
	}

	bound := make(map[int]string)
	for _, p := range ports {
		slot, ok := o.slotForTTY(filepath.Base(p.Name))
		if !ok {
			log.WithField("port", p.Name).Debug("port not on the panel")
			continue
		}
		bound[slot] = p.Name
		o.ports.MarkKnown(p.Name)
	}

	found := 0
	for _, d := range targets {
		path, ok := bound[d.Slot]
		if ok {
			o.mu.Lock()
			d.PortPath = path
			o.mu.Unlock()
			found++
			o.addResult(d, findPort.Evaluate(true).WithLog(path))
			continue
		}
		o.addResult(d, findPort.Evaluate(false).WithLog(fmt.Sprintf("no port on line %d", o.line(d))))
	}
	log.Infof("Found %d of %d serial ports", found, len(targets))
	return found, nil
}

// waitPorts polls for new board ports until want have appeared or the
// discovery deadline passes, then lists them once more after settling.
func (o *Orchestrator) waitPorts(want int) []serial.PortInfo {
	poll := o.timing.DiscoveryPoll.Duration()
	if poll <= 0 {
		poll = time.Millisecond
	}
	deadline := time.Now().Add(o.timing.Discovery.Duration())
	for {
		ports, err := o.ports.FindNewPorts()
		if err != nil {
			o.log.WithError(err).Warn("list serial ports")
		}
		if len(ports) >= want || !time.Now().Before(deadline) {
			break
		}
		time.Sleep(poll)
	}

	time.Sleep(o.timing.DiscoverySettle.Duration())
	ports, err := o.ports.FindNewPorts()
	if err != nil {
		o.log.WithError(err).Warn("list serial ports")
	}
	return ports
}
