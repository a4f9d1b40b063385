package station

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/paneltester/internal/action"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
)

// railCheck binds a voltage bound to the rail reading it applies to.
type railCheck struct {
	action.Voltage
	read func(hw.Rails) float64
}

var railChecks = map[hw.Rail][]railCheck{
	hw.RailVBUS: {
		{action.NewVoltage("VBUS reference", 4.6, 5.5), func(r hw.Rails) float64 { return r.VBUS }},
		{action.NewVoltage("VCC voltage from VBUS power", 3.3, 5.5), func(r hw.Rails) float64 { return r.VCC }},
		{action.NewVoltage("3v3 voltage from VBUS power", 2.9, 3.2), func(r hw.Rails) float64 { return r.V3V3 }},
		{action.NewVoltage("Bat voltage from VBUS power", 3.2, 4.3), func(r hw.Rails) float64 { return r.Battery }},
	},
	hw.RailBattery: {
		{action.NewVoltage("Bat reference", 4.6, 5.5), func(r hw.Rails) float64 { return r.Battery }},
		{action.NewVoltage("VBUS voltage from Bat power", -0.5, 0.7), func(r hw.Rails) float64 { return r.VBUS }},
		{action.NewVoltage("VCC voltage from Bat power", 3.3, 5.5), func(r hw.Rails) float64 { return r.VCC }},
		{action.NewVoltage("3v3 voltage from Bat power", 2.9, 3.5), func(r hw.Rails) float64 { return r.V3V3 }},
	},
}

// selfCheck samples the rails with everything switched off.
func (o *Orchestrator) selfCheck() error {
	o.idle()
	rails, err := hw.Sample(o.power)
	if err != nil {
		return err
	}
	o.log.WithFields(logrus.Fields{
		"vbus":    rails.VBUS,
		"battery": rails.Battery,
		"3v3":     rails.V3V3,
		"vcc":     rails.VCC,
	}).Info("Power self-check")
	if o.board.IsPowerFault() {
		return errors.New("switchboard reports a power fault")
	}
	return nil
}

// powerTest powers each live slot alone from rail and checks its rails.
func (o *Orchestrator) powerTest(rail hw.Rail) {
	o.setPhase(PhasePower)
	o.log.WithField("rail", rail).Info("Power test")

	hw.SelectRail(o.board, rail, o.timing.Settle.Duration())
	time.Sleep(o.timing.Settle.Duration())

	for _, ch := range []hw.Channel{hw.ChannelA, hw.ChannelB} {
		targets := o.active(ch)
		if len(targets) == 0 {
			continue
		}
		o.selectChannel(ch)
		for _, d := range targets {
			o.board.Enable(o.line(d))
			time.Sleep(o.timing.Settle.Duration())
			o.checkRails(d, rail)
			o.board.DisableAll()
		}
	}
}

func (o *Orchestrator) checkRails(d *device.DeviceTest, rail hw.Rail) {
	start := time.Now()
	rails, err := hw.Sample(o.power)
	if err != nil {
		o.addResult(d, device.NewResult("Read voltages", device.Error, err.Error()).Since(start))
		return
	}
	for _, c := range railChecks[rail] {
		o.addResult(d, c.Evaluate(c.read(rails)).Since(start))
	}
}
