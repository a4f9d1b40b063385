package station

import (
	"context"
	"sync"

	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
)

// flash writes the firmware image to every board on ch that needs it, one
// worker per board, and waits for all of them.
func (o *Orchestrator) flash(ctx context.Context, ch hw.Channel) {
	var targets []*device.DeviceTest
	for _, d := range o.active(ch) {
		if d.PortPath != "" && d.FlashingRequired {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return
	}

	if o.cfg.FirmwareFile == "" {
		for _, d := range targets {
			d.SetStatus(device.NotUpdated)
			o.display.SetStatus(d.Slot, d.Status())
			o.slotLog(d).Warn("No firmware image configured, board not updated")
		}
		return
	}

	o.setPhase(PhaseFlash)
	hw.FlashPulse(o.board, o.timing.Switching())
	o.log.WithField("channel", ch).Infof("Flashing %d devices", len(targets))

	var wg sync.WaitGroup
	for _, d := range targets {
		wg.Add(1)
		go func(d *device.DeviceTest) {
			defer wg.Done()
			r := o.tools.Flash(ctx, d.PortPath, d.Gone())
			if d.Disconnected() && r.Status != device.Error {
				r = device.NewResult(r.Name, device.Error, "Serial disconnected").Since(r.StartedAt)
			}
			o.addResult(d, r)
		}(d)
	}
	wg.Wait()
}
