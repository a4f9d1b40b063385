package station

import (
	"context"
	"time"

	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/logging"
)

const sinkTimeout = time.Minute

// collect closes the run for every slot in it. Slots that never failed
// pass unless an earlier phase gave them a final status.
func (o *Orchestrator) collect() {
	for _, d := range o.snapshot() {
		if o.skipped(d.Slot) {
			continue
		}
		d.Finish()
		if d.Status() == device.Testing {
			d.SetStatus(device.Pass)
		}
		if d.PortPath != "" {
			o.ports.Close(d.PortPath)
		}
		d.Unbind()
		o.display.SetStatus(d.Slot, d.Status())
	}
}

// commit sends every identified board to the sinks, unless it was
// committed recently.
func (o *Orchestrator) commit(ctx context.Context) {
	for _, d := range o.snapshot() {
		if o.skipped(d.Slot) || !d.Commit || d.Identity == "" {
			continue
		}
		log := o.slotLog(d).WithField("id", d.Identity)

		if o.recent != nil && o.recent.Contains(d.Identity) {
			d.SetStatus(device.Retested)
			o.display.SetStatus(d.Slot, d.Status())
			log.Info("Already tested recently, not committed")
			continue
		}

		for _, sink := range o.sinks {
			sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
			resp, err := sink.SendTestData(sctx, d)
			cancel()
			if err != nil {
				log.WithError(err).Error("Sending test data failed")
				continue
			}
			log.WithField("response", resp).Info("Test data sent")
		}

		if d.Status() == device.Pass && o.recent != nil {
			if err := o.recent.Add(d.Identity); err != nil {
				log.WithError(err).Warn("Recording tested board failed")
			}
		}
	}
}

// report logs the outcome of every slot in the run.
func (o *Orchestrator) report() {
	for _, d := range o.snapshot() {
		if o.skipped(d.Slot) {
			continue
		}
		log := o.slotLog(d)
		for _, r := range d.FailedResults() {
			log.WithField("log", r.Log).Errorf("%s: %s", r.Name, r.EndValue)
		}
		entry := logging.Status(log)
		if d.Identity != "" {
			entry = entry.WithField("id", d.Identity)
		}
		if d.Failed() {
			failed := d.FailedResults()
			if len(failed) > 0 {
				entry.Errorf("[%d] %s: %s", d.Slot+1, failed[0].Name, failed[0].EndValue)
				continue
			}
			entry.Errorf("[%d] %s", d.Slot+1, d.Status())
			continue
		}
		entry.Infof("[%d] %s", d.Slot+1, d.Status())
	}
}

// end switches the panel off and forgets the retest subset.
func (o *Orchestrator) end() {
	o.idle()
	o.ports.CloseAll()

	o.mu.Lock()
	o.only = nil
	o.phase = PhaseIdle
	took := time.Since(o.started)
	o.mu.Unlock()

	logging.Status(o.log).Infof("Done in %ds", int(took.Seconds()))
}
