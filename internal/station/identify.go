package station

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
)

var macPattern = regexp.MustCompile(`(?i)MAC:\s*([0-9a-f]{2}(?::[0-9a-f]{2}){5})`)

// readIdentities puts the boards on ch into their bootloader and reads
// each one's MAC address.
func (o *Orchestrator) readIdentities(ctx context.Context, ch hw.Channel) {
	var targets []*device.DeviceTest
	for _, d := range o.active(ch) {
		if d.PortPath != "" {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return
	}
	o.setPhase(PhaseIdentify)
	hw.FlashPulse(o.board, o.timing.Switching())

	for _, d := range targets {
		o.readIdentity(ctx, d)
	}
}

func (o *Orchestrator) readIdentity(ctx context.Context, d *device.DeviceTest) {
	log := o.slotLog(d)
	retries := o.cfg.Retries
	if retries < 1 {
		retries = 1
	}

	var last device.TestResult
	op := func() error {
		last = o.tools.ReadIdentity(ctx, d.PortPath)
		if last.Status == device.Error {
			return errors.New(last.EndValue)
		}
		if !macPattern.MatchString(last.EndValue) {
			last.Status = device.Error
			return errors.New("no MAC address in " + last.EndValue)
		}
		return nil
	}
	notify := func(err error, _ time.Duration) {
		log.WithError(err).Warn("Identity read failed, power cycling")
		hw.PowerCycle(o.board, o.line(d), o.timing.Switching())
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(o.timing.Settle.Duration()), uint64(retries-1))
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if last.Name == "" {
			last = device.NewResult(identityMatcher.Name, device.Error, err.Error())
		}
		o.addResult(d, last)
		return
	}

	m := macPattern.FindStringSubmatch(last.EndValue)
	d.Identity = strings.ToLower(m[1])
	d.Commit = true
	o.display.SetID(d.Slot, d.Identity)
	if o.recent != nil && o.recent.Contains(d.Identity) {
		d.FlashingRequired = false
		log.WithField("id", d.Identity).Info("Recently tested, skipping flash")
	}
	o.addResult(d, last)
}
