// Package station runs test batches across the slots of a test panel.
package station

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
	"github.com/buckleypaul/paneltester/internal/logging"
	"github.com/buckleypaul/paneltester/internal/report"
	"github.com/buckleypaul/paneltester/internal/usb"
)

var (
	// ErrRunInProgress is returned when a run is requested while busy.
	ErrRunInProgress = errors.New("run in progress")
	// ErrStructuralFault means more serial ports appeared than slots were
	// enabled, so ports cannot be attributed to slots.
	ErrStructuralFault = errors.New("more serial ports than expected")
)

// Phase is the part of a run currently executing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePower
	PhaseEnumerate
	PhaseIdentify
	PhaseFlash
	PhaseFunctional
	PhaseCommit
)

func (p Phase) String() string {
	return [...]string{"idle", "power", "enumerate", "identify", "flash", "functional", "commit"}[p]
}

// request is a run over slots, or over every slot when slots is empty.
type request struct {
	slots []int
}

// Orchestrator drives runs over every slot of the panel.
type Orchestrator struct {
	cfg     config.Config
	timing  config.Timing
	layout  Layout
	count   int
	usbMap  map[string]int
	board   hw.Switchboard
	power   hw.VoltageSource
	recent  recentSet
	ports   PortManager
	tools   Tools
	sinks   []report.Sink
	display Display
	log     *logrus.Entry

	mu      sync.Mutex
	devices []*device.DeviceTest
	only    map[int]bool
	ttys    map[string]int
	channel hw.Channel
	phase   Phase
	running bool
	pending *request
	started time.Time
}

type recentSet interface {
	Contains(id string) bool
	Add(id string) error
}

// New builds an Orchestrator from opts.
func New(opts Options) (*Orchestrator, error) {
	layout, err := NewLayout(opts.Topology)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	if opts.State.Board == nil || opts.State.Power == nil {
		return nil, errors.New("station: switchboard and voltage source are required")
	}
	count := layout.Len()
	if opts.Config.DeviceCount > 0 && opts.Config.DeviceCount < count {
		count = opts.Config.DeviceCount
	}

	o := &Orchestrator{
		cfg:     opts.Config,
		timing:  opts.Config.Timing,
		layout:  layout,
		count:   count,
		usbMap:  opts.Topology.USB,
		board:   opts.State.Board,
		power:   opts.State.Power,
		ports:   opts.Ports,
		tools:   opts.Tools,
		sinks:   opts.Sinks,
		display: opts.Display,
		log:     opts.Log,
		ttys:    make(map[string]int),
	}
	if opts.State.Recent != nil {
		o.recent = opts.State.Recent
	}
	if o.display == nil {
		o.display = nopDisplay{}
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.tools == nil {
		o.tools = NewCommandTools(opts.Config)
	}
	for i := 0; i < count; i++ {
		o.devices = append(o.devices, device.New(i))
	}
	return o, nil
}

// Count is the number of slots under test.
func (o *Orchestrator) Count() int {
	return o.count
}

// StartRun requests a run over slots, or over every slot when none are
// given. It returns false when a run is already in progress or pending.
func (o *Orchestrator) StartRun(slots ...int) bool {
	return o.enqueue(request{slots: slots}) == nil
}

func (o *Orchestrator) enqueue(req request) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running || o.pending != nil {
		return ErrRunInProgress
	}
	o.pending = &req
	return nil
}

// Running reports whether a run is executing.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Run checks the power supply and then serves run requests until ctx is
// done. A failing self-check is returned before any run starts.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.selfCheck(); err != nil {
		return fmt.Errorf("power self-check: %w", err)
	}
	o.log.Info("Tester ready")
	for {
		if err := o.cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// cycle waits for one request, runs it and queues the automatic retest.
func (o *Orchestrator) cycle(ctx context.Context) error {
	req, err := o.waitStart(ctx)
	if err != nil {
		return err
	}

	o.execute(ctx, req)

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()

	if len(req.slots) > 0 {
		return nil
	}
	if failed := o.FailedSlots(); len(failed) > 0 {
		o.log.Infof("Repeating test for %d devices...", len(failed))
		if err := o.enqueue(request{slots: failed}); err != nil {
			o.log.WithError(err).Warn("retest not queued")
		}
	}
	return nil
}

func (o *Orchestrator) waitStart(ctx context.Context) (request, error) {
	o.idle()
	logging.Status(o.log).Info("Ready to start the test")

	poll := o.timing.ButtonPoll.Duration()
	if poll <= 0 {
		poll = time.Millisecond
	}
	for {
		o.mu.Lock()
		if req := o.pending; req != nil {
			o.pending = nil
			o.running = true
			o.mu.Unlock()
			return *req, nil
		}
		o.mu.Unlock()

		if o.board.IsButtonPressed() {
			o.mu.Lock()
			if o.pending == nil {
				o.pending = &request{}
			}
			o.mu.Unlock()
			continue
		}

		select {
		case <-ctx.Done():
			return request{}, ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (o *Orchestrator) idle() {
	o.setChannel(hw.ChannelNone)
	o.board.DisableAll()
	o.board.PowerOff()
}

// execute performs one complete run.
func (o *Orchestrator) execute(ctx context.Context, req request) {
	o.begin(req)

	o.powerTest(hw.RailVBUS)
	o.powerTest(hw.RailBattery)

	for _, ch := range []hw.Channel{hw.ChannelA, hw.ChannelB} {
		o.selectChannel(ch)
		found, err := o.enumerate(ch)
		if err != nil {
			o.log.WithError(err).WithField("channel", ch).Error("Channel aborted")
			continue
		}
		if found == 0 {
			continue
		}
		o.readIdentities(ctx, ch)
		o.flash(ctx, ch)
		o.functional(ctx, ch)
	}

	o.setPhase(PhaseCommit)
	o.collect()
	o.commit(ctx)
	o.report()
	o.end()
}

// begin resets the records of the requested slots.
func (o *Orchestrator) begin(req request) {
	o.mu.Lock()
	o.started = time.Now()
	o.only = nil
	if len(req.slots) > 0 {
		o.only = make(map[int]bool)
		for _, s := range req.slots {
			if s >= 0 && s < o.count {
				o.only[s] = true
				o.devices[s] = device.New(s)
			}
		}
	} else {
		for i := range o.devices {
			o.devices[i] = device.New(i)
		}
	}
	only := o.only
	o.mu.Unlock()

	if only == nil {
		o.display.Clear()
		logging.Status(o.log).Info("Testing all devices")
	}
	for _, d := range o.snapshot() {
		if only == nil || only[d.Slot] {
			o.display.SetStatus(d.Slot, device.Testing)
			o.display.SetID(d.Slot, "")
			if only != nil {
				logging.Status(o.slotLog(d)).Info("Retesting device")
			}
		}
	}
}

func (o *Orchestrator) snapshot() []*device.DeviceTest {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*device.DeviceTest, len(o.devices))
	copy(out, o.devices)
	return out
}

func (o *Orchestrator) skipped(slot int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.only != nil && !o.only[slot]
}

// active returns the slots on ch that are part of this run and not failed.
func (o *Orchestrator) active(ch hw.Channel) []*device.DeviceTest {
	var out []*device.DeviceTest
	for _, d := range o.snapshot() {
		if o.layout.ChannelOf(d.Slot) != ch || o.skipped(d.Slot) || d.Failed() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) setChannel(ch hw.Channel) {
	o.mu.Lock()
	o.channel = ch
	o.mu.Unlock()
	hw.SelectChannel(o.board, ch)
}

func (o *Orchestrator) slotLog(d *device.DeviceTest) *logrus.Entry {
	return o.log.WithField("slot", d.Slot+1)
}

func (o *Orchestrator) line(d *device.DeviceTest) int {
	raw, _ := o.layout.PhysicalSlot(d.Slot, o.layout.ChannelOf(d.Slot))
	return raw
}

// addResult records r on d, logs it and refreshes the display.
func (o *Orchestrator) addResult(d *device.DeviceTest, r device.TestResult) {
	d.AddResult(r)
	log := o.slotLog(d)
	if r.Status == device.Error {
		log.WithField("log", r.Log).Error(r.String())
	} else {
		log.Info(r.String())
	}
	o.display.SetStatus(d.Slot, d.Status())
}

// SetUSB applies a resolver event: tty is attached at addr, or detached
// when tty is empty.
func (o *Orchestrator) SetUSB(addr, tty string) {
	raw, ok := o.usbMap[addr]
	if !ok {
		o.log.WithField("address", addr).Debug("usb address not on the panel")
		return
	}

	o.mu.Lock()
	slot, ok := o.layout.LogicalSlot(raw, o.channel)
	if !ok || slot >= o.count {
		o.mu.Unlock()
		return
	}
	var lost *device.DeviceTest
	if tty == "" {
		for name, s := range o.ttys {
			if s != slot {
				continue
			}
			delete(o.ttys, name)
			d := o.devices[slot]
			if (o.phase == PhaseFlash || o.phase == PhaseFunctional) && d.PortPath != "" && filepath.Base(d.PortPath) == name {
				lost = d
			}
		}
	} else {
		o.ttys[tty] = slot
	}
	o.mu.Unlock()

	if tty == "" {
		o.display.SetUSB(slot, "")
	} else {
		o.display.SetUSB(slot, "/dev/"+tty)
	}
	if lost != nil {
		o.slotLog(lost).Warn("Serial disconnected")
		lost.OnDisconnect()
	}
}

// Follow applies every event from a usb.Resolver subscription until ctx is
// done or the subscription closes.
func (o *Orchestrator) Follow(ctx context.Context, events <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if ev, ok := msg.(usb.Event); ok {
				o.SetUSB(ev.Address, ev.Device)
			}
		}
	}
}

func (o *Orchestrator) slotForTTY(tty string) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	slot, ok := o.ttys[tty]
	return slot, ok
}

// FailedSlots returns the slots whose last run failed.
func (o *Orchestrator) FailedSlots() []int {
	var out []int
	for _, d := range o.snapshot() {
		if d.Failed() {
			out = append(out, d.Slot)
		}
	}
	sort.Ints(out)
	return out
}

// Devices returns the current per-slot records.
func (o *Orchestrator) Devices() []*device.DeviceTest {
	return o.snapshot()
}

// Transpose renumbers every slot for a panel loaded upside down. It does
// nothing while a run is in progress.
func (o *Orchestrator) Transpose() bool {
	o.mu.Lock()
	if o.running || o.pending != nil {
		o.mu.Unlock()
		return false
	}
	moved := make([]*device.DeviceTest, len(o.devices))
	for _, d := range o.devices {
		n := transpose(d.Slot, o.count)
		if n < 0 || n >= len(moved) {
			n = d.Slot
		}
		d.Slot = n
		moved[n] = d
	}
	for i, d := range moved {
		if d == nil {
			moved[i] = device.New(i)
		}
	}
	o.devices = moved
	o.mu.Unlock()

	for _, d := range moved {
		o.display.SetStatus(d.Slot, d.Status())
		o.display.SetID(d.Slot, d.Identity)
	}
	return true
}
