package station

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
	"github.com/buckleypaul/paneltester/internal/report"
	"github.com/buckleypaul/paneltester/internal/serial"
	"github.com/buckleypaul/paneltester/internal/store"
)

// fakePorts lists the ttys attached through the simulator plus any extra
// ports, and answers the firmware self-test on opened ports.
type fakePorts struct {
	mu       sync.Mutex
	attached map[string]bool
	known    map[string]bool
	extra    []string
	macs     map[string]string
	opened   []string
	// command, when set, receives every command written to a board and
	// replaces the firmware's reply.
	command func(cmd string)
}

func newFakePorts() *fakePorts {
	return &fakePorts{
		attached: make(map[string]bool),
		known:    make(map[string]bool),
		macs:     make(map[string]string),
	}
}

func (p *fakePorts) attach(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached[name] = true
}

func (p *fakePorts) FindNewPorts() ([]serial.PortInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for n := range p.attached {
		if !p.known[n] {
			names = append(names, n)
		}
	}
	for _, n := range p.extra {
		if !p.known[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	out := make([]serial.PortInfo, len(names))
	for i, n := range names {
		out[i] = serial.PortInfo{Name: n, IsUSB: true}
	}
	return out, nil
}

func (p *fakePorts) MarkKnown(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[name] = true
}

func (p *fakePorts) Open(name string, l serial.Listener) (io.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, name)
	return &fakeBoard{listener: l, mac: p.macs[name], command: p.command}, nil
}

func (p *fakePorts) Close(string) {}

func (p *fakePorts) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known = make(map[string]bool)
	p.attached = make(map[string]bool)
}

func (p *fakePorts) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.opened)
}

// fakeBoard plays the firmware side of the serial protocol.
type fakeBoard struct {
	listener serial.Listener
	mac      string
	command  func(cmd string)
}

func (b *fakeBoard) Write(data []byte) (int, error) {
	cmd := strings.TrimSpace(string(data))
	if b.command != nil {
		b.command(cmd)
		return len(data), nil
	}
	if cmd == "GET TEST" {
		b.listener.OnLine(fmt.Sprintf("[TEST] Board: SLIMEVR, build: 12, mac: %s, wifi state: 3", strings.ToUpper(b.mac)))
		b.listener.OnLine("[INFO ] [SensorManager] Sensor[0] sent some data, looks working.")
	}
	return len(data), nil
}

type fakeTools struct {
	mu       sync.Mutex
	macs     map[string]string
	identity []string
	flashed  []string
	flash    func(ctx context.Context, port string, abort <-chan struct{}) device.TestResult
}

func (f *fakeTools) ReadIdentity(_ context.Context, port string) device.TestResult {
	f.mu.Lock()
	f.identity = append(f.identity, port)
	mac := f.macs[port]
	f.mu.Unlock()
	return device.NewResult("Read MAC address", device.Pass, "MAC: "+mac)
}

func (f *fakeTools) Flash(ctx context.Context, port string, abort <-chan struct{}) device.TestResult {
	f.mu.Lock()
	f.flashed = append(f.flashed, port)
	hook := f.flash
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, port, abort)
	}
	return device.NewResult("Flash firmware", device.Pass, "Hash of data verified.")
}

func (f *fakeTools) calls() (identity, flashed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.identity), len(f.flashed)
}

type fakeSink struct {
	mu  sync.Mutex
	ids []string
}

func (s *fakeSink) SendTestData(_ context.Context, d *device.DeviceTest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, d.Identity)
	return "ok", nil
}

func (s *fakeSink) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

type fakeDisplay struct {
	mu     sync.Mutex
	status map[int]device.Status
	ids    map[int]string
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{status: make(map[int]device.Status), ids: make(map[int]string)}
}

func (d *fakeDisplay) SetStatus(slot int, s device.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status[slot] = s
}

func (d *fakeDisplay) SetID(slot int, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[slot] = id
}

func (d *fakeDisplay) SetUSB(int, string) {}

func (d *fakeDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = make(map[int]device.Status)
	d.ids = make(map[int]string)
}

func (d *fakeDisplay) get(slot int) device.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status[slot]
}

type testStation struct {
	o          *Orchestrator
	sim        *hw.Simulator
	ports      *fakePorts
	tools      *fakeTools
	sink       *fakeSink
	display    *fakeDisplay
	recent     *store.Recent
	recentPath string
}

// newTestStation builds an orchestrator over slots, where slot i sits on
// the given channel and enable line and line n hangs off hub port 1-1.n.
// Every board answers with MAC aa:bb:cc:dd:ee:0<line>.
func newTestStation(t *testing.T, slots []config.Slot, known ...string) *testStation {
	t.Helper()

	topo := config.Topology{USB: make(map[string]int), Slots: slots}
	addrs := make(map[int]string)
	for _, s := range slots {
		addr := fmt.Sprintf("1-1.%d", s.Line)
		topo.USB[addr] = s.Line
		addrs[s.Line] = addr
	}

	recentPath := filepath.Join(t.TempDir(), "testedBoards.txt")
	recent, err := store.OpenRecent(recentPath, 30)
	if err != nil {
		t.Fatalf("OpenRecent: %v", err)
	}
	for _, id := range known {
		if err := recent.Add(id); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	cfg := config.Defaults()
	cfg.DeviceCount = len(slots)
	cfg.FirmwareFile = "firmware.bin"
	cfg.FirmwareBuild = 12
	cfg.Retries = 2
	cfg.Timing = config.Timing{GetTestTimeout: 1000, IMUTimeout: 1000}

	ts := &testStation{
		sim:        hw.NewSimulator(),
		ports:      newFakePorts(),
		tools:      &fakeTools{macs: make(map[string]string)},
		sink:       &fakeSink{},
		display:    newFakeDisplay(),
		recent:     recent,
		recentPath: recentPath,
	}
	for line := range addrs {
		port := fmt.Sprintf("/dev/ttyUSB%d", line)
		mac := fmt.Sprintf("aa:bb:cc:dd:ee:%02x", line)
		ts.ports.macs[port] = mac
		ts.tools.macs[port] = mac
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	o, err := New(Options{
		Config:   cfg,
		Topology: topo,
		State:    State{Board: ts.sim, Power: ts.sim, Recent: recent},
		Ports:    ts.ports,
		Tools:    ts.tools,
		Sinks:    []report.Sink{ts.sink},
		Display:  ts.display,
		Log:      logrus.NewEntry(logger),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts.o = o

	ts.sim.OnEnable = func(line int, rail hw.Rail, ch hw.Channel) {
		if rail != hw.RailVBUS || ch == hw.ChannelNone {
			return
		}
		tty := fmt.Sprintf("ttyUSB%d", line)
		ts.ports.attach("/dev/" + tty)
		o.SetUSB(addrs[line], tty)
	}
	return ts
}

func (ts *testStation) run(t *testing.T, slots ...int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts.o.execute(ctx, request{slots: slots})
}

func (ts *testStation) recentLines(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(ts.recentPath)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read recent: %v", err)
	}
	return len(strings.Fields(string(data)))
}

func resultNamed(d *device.DeviceTest, name string) (device.TestResult, bool) {
	for _, r := range d.Results() {
		if r.Name == name {
			return r, true
		}
	}
	return device.TestResult{}, false
}

var oneSlot = []config.Slot{{Channel: "A", Line: 0}}

func TestRunHealthySlotPasses(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.run(t)

	d := ts.o.Devices()[0]
	if d.Status() != device.Pass {
		for _, r := range d.Results() {
			t.Logf("%s", r)
		}
		t.Fatalf("status = %s, want pass", d.Status())
	}
	if d.Identity != "aa:bb:cc:dd:ee:00" {
		t.Errorf("identity = %q", d.Identity)
	}

	want := []string{
		"VBUS reference",
		"VCC voltage from VBUS power",
		"3v3 voltage from VBUS power",
		"Bat voltage from VBUS power",
		"Bat reference",
		"VBUS voltage from Bat power",
		"VCC voltage from Bat power",
		"3v3 voltage from Bat power",
		"Find serial port",
		"Read MAC address",
		"Flash firmware",
		"Firmware state",
		"IMU data",
	}
	results := d.Results()
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, name := range want {
		if results[i].Name != name {
			t.Errorf("result %d = %q, want %q", i, results[i].Name, name)
		}
	}

	if sent := ts.sink.sent(); len(sent) != 1 || sent[0] != "aa:bb:cc:dd:ee:00" {
		t.Errorf("sink got %v", sent)
	}
	if !ts.recent.Contains("aa:bb:cc:dd:ee:00") {
		t.Error("identity not recorded as recent")
	}
	if ts.display.get(0) != device.Pass {
		t.Errorf("display status = %s", ts.display.get(0))
	}
	if ts.o.Running() {
		t.Error("still running")
	}
}

func TestRunLowVoltageExcludesSlot(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.sim.SetRails(hw.ChannelA, 0, hw.RailVBUS, hw.Rails{VBUS: 3.9, VCC: 4.8, V3V3: 3.1, Battery: 4.0})
	ts.run(t)

	d := ts.o.Devices()[0]
	if d.Status() != device.Error {
		t.Fatalf("status = %s, want error", d.Status())
	}
	r, ok := resultNamed(d, "VBUS reference")
	if !ok || r.Status != device.Error || r.EndValue != "3.900" {
		t.Errorf("VBUS reference = %+v", r)
	}
	if _, ok := resultNamed(d, "Bat reference"); ok {
		t.Error("battery test ran on a failed slot")
	}
	if id, fl := ts.tools.calls(); id != 0 || fl != 0 {
		t.Errorf("tools called: identity %d, flash %d", id, fl)
	}
	if ts.ports.openCount() != 0 {
		t.Error("serial port opened for a failed slot")
	}
	if len(ts.sink.sent()) != 0 {
		t.Error("failed slot without identity was committed")
	}
}

func TestRunTooManyPortsFailsChannel(t *testing.T) {
	ts := newTestStation(t, []config.Slot{{Channel: "A", Line: 0}, {Channel: "A", Line: 1}})
	ts.ports.extra = []string{"/dev/ttyUSB9"}
	ts.run(t)

	for _, d := range ts.o.Devices() {
		if d.Status() != device.Error {
			t.Errorf("slot %d status = %s, want error", d.Slot, d.Status())
		}
		r, ok := resultNamed(d, "Find serial port")
		if !ok || r.Status != device.Error {
			t.Fatalf("slot %d: no failed Find serial port result", d.Slot)
		}
		for _, name := range []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB9"} {
			if !strings.Contains(r.EndValue, name) {
				t.Errorf("slot %d: %q does not list %s", d.Slot, r.EndValue, name)
			}
		}
	}
	if id, _ := ts.tools.calls(); id != 0 {
		t.Errorf("identity read %d times after structural fault", id)
	}
}

func TestRunUncorrelatedPortIgnored(t *testing.T) {
	ts := newTestStation(t, []config.Slot{{Channel: "A", Line: 0}, {Channel: "A", Line: 1}})
	// Line 1 never enumerates; an unrelated port takes its place in the count.
	ts.sim.OnEnable = func(line int, rail hw.Rail, ch hw.Channel) {
		if rail != hw.RailVBUS || ch != hw.ChannelA || line != 0 {
			return
		}
		ts.ports.attach("/dev/ttyUSB0")
		ts.o.SetUSB("1-1.0", "ttyUSB0")
	}
	ts.ports.extra = []string{"/dev/ttyACM0"}
	ts.run(t)

	devices := ts.o.Devices()
	if devices[0].Status() != device.Pass {
		t.Errorf("slot 0 status = %s, want pass", devices[0].Status())
	}
	r, ok := resultNamed(devices[1], "Find serial port")
	if !ok || r.Status != device.Error {
		t.Errorf("slot 1 find result = %+v", r)
	}
}

func TestRunRecentIdentityIsRetested(t *testing.T) {
	ts := newTestStation(t, oneSlot, "aa:bb:cc:dd:ee:00")
	before := ts.recentLines(t)
	ts.run(t)

	d := ts.o.Devices()[0]
	if d.Status() != device.Retested {
		t.Fatalf("status = %s, want retested", d.Status())
	}
	if len(ts.sink.sent()) != 0 {
		t.Errorf("sink called for a recent board: %v", ts.sink.sent())
	}
	if after := ts.recentLines(t); after != before {
		t.Errorf("recent file grew from %d to %d lines", before, after)
	}
	if _, fl := ts.tools.calls(); fl != 0 {
		t.Error("recent board was flashed")
	}
}

func TestRunWithoutFirmwareMarksNotUpdated(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.o.cfg.FirmwareFile = ""
	ts.run(t)

	d := ts.o.Devices()[0]
	if d.Status() != device.NotUpdated {
		t.Fatalf("status = %s, want not updated", d.Status())
	}
	if _, fl := ts.tools.calls(); fl != 0 {
		t.Error("flash tool ran without firmware")
	}
	if len(ts.sink.sent()) != 1 {
		t.Errorf("sink got %v", ts.sink.sent())
	}
	if ts.recent.Contains(d.Identity) {
		t.Error("not updated board recorded as recent")
	}
}

func TestRunFirmwareBuildMismatch(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.o.cfg.FirmwareBuild = 13
	ts.run(t)

	d := ts.o.Devices()[0]
	r, ok := resultNamed(d, "Firmware version check")
	if !ok || r.Status != device.Error {
		t.Fatalf("version check = %+v", r)
	}
	if d.Status() != device.Error {
		t.Errorf("status = %s", d.Status())
	}
	if _, ok := resultNamed(d, "IMU data"); ok {
		t.Error("IMU test ran after a version mismatch")
	}
}

func TestRunDisconnectDuringFlash(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.tools.flash = func(_ context.Context, _ string, abort <-chan struct{}) device.TestResult {
		go ts.o.SetUSB("1-1.0", "")
		select {
		case <-abort:
			return device.NewResult("Flash firmware", device.Error, "Serial disconnected")
		case <-time.After(5 * time.Second):
			return device.NewResult("Flash firmware", device.Pass, "Hash of data verified.")
		}
	}
	ts.run(t)

	d := ts.o.Devices()[0]
	r, ok := resultNamed(d, "Flash firmware")
	if !ok || r.Status != device.Error || r.EndValue != "Serial disconnected" {
		t.Fatalf("flash result = %+v", r)
	}
	if d.Status() != device.Error {
		t.Errorf("status = %s, want error", d.Status())
	}
	if ts.ports.openCount() != 0 {
		t.Error("functional test ran on a disconnected board")
	}
}

func TestRunDisconnectDuringFunctional(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	var mu sync.Mutex
	getTests := 0
	ts.ports.command = func(cmd string) {
		if cmd != "GET TEST" {
			return
		}
		mu.Lock()
		getTests++
		mu.Unlock()
		go ts.o.SetUSB("1-1.0", "")
	}
	ts.run(t)

	d := ts.o.Devices()[0]
	r, ok := resultNamed(d, "Firmware state")
	if !ok || r.Status != device.Error || r.EndValue != "Serial disconnected" {
		t.Fatalf("firmware state = %+v", r)
	}
	if d.Status() != device.Error {
		t.Errorf("status = %s, want error", d.Status())
	}
	if _, ok := resultNamed(d, "IMU data"); ok {
		t.Error("IMU test ran on a disconnected board")
	}
	mu.Lock()
	defer mu.Unlock()
	if getTests != 1 {
		t.Errorf("GET TEST sent %d times, want 1", getTests)
	}
}

func TestRunReadsIdentityOnEveryRun(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.run(t)
	first := ts.o.Devices()[0]
	if first.Identity != "aa:bb:cc:dd:ee:00" {
		t.Fatalf("identity = %q", first.Identity)
	}

	ts.run(t, 0)
	d := ts.o.Devices()[0]
	if d == first {
		t.Fatal("retest reused the previous record")
	}
	if id, _ := ts.tools.calls(); id != 2 {
		t.Errorf("identity read %d times over two runs, want 2", id)
	}
	if d.Identity != "aa:bb:cc:dd:ee:00" || !d.Commit {
		t.Errorf("retest identity = %q, commit = %v", d.Identity, d.Commit)
	}
}

func TestRunRetestOnlyTouchesSubset(t *testing.T) {
	ts := newTestStation(t, []config.Slot{{Channel: "A", Line: 0}, {Channel: "A", Line: 1}})
	ts.sim.SetRails(hw.ChannelA, 1, hw.RailVBUS, hw.Rails{VBUS: 3.9, VCC: 4.8, V3V3: 3.1, Battery: 4.0})
	ts.run(t)

	if got := ts.o.FailedSlots(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("FailedSlots = %v", got)
	}
	first := ts.o.Devices()[0]

	ts.sim.SetRails(hw.ChannelA, 1, hw.RailVBUS, hw.HealthyRails(hw.RailVBUS))
	ts.run(t, 1)

	devices := ts.o.Devices()
	if devices[0] != first {
		t.Error("retest replaced a slot outside the subset")
	}
	if devices[1].Status() != device.Pass {
		t.Errorf("retested slot status = %s", devices[1].Status())
	}
}

func TestAutoRetestQueuedOnce(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.sim.SetRails(hw.ChannelA, 0, hw.RailVBUS, hw.Rails{VBUS: 3.9})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !ts.o.StartRun() {
		t.Fatal("StartRun refused on an idle station")
	}
	if err := ts.o.cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	ts.o.mu.Lock()
	pending := ts.o.pending
	ts.o.mu.Unlock()
	if pending == nil || len(pending.slots) != 1 || pending.slots[0] != 0 {
		t.Fatalf("pending after full run = %+v", pending)
	}

	if err := ts.o.cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	ts.o.mu.Lock()
	pending = ts.o.pending
	ts.o.mu.Unlock()
	if pending != nil {
		t.Errorf("retest queued another retest: %+v", pending)
	}
}

func TestStartRunIgnoredWhileBusy(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	if !ts.o.StartRun() {
		t.Fatal("first StartRun refused")
	}
	if ts.o.StartRun(0) {
		t.Error("StartRun accepted while a run is pending")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := ts.o.waitStart(ctx); err != nil {
		t.Fatalf("waitStart: %v", err)
	}
	if ts.o.StartRun() {
		t.Error("StartRun accepted while running")
	}
	if ts.o.Transpose() {
		t.Error("Transpose allowed while running")
	}
}

func TestWaitStartOnButton(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.sim.Press()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := ts.o.waitStart(ctx)
	if err != nil {
		t.Fatalf("waitStart: %v", err)
	}
	if len(req.slots) != 0 {
		t.Errorf("button started a partial run: %v", req.slots)
	}
	if !ts.o.Running() {
		t.Error("not running after start")
	}
}

func TestWaitStartCancelled(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ts.o.waitStart(ctx); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunFailsOnPowerFault(t *testing.T) {
	ts := newTestStation(t, oneSlot)
	ts.sim.SetPowerFault(true)
	if err := ts.o.Run(context.Background()); err == nil {
		t.Fatal("Run started with a power fault")
	}
}

func TestSetUSBFollowsChannel(t *testing.T) {
	ts := newTestStation(t, []config.Slot{{Channel: "A", Line: 0}, {Channel: "B", Line: 0}})

	ts.o.SetUSB("1-1.0", "ttyUSB0")
	if _, ok := ts.o.slotForTTY("ttyUSB0"); ok {
		t.Error("attach mapped with no channel selected")
	}

	tests := []struct {
		ch   hw.Channel
		tty  string
		slot int
	}{
		{hw.ChannelA, "ttyUSB1", 0},
		{hw.ChannelB, "ttyUSB2", 1},
	}
	for _, tt := range tests {
		ts.o.setChannel(tt.ch)
		ts.o.SetUSB("1-1.0", tt.tty)
		slot, ok := ts.o.slotForTTY(tt.tty)
		if !ok || slot != tt.slot {
			t.Errorf("channel %s: %s -> %d, %v; want %d", tt.ch, tt.tty, slot, ok, tt.slot)
		}
	}

	ts.o.SetUSB("1-1.0", "")
	if _, ok := ts.o.slotForTTY("ttyUSB2"); ok {
		t.Error("detach left the tty mapped")
	}
	ts.o.SetUSB("9-9", "ttyUSB7")
	if _, ok := ts.o.slotForTTY("ttyUSB7"); ok {
		t.Error("unknown address mapped")
	}
}

func TestTransposeReversesSlots(t *testing.T) {
	ts := newTestStation(t, []config.Slot{{Channel: "A", Line: 0}, {Channel: "A", Line: 1}, {Channel: "B", Line: 0}})
	before := ts.o.Devices()
	before[0].Identity = "first"

	if !ts.o.Transpose() {
		t.Fatal("Transpose refused while idle")
	}
	after := ts.o.Devices()
	if after[2] != before[0] || after[2].Slot != 2 {
		t.Errorf("slot 0 moved to %d", after[2].Slot)
	}
	if after[0] != before[2] || after[0].Slot != 0 {
		t.Error("slot 2 not moved to 0")
	}
}

func TestTransposeWithFewerDevicesThanSlots(t *testing.T) {
	tests := []struct {
		count int
		want  map[int]int
	}{
		{count: 10, want: map[int]int{0: 9, 9: 0, 3: 6}},
		{count: 3, want: map[int]int{0: 2, 1: 1, 2: 0}},
		{count: 0, want: map[int]int{0: 19, 19: 0}},
	}
	for _, tt := range tests {
		sim := hw.NewSimulator()
		cfg := config.Defaults()
		cfg.DeviceCount = tt.count
		o, err := New(Options{
			Config:   cfg,
			Topology: config.DefaultTopology(),
			State:    State{Board: sim, Power: sim},
			Ports:    newFakePorts(),
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		before := o.Devices()
		for i, d := range before {
			d.Identity = fmt.Sprintf("board-%d", i)
		}

		if !o.Transpose() {
			t.Fatalf("count %d: Transpose refused while idle", tt.count)
		}
		after := o.Devices()
		if len(after) != len(before) {
			t.Fatalf("count %d: expected %d devices, got=%d", tt.count, len(before), len(after))
		}
		for from, to := range tt.want {
			if after[to] != before[from] || after[to].Slot != to {
				t.Errorf("count %d: slot %d not moved to %d", tt.count, from, to)
			}
		}
		for slot, d := range after {
			if d.Slot != slot {
				t.Errorf("count %d: device at %d reports slot %d", tt.count, slot, d.Slot)
			}
		}
	}
}
