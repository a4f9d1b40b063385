package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	// ErrDisconnected is returned once the bound serial port went away.
	ErrDisconnected = errors.New("serial disconnected")
	// ErrNoPort is returned when writing to a device without an open port.
	ErrNoPort = errors.New("no serial port bound")
)

// DeviceTest accumulates everything observed about the board in one slot
// during a single run.
type DeviceTest struct {
	Slot             int
	Identity         string
	PortPath         string
	FlashingRequired bool
	Commit           bool
	StartedAt        time.Time
	EndedAt          time.Time

	mu        sync.Mutex
	status    Status
	results   []TestResult
	serialLog []string
	pending   []string
	cursor    int
	port      io.Writer

	// ready holds a token while pending is non-empty.
	ready    chan struct{}
	gone     chan struct{}
	goneOnce sync.Once
}

// New returns a fresh DeviceTest for slot in the Testing state.
func New(slot int) *DeviceTest {
	return &DeviceTest{
		Slot:             slot,
		FlashingRequired: true,
		StartedAt:        time.Now(),
		status:           Testing,
		ready:            make(chan struct{}, 1),
		gone:             make(chan struct{}),
	}
}

func (d *DeviceTest) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// SetStatus changes the slot status. A failed slot stays failed.
func (d *DeviceTest) SetStatus(s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status.Failed() && !s.Failed() {
		return
	}
	d.status = s
}

func (d *DeviceTest) Failed() bool {
	return d.Status().Failed()
}

// AddResult appends r. An Error result fails the slot.
func (d *DeviceTest) AddResult(r TestResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, r)
	if r.Status == Error && !d.status.Failed() {
		d.status = Error
	}
}

func (d *DeviceTest) Results() []TestResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]TestResult, len(d.results))
	copy(out, d.results)
	return out
}

// FailedResults returns the results whose status is Error.
func (d *DeviceTest) FailedResults() []TestResult {
	var out []TestResult
	for _, r := range d.Results() {
		if r.Status == Error {
			out = append(out, r)
		}
	}
	return out
}

// Finish stamps the end time of the run for this slot.
func (d *DeviceTest) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.EndedAt = time.Now()
}

// Bind attaches the writer used by SendCommand.
func (d *DeviceTest) Bind(w io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.port = w
}

// Unbind detaches the current writer, if any.
func (d *DeviceTest) Unbind() {
	d.Bind(nil)
}

// SendCommand writes cmd followed by a newline to the bound port and
// records it in the serial log.
func (d *DeviceTest) SendCommand(cmd string) error {
	d.mu.Lock()
	w := d.port
	d.mu.Unlock()
	if w == nil {
		return ErrNoPort
	}
	if _, err := w.Write([]byte(cmd + "\n")); err != nil {
		return err
	}
	d.mu.Lock()
	d.serialLog = append(d.serialLog, "-> "+cmd)
	d.mu.Unlock()
	return nil
}

// OnLine records a line received from the serial port and queues it for
// matchers. The queue is unbounded: every received line is matched.
func (d *DeviceTest) OnLine(line string) {
	d.mu.Lock()
	d.serialLog = append(d.serialLog, line)
	d.pending = append(d.pending, line)
	d.mu.Unlock()

	select {
	case d.ready <- struct{}{}:
	default:
	}
}

// OnDisconnect marks the serial port as gone. Later calls are no-ops.
func (d *DeviceTest) OnDisconnect() {
	d.goneOnce.Do(func() { close(d.gone) })
}

// Gone is closed once the serial port disconnected.
func (d *DeviceTest) Gone() <-chan struct{} {
	return d.gone
}

func (d *DeviceTest) Disconnected() bool {
	select {
	case <-d.gone:
		return true
	default:
		return false
	}
}

// Next returns the next unconsumed serial line. Lines already queued are
// delivered before a disconnect is reported.
func (d *DeviceTest) Next(ctx context.Context) (string, error) {
	for {
		if line, ok := d.pop(); ok {
			return line, nil
		}
		select {
		case <-d.ready:
		case <-d.gone:
			if line, ok := d.pop(); ok {
				return line, nil
			}
			return "", ErrDisconnected
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (d *DeviceTest) pop() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return "", false
	}
	line := d.pending[0]
	d.pending[0] = ""
	d.pending = d.pending[1:]
	d.cursor++
	return line, true
}

// Cursor is the number of received lines consumed by matchers so far.
func (d *DeviceTest) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Pending is the number of received lines not yet consumed.
func (d *DeviceTest) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// SerialLog returns every line received or sent, in order.
func (d *DeviceTest) SerialLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.serialLog))
	copy(out, d.serialLog)
	return out
}

// SetWifi sends the WiFi credentials command.
func (d *DeviceTest) SetWifi(ssid, password string) error {
	return d.SendCommand(fmt.Sprintf("SET WIFI %q %q", ssid, password))
}

// FactoryReset sends the factory reset command.
func (d *DeviceTest) FactoryReset() error {
	return d.SendCommand("FRST")
}
