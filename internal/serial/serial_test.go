package serial

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[INFO ] Sensor[0] ok.", "[INFO ] Sensor[0] ok."},
		{"mac: AA:bb:01, wifi state: 3", "mac: AA:bb:01, wifi state: 3"},
		{"a=b/c\x00", "a*b*c*"},
		{"tab\there", "tab*here"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q): expected %q, got=%q", tt.in, tt.want, got)
		}
	}
}

func TestScanLinesDropsBlankLines(t *testing.T) {
	var got []string
	err := scanLines(strings.NewReader("first\r\n\r\n   \nsecond\npartial"), func(s string) {
		got = append(got, s)
	})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	want := []string{"first", "second", "partial"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got=%v", want, got)
	}
}

func TestIsBoardPort(t *testing.T) {
	tests := []struct {
		port PortInfo
		want bool
	}{
		{PortInfo{Name: "/dev/ttyUSB0", IsUSB: true}, true},
		{PortInfo{Name: "/dev/ttyUSB3", Product: "USB2.0-Serial"}, true},
		{PortInfo{Name: "/dev/ttyUSB1", Product: "CH340 bridge"}, true},
		{PortInfo{Name: "/dev/ttyUSB1", Product: "modem"}, false},
		{PortInfo{Name: "/dev/ttyS0", IsUSB: true}, false},
		{PortInfo{Name: "/dev/ttyAMA0", Product: "serial"}, false},
		{PortInfo{Name: "COM4", Product: "Silicon Labs CP2102"}, true},
	}
	for _, tt := range tests {
		if got := IsBoardPort(tt.port); got != tt.want {
			t.Errorf("IsBoardPort(%+v): expected %v, got=%v", tt.port, tt.want, got)
		}
	}
}

func TestFindNewPortsSkipsKnown(t *testing.T) {
	m := NewManager(logrus.NewEntry(logrus.New()), 115200)
	m.list = func() ([]PortInfo, error) {
		return []PortInfo{
			{Name: "/dev/ttyUSB1", IsUSB: true},
			{Name: "/dev/ttyUSB0", IsUSB: true},
			{Name: "/dev/ttyS0"},
		}, nil
	}

	ports, err := m.FindNewPorts()
	if err != nil {
		t.Fatalf("FindNewPorts failed: %v", err)
	}
	if len(ports) != 2 || ports[0].Name != "/dev/ttyUSB0" {
		t.Fatalf("expected 2 sorted ports, got %+v", ports)
	}

	m.MarkKnown("/dev/ttyUSB0")
	ports, _ = m.FindNewPorts()
	if len(ports) != 1 || ports[0].Name != "/dev/ttyUSB1" {
		t.Errorf("expected only ttyUSB1, got %+v", ports)
	}

	m.CloseAll()
	ports, _ = m.FindNewPorts()
	if len(ports) != 2 {
		t.Errorf("expected known ports to be forgotten, got %+v", ports)
	}
}

type pipePort struct {
	*io.PipeReader
	w       *io.PipeWriter
	written strings.Builder
	mu      sync.Mutex
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *pipePort) Close() error {
	return p.PipeReader.Close()
}

type recorder struct {
	mu    sync.Mutex
	lines []string
	gone  chan struct{}
}

func (r *recorder) OnLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) OnDisconnect() { close(r.gone) }

func withPipePort(t *testing.T) *pipePort {
	t.Helper()
	pr, pw := io.Pipe()
	fake := &pipePort{PipeReader: pr, w: pw}
	orig := openPort
	openPort = func(string, *serial.Mode) (io.ReadWriteCloser, error) { return fake, nil }
	t.Cleanup(func() { openPort = orig })
	return fake
}

func TestPortDeliversLinesAndDisconnect(t *testing.T) {
	fake := withPipePort(t)
	rec := &recorder{gone: make(chan struct{})}
	p, err := Open("/dev/ttyUSB0", 115200, rec, logrus.NewEntry(logrus.New()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := p.Write([]byte("GET TEST\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	fake.w.Write([]byte("[TEST] Board: 1\n\nbye\n"))
	fake.w.CloseWithError(errors.New("device unplugged"))

	select {
	case <-rec.gone:
	case <-time.After(time.Second):
		t.Fatal("expected disconnect to be signalled")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if strings.Join(rec.lines, "|") != "[TEST] Board: 1|bye" {
		t.Errorf("unexpected lines %v", rec.lines)
	}
	if fake.written.String() != "GET TEST\n" {
		t.Errorf("expected written command, got=%q", fake.written.String())
	}
	if p.Connected() {
		t.Error("expected port to be marked closed")
	}
	if _, err := p.Write([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("expected ErrClosedPipe after disconnect, got %v", err)
	}
}

func TestPortCloseDoesNotSignalDisconnect(t *testing.T) {
	withPipePort(t)
	rec := &recorder{gone: make(chan struct{})}
	p, err := Open("/dev/ttyUSB0", 115200, rec, logrus.NewEntry(logrus.New()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-rec.gone:
		t.Fatal("deliberate close must not signal a disconnect")
	case <-time.After(50 * time.Millisecond):
	}
}
