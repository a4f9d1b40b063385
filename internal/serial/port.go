package serial

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Listener receives decoded lines from a Port.
type Listener interface {
	OnLine(line string)
	OnDisconnect()
}

// Port is an open serial connection delivering sanitized lines to a
// Listener.
type Port struct {
	rwc      io.ReadWriteCloser
	portName string
	baudRate int
	mu       sync.Mutex
	running  bool
	done     chan struct{}
	listener Listener
	log      *logrus.Entry
}

var openPort = func(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	// boards tie DTR/RTS to reset and boot strap pins
	_ = p.SetDTR(false)
	_ = p.SetRTS(false)
	return p, nil
}

// Open opens portName as 8N1 at baudRate and starts the read loop.
func Open(portName string, baudRate int, l Listener, log *logrus.Entry) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	rwc, err := openPort(portName, mode)
	if err != nil {
		return nil, err
	}

	p := &Port{
		rwc:      rwc,
		portName: portName,
		baudRate: baudRate,
		running:  true,
		done:     make(chan struct{}),
		listener: l,
		log:      log.WithField("port", portName),
	}
	go p.readLoop(rwc)
	return p, nil
}

// Name returns the device path.
func (p *Port) Name() string {
	return p.portName
}

// Close closes the port without signalling a disconnect to the listener.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	close(p.done)
	if p.rwc != nil {
		return p.rwc.Close()
	}
	return nil
}

// Write sends data to the serial port.
func (p *Port) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.rwc == nil {
		return 0, io.ErrClosedPipe
	}
	return p.rwc.Write(data)
}

// Connected returns whether the port is still open.
func (p *Port) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Port) readLoop(r io.Reader) {
	err := scanLines(r, p.listener.OnLine)

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.done)
	p.mu.Unlock()

	p.log.WithError(err).Warn("serial port lost")
	p.listener.OnDisconnect()
}

// scanLines splits r into sanitized, non-blank lines until r fails.
func scanLines(r io.Reader, fn func(string)) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if clean := strings.TrimRight(Sanitize(line), "\r\n"); strings.TrimSpace(clean) != "" {
			fn(clean)
		}
		if err != nil {
			return err
		}
	}
}

// Sanitize replaces every character outside the printable set used by the
// firmware log with '*'.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("_-[]()*., \n\r:'\"", r):
			return r
		}
		return '*'
	}, s)
}
