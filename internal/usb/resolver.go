// Package usb correlates USB hub port addresses with the tty devices the
// kernel attaches to them.
package usb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/cskr/pubsub"
	"github.com/sirupsen/logrus"
)

// Topic is the pubsub topic carrying Event values.
const Topic = "usb"

// Event reports that the device at Address was attached as Device, or
// detached when Device is empty.
type Event struct {
	Address string
	Device  string
}

var (
	attachRe = regexp.MustCompile(`^\[ *\d+\.\d+\] .*usb ([^:]+): .* now attached to (tty(?:USB|ACM)\d+)$`)
	detachRe = regexp.MustCompile(`^\[ *\d+\.\d+\] .* now disconnected from (tty(?:USB|ACM)\d+)$`)
)

// Resolver keeps the current address to tty mapping and publishes every
// change.
type Resolver struct {
	log *logrus.Entry
	bus *pubsub.PubSub

	mu     sync.Mutex
	byAddr map[string]string
	byDev  map[string]string
}

func NewResolver(log *logrus.Entry) *Resolver {
	return &Resolver{
		log:    log,
		bus:    pubsub.New(32),
		byAddr: make(map[string]string),
		byDev:  make(map[string]string),
	}
}

// Subscribe returns a channel receiving every later Event.
func (r *Resolver) Subscribe() chan interface{} {
	return r.bus.Sub(Topic)
}

// Close shuts the event bus down, closing all subscriptions.
func (r *Resolver) Close() {
	r.bus.Shutdown()
}

// Lookup returns the tty currently attached at addr.
func (r *Resolver) Lookup(addr string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.byAddr[addr]
	return dev, ok
}

// Attach records that addr now carries dev.
func (r *Resolver) Attach(addr, dev string) {
	r.mu.Lock()
	if old, ok := r.byAddr[addr]; ok {
		delete(r.byDev, old)
	}
	r.byAddr[addr] = dev
	r.byDev[dev] = addr
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"address": addr, "tty": dev}).Debug("usb attached")
	r.bus.Pub(Event{Address: addr, Device: dev}, Topic)
}

// Detach records that dev went away. Unknown devices are ignored.
func (r *Resolver) Detach(dev string) {
	r.mu.Lock()
	addr, ok := r.byDev[dev]
	if ok {
		delete(r.byDev, dev)
		delete(r.byAddr, addr)
	}
	r.mu.Unlock()

	if !ok {
		r.log.WithField("tty", dev).Warn("detach of unknown tty")
		return
	}
	r.log.WithFields(logrus.Fields{"address": addr, "tty": dev}).Debug("usb detached")
	r.bus.Pub(Event{Address: addr}, Topic)
}

// HandleLine parses one kernel log line.
func (r *Resolver) HandleLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.Contains(line, "now attached to"):
		m := attachRe.FindStringSubmatch(line)
		if m == nil {
			r.log.WithField("line", line).Warn("unparsed usb attach")
			return
		}
		r.Attach(m[1], m[2])
	case strings.Contains(line, "now disconnected from"):
		m := detachRe.FindStringSubmatch(line)
		if m == nil {
			r.log.WithField("line", line).Warn("unparsed usb detach")
			return
		}
		r.Detach(m[1])
	}
}

// Run feeds every line of rd to HandleLine until rd ends or ctx is done.
func (r *Resolver) Run(ctx context.Context, rd io.Reader) error {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.HandleLine(scanner.Text())
	}
	return scanner.Err()
}

// Watch follows the kernel log with dmesg until ctx is done.
func (r *Resolver) Watch(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "dmesg", "-W", "--color=never")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start dmesg: %w", err)
	}
	runErr := r.Run(ctx, stdout)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if runErr != nil {
		return runErr
	}
	return waitErr
}
