package usb

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/buckleypaul/paneltester/internal/serial"
)

var ifaceRe = regexp.MustCompile(`^(\d+-[\d.]+):\d+\.\d+$`)

// SysfsAddress resolves the hub port address of a tty from the sysfs tree
// rooted at root (normally /sys/class/tty).
func SysfsAddress(root, dev string) (string, error) {
	path, err := filepath.EvalSymlinks(filepath.Join(root, dev, "device"))
	if err != nil {
		return "", err
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if m := ifaceRe.FindStringSubmatch(part); m != nil {
			return m[1], nil
		}
	}
	return "", nil
}

// Poll periodically lists serial ports and reports attach and detach
// events for boards whose address can be resolved. It stands in for Watch
// on hosts where the kernel log is not readable.
func (r *Resolver) Poll(ctx context.Context, interval time.Duration, list func() ([]serial.PortInfo, error), locate func(dev string) (string, error)) error {
	seen := make(map[string]bool)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ports, err := list()
		if err != nil {
			r.log.WithError(err).Warn("list serial ports")
		} else {
			r.reconcile(seen, ports, locate)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Resolver) reconcile(seen map[string]bool, ports []serial.PortInfo, locate func(string) (string, error)) {
	current := make(map[string]bool)
	for _, p := range ports {
		if !serial.IsBoardPort(p) {
			continue
		}
		dev := filepath.Base(p.Name)
		current[dev] = true
		if seen[dev] {
			continue
		}
		addr, err := locate(dev)
		if err != nil || addr == "" {
			r.log.WithError(err).WithField("tty", dev).Debug("no usb address")
			continue
		}
		seen[dev] = true
		r.Attach(addr, dev)
	}
	for dev := range seen {
		if !current[dev] {
			delete(seen, dev)
			r.Detach(dev)
		}
	}
}
