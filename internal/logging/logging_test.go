package logging

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestStatusHookForwardsMarkedEntries(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	var lines []string
	log.AddHook(&StatusHook{Send: func(l string) { lines = append(lines, l) }})

	entry := logrus.NewEntry(log)
	entry.Info("not shown")
	Status(entry.WithField("slot", 3)).Info("Flashing")
	entry.WithError(errors.New("boom")).Warn("sink failed")
	entry.Debug("hidden")

	if len(lines) != 2 {
		t.Fatalf("expected 2 forwarded lines, got %d: %v", len(lines), lines)
	}
	if !strings.HasSuffix(lines[0], "[3] Flashing") {
		t.Errorf("unexpected status line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "sink failed: boom") {
		t.Errorf("unexpected warning line %q", lines[1])
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "paneltester.log")
	log, closer, err := New(path, logrus.InfoLevel)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.WithField("component", "test").Info("hello")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello") || !strings.Contains(string(data), "component=test") {
		t.Errorf("unexpected log content %q", data)
	}
}
