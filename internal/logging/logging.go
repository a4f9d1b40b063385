// Package logging configures the station logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// StatusField marks entries that belong on the operator status line.
const StatusField = "status"

// New returns a logger writing the full log to path at level.
func New(path string, level logrus.Level) (*logrus.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	log := logrus.New()
	log.SetOutput(f)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return log, f, nil
}

// Status marks entry for the status line.
func Status(entry *logrus.Entry) *logrus.Entry {
	return entry.WithField(StatusField, true)
}

// StatusHook forwards status entries, and every warning or worse, to a
// display callback as one formatted line.
type StatusHook struct {
	Send func(line string)
}

func (h *StatusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *StatusHook) Fire(e *logrus.Entry) error {
	marked, _ := e.Data[StatusField].(bool)
	if !marked && e.Level > logrus.WarnLevel {
		return nil
	}
	h.Send(Line(e))
	return nil
}

// Line renders e the way the status log shows it.
func Line(e *logrus.Entry) string {
	prefix := ""
	if slot, ok := e.Data["slot"]; ok {
		prefix = fmt.Sprintf("[%v] ", slot)
	}
	line := e.Time.Format("15:04:05") + " " + prefix + e.Message
	if err, ok := e.Data[logrus.ErrorKey]; ok {
		line += ": " + fmt.Sprint(err)
	}
	return line
}
