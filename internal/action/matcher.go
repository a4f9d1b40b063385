package action

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/buckleypaul/paneltester/internal/device"
)

// Outcome is the classification of a single line.
type Outcome int

const (
	NoMatch Outcome = iota
	MatchSuccess
	MatchFailure
)

// LineSource yields serial lines in arrival order.
type LineSource interface {
	Next(ctx context.Context) (string, error)
}

// Matcher classifies text lines against success and failure patterns.
// Patterns match anywhere within a line.
type Matcher struct {
	Name    string
	success []*regexp.Regexp
	failure []*regexp.Regexp
}

func NewMatcher(name string, success, failure []string) (*Matcher, error) {
	m := &Matcher{Name: name}
	for _, p := range success {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: success pattern %q: %w", name, p, err)
		}
		m.success = append(m.success, re)
	}
	for _, p := range failure {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: failure pattern %q: %w", name, p, err)
		}
		m.failure = append(m.failure, re)
	}
	return m, nil
}

// MustMatcher is NewMatcher for patterns known at compile time.
func MustMatcher(name string, success, failure []string) *Matcher {
	m, err := NewMatcher(name, success, failure)
	if err != nil {
		panic(err)
	}
	return m
}

// Match checks failure patterns before success patterns.
func (m *Matcher) Match(line string) Outcome {
	for _, re := range m.failure {
		if re.MatchString(line) {
			return MatchFailure
		}
	}
	for _, re := range m.success {
		if re.MatchString(line) {
			return MatchSuccess
		}
	}
	return NoMatch
}

func (m *Matcher) hasPatterns() bool {
	return len(m.success) > 0 || len(m.failure) > 0
}

// Evaluate classifies a single line. Anything but a success is an Error.
func (m *Matcher) Evaluate(line string) device.TestResult {
	status := device.Error
	if m.Match(line) == MatchSuccess {
		status = device.Pass
	}
	return device.NewResult(m.Name, status, line)
}

// Serial consumes lines from src until one is conclusive, the source
// disconnects or timeout elapses. A negative timeout waits forever.
func (m *Matcher) Serial(ctx context.Context, src LineSource, timeout time.Duration) device.TestResult {
	start := time.Now()
	if timeout >= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var seen []string
	for {
		line, err := src.Next(ctx)
		if err != nil {
			var value string
			switch {
			case errors.Is(err, device.ErrDisconnected):
				value = "Serial disconnected"
			case errors.Is(err, context.DeadlineExceeded):
				value = fmt.Sprintf("Timeout %gs", timeout.Seconds())
			default:
				value = err.Error()
			}
			return m.result(device.Error, value, start, seen)
		}
		seen = append(seen, line)
		switch m.Match(line) {
		case MatchSuccess:
			return m.result(device.Pass, line, start, seen)
		case MatchFailure:
			return m.result(device.Error, line, start, seen)
		}
	}
}

func (m *Matcher) result(status device.Status, value string, start time.Time, log []string) device.TestResult {
	return device.NewResult(m.Name, status, value).
		Since(start).
		WithLog(strings.Join(log, "\n"))
}
