package action

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/buckleypaul/paneltester/internal/device"
)

// CommandLine splits tmpl on whitespace and substitutes {key} placeholders
// in each field with vars[key].
func CommandLine(tmpl string, vars map[string]string) []string {
	fields := strings.Fields(tmpl)
	for i, f := range fields {
		for k, v := range vars {
			f = strings.ReplaceAll(f, "{"+k+"}", v)
		}
		fields[i] = f
	}
	return fields
}

// Command runs argv with stderr merged into stdout and classifies every
// output line. A failure line or a closed abort channel kills the process
// and any children it started.
// When no patterns are configured the exit code decides. A negative
// timeout waits forever.
func (m *Matcher) Command(ctx context.Context, argv []string, timeout time.Duration, abort <-chan struct{}) device.TestResult {
	return m.CommandIn(ctx, Env{}, argv, timeout, abort)
}

// CommandIn is Command run with env.
func (m *Matcher) CommandIn(ctx context.Context, env Env, argv []string, timeout time.Duration, abort <-chan struct{}) device.TestResult {
	start := time.Now()
	if len(argv) == 0 {
		return m.result(device.Error, "empty command", start, nil)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	env.apply(cmd)
	ownGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return m.result(device.Error, err.Error(), start, nil)
	}
	cmd.Stderr = cmd.Stdout // merge stderr into stdout

	if err := cmd.Start(); err != nil {
		return m.result(device.Error, fmt.Sprintf("%s: %v", argv[0], err), start, nil)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var (
		seen    []string
		matched string
		passed  bool
	)
	kill := func(status device.Status, value string) device.TestResult {
		_ = killGroup(cmd)
		_ = cmd.Wait()
		for range lines {
		}
		return m.result(status, value, start, seen)
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return m.exited(cmd, passed, matched, start, seen)
			}
			seen = append(seen, line)
			switch m.Match(line) {
			case MatchFailure:
				return kill(device.Error, line)
			case MatchSuccess:
				if !passed {
					passed, matched = true, line
				}
			}
		case <-abort:
			return kill(device.Error, "Serial disconnected")
		case <-ctx.Done():
			return kill(device.Error, "Cancelled")
		case <-deadline:
			if passed {
				return kill(device.Pass, matched)
			}
			return kill(device.Error, fmt.Sprintf("Timeout %gs", timeout.Seconds()))
		}
	}
}

func (m *Matcher) exited(cmd *exec.Cmd, passed bool, matched string, start time.Time, seen []string) device.TestResult {
	exitCode := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	switch {
	case passed:
		return m.result(device.Pass, matched, start, seen)
	case !m.hasPatterns() && exitCode == 0:
		return m.result(device.Pass, "exit code 0", start, seen)
	default:
		return m.result(device.Error, fmt.Sprintf("exit code %d", exitCode), start, seen)
	}
}
