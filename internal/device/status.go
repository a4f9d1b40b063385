package device

import "time"

// Status is the verdict of a single test step or of a whole slot.
type Status int

const (
	Disconnected Status = iota
	Testing
	Pass
	Error
	Retested
	PortError
	NotUpdated
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Testing:
		return "testing"
	case Pass:
		return "pass"
	case Error:
		return "error"
	case Retested:
		return "retested"
	case PortError:
		return "port error"
	case NotUpdated:
		return "not updated"
	default:
		return "unknown"
	}
}

// Failed reports whether the status excludes a slot from later phases.
func (s Status) Failed() bool {
	return s == Error || s == PortError
}

// TestResult is the outcome of one test action. Values are never mutated
// after construction; the With* helpers return modified copies.
type TestResult struct {
	Name      string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	EndValue  string
	Log       string
}

// NewResult builds a result that started and ended now.
func NewResult(name string, status Status, endValue string) TestResult {
	now := time.Now()
	return TestResult{
		Name:      name,
		Status:    status,
		StartedAt: now,
		EndedAt:   now,
		EndValue:  endValue,
	}
}

// WithLog returns a copy of r carrying log as its context.
func (r TestResult) WithLog(log string) TestResult {
	r.Log = log
	return r
}

// Since returns a copy of r whose start time is start.
func (r TestResult) Since(start time.Time) TestResult {
	r.StartedAt = start
	return r
}

func (r TestResult) String() string {
	return r.Name + ": " + r.Status.String() + " (" + r.EndValue + ")"
}
