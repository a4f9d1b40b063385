// Package action turns raw observations into device.TestResult verdicts.
package action

import (
	"fmt"
	"strconv"
	"time"

	"github.com/buckleypaul/paneltester/internal/device"
)

// Action evaluates one kind of input into a verdict.
type Action[T any] interface {
	Evaluate(input T) device.TestResult
}

var (
	_ Action[float64] = Voltage{}
	_ Action[bool]    = Success{}
	_ Action[string]  = (*Matcher)(nil)
)

// Voltage passes when a measurement lies within [Min, Max].
type Voltage struct {
	Name string
	Min  float64
	Max  float64
}

func NewVoltage(name string, min, max float64) Voltage {
	return Voltage{Name: name, Min: min, Max: max}
}

func (v Voltage) Evaluate(value float64) device.TestResult {
	status := device.Error
	if value >= v.Min && value <= v.Max {
		status = device.Pass
	}
	return device.NewResult(v.Name, status, strconv.FormatFloat(value, 'f', 3, 64)).
		WithLog(fmt.Sprintf("expected %.2fV..%.2fV", v.Min, v.Max))
}

// Success maps a boolean outcome onto Pass or Error.
type Success struct {
	Name string
}

func NewSuccess(name string) Success {
	return Success{Name: name}
}

func (s Success) Evaluate(ok bool) device.TestResult {
	status := device.Error
	if ok {
		status = device.Pass
	}
	return device.NewResult(s.Name, status, strconv.FormatBool(ok))
}

// EvaluateSince is Evaluate with an explicit start time.
func (s Success) EvaluateSince(ok bool, start time.Time) device.TestResult {
	return s.Evaluate(ok).Since(start)
}
