// Package report delivers finished board reports to their sinks.
package report

import (
	"context"
	"time"

	"github.com/buckleypaul/paneltester/internal/device"
)

// Sink receives the report of one committed board and returns a
// human-readable acknowledgement.
type Sink interface {
	SendTestData(ctx context.Context, d *device.DeviceTest) (string, error)
}

// NoIdentity is returned by sinks for boards without an identity.
const NoIdentity = "No ID, not sent"

const timeLayout = "2006-01-02T15:04:05Z"

// Report is the upload form of a DeviceTest.
type Report struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Values    []Value `json:"values"`
	Tester    string  `json:"tester"`
	StartedAt string  `json:"startedAt"`
	EndedAt   string  `json:"endedAt"`
}

// Value is one test step of a Report.
type Value struct {
	Step      string `json:"step"`
	Condition string `json:"condition"`
	Value     string `json:"value"`
	Logs      string `json:"logs"`
	Failed    bool   `json:"failed"`
	StartedAt string `json:"startedAt"`
	EndedAt   string `json:"endedAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// NewReport converts d into its upload form.
func NewReport(d *device.DeviceTest, testType, tester string) Report {
	r := Report{
		ID:        d.Identity,
		Type:      testType,
		Tester:    tester,
		StartedAt: formatTime(d.StartedAt),
		EndedAt:   formatTime(d.EndedAt),
		Values:    []Value{},
	}
	for _, res := range d.Results() {
		r.Values = append(r.Values, Value{
			Step:      res.Name,
			Condition: res.Name,
			Value:     res.EndValue,
			Logs:      res.Log,
			Failed:    res.Status != device.Pass,
			StartedAt: formatTime(res.StartedAt),
			EndedAt:   formatTime(res.EndedAt),
		})
	}
	return r
}
