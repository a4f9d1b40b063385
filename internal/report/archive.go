package report

import (
	"context"
	"fmt"

	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/store"
)

// Archive keeps a local copy of every report together with the board's
// serial transcript.
type Archive struct {
	store    *store.Store
	tester   string
	testType string
}

func NewArchive(s *store.Store, tester, testType string) *Archive {
	return &Archive{store: s, tester: tester, testType: testType}
}

func (a *Archive) SendTestData(_ context.Context, d *device.DeviceTest) (string, error) {
	if d.Identity == "" {
		return NoIdentity, nil
	}

	rec := store.ReportRecord{
		ID:        d.Identity,
		Type:      a.testType,
		Tester:    a.tester,
		Slot:      d.Slot + 1,
		Status:    d.Status().String(),
		StartedAt: d.StartedAt,
		EndedAt:   d.EndedAt,
	}
	for _, r := range d.Results() {
		rec.Results = append(rec.Results, store.ResultRecord{
			Step:      r.Name,
			Status:    r.Status.String(),
			Value:     r.EndValue,
			Failed:    r.Status != device.Pass,
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
		})
	}

	if lines := d.SerialLog(); len(lines) > 0 {
		path, err := a.store.SaveSerialLog(d.Identity, d.StartedAt, lines)
		if err != nil {
			return "", fmt.Errorf("save serial log: %w", err)
		}
		rec.LogFile = path
	}

	if err := a.store.AddReport(rec); err != nil {
		return "", fmt.Errorf("archive report: %w", err)
	}
	return "archived", nil
}
