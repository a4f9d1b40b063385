package station

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
	"github.com/buckleypaul/paneltester/internal/report"
	"github.com/buckleypaul/paneltester/internal/serial"
	"github.com/buckleypaul/paneltester/internal/store"
)

// State is the process-wide station context: the hardware and the
// registry of recently committed boards.
type State struct {
	Board  hw.Switchboard
	Power  hw.VoltageSource
	Recent *store.Recent
}

// Display receives slot updates. It is write-only from the orchestrator's
// point of view.
type Display interface {
	SetStatus(slot int, s device.Status)
	SetID(slot int, id string)
	SetUSB(slot int, tty string)
	Clear()
}

// PortManager is the subset of serial.Manager the orchestrator needs.
type PortManager interface {
	FindNewPorts() ([]serial.PortInfo, error)
	MarkKnown(name string)
	Open(name string, l serial.Listener) (io.Writer, error)
	Close(name string)
	CloseAll()
}

// Tools runs the external identity and flashing programs.
type Tools interface {
	ReadIdentity(ctx context.Context, port string) device.TestResult
	Flash(ctx context.Context, port string, abort <-chan struct{}) device.TestResult
}

// Options configures an Orchestrator.
type Options struct {
	Config   config.Config
	Topology config.Topology
	State    State
	Ports    PortManager
	Tools    Tools
	Sinks    []report.Sink
	Display  Display
	Log      *logrus.Entry
}

type nopDisplay struct{}

func (nopDisplay) SetStatus(int, device.Status) {}
func (nopDisplay) SetID(int, string)            {}
func (nopDisplay) SetUSB(int, string)           {}
func (nopDisplay) Clear()                       {}
