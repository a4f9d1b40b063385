package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/paneltester/internal/action"
	"github.com/buckleypaul/paneltester/internal/app"
	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/hw"
	"github.com/buckleypaul/paneltester/internal/logging"
	"github.com/buckleypaul/paneltester/internal/pages"
	"github.com/buckleypaul/paneltester/internal/report"
	"github.com/buckleypaul/paneltester/internal/serial"
	"github.com/buckleypaul/paneltester/internal/station"
	"github.com/buckleypaul/paneltester/internal/store"
	"github.com/buckleypaul/paneltester/internal/usb"
)

const (
	ttyClassRoot    = "/sys/class/tty"
	usbPollInterval = 250 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg := config.Load(root)

	logger, closer, err := logging.New(filepath.Join(root, "paneltester.log"), logrus.InfoLevel)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logrus.NewEntry(logger)

	topoPath := stationPath(root, cfg.Topology)
	topo, err := config.LoadTopology(topoPath)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}
	if _, err := os.Stat(topoPath); errors.Is(err, os.ErrNotExist) {
		if err := topo.Save(topoPath); err != nil {
			log.WithError(err).Warn("Could not write default topology")
		} else {
			log.WithField("path", topoPath).Info("Wrote default topology")
		}
	}

	board, power, err := openHardware(cfg, log.WithField("component", "hw"))
	if err != nil {
		return err
	}
	if c, ok := board.(io.Closer); ok {
		defer c.Close()
	}

	recent, err := store.OpenRecent(stationPath(root, cfg.RecentFile), cfg.RecentCapacity)
	if err != nil {
		return fmt.Errorf("open recent boards: %w", err)
	}
	st := store.New(filepath.Join(root, ".paneltester"))

	var sinks []report.Sink
	if cfg.RPCURL != "" {
		sinks = append(sinks, report.NewRemote(cfg.RPCURL, cfg.RPCPassword, cfg.TesterName, cfg.ReportType))
	} else {
		log.Warn("No RPC URL configured, results are not uploaded")
	}
	if cfg.Archive {
		sinks = append(sinks, report.NewArchive(st, cfg.TesterName, cfg.ReportType))
	}

	// The display posts into the program, which needs the orchestrator
	// first; prog is set before anything can send.
	var prog *tea.Program
	display := app.NewDisplay(func(msg tea.Msg) { prog.Send(msg) })

	ports := serial.NewManager(log.WithField("component", "serial"), cfg.SerialBaudRate)
	tools := station.NewCommandTools(cfg)
	tools.Env = action.DetectEnv(root, cfg.ToolVenv, "esptool")
	if tools.Env.Bin != "" {
		log.WithField("bin", tools.Env.Bin).Info("Using esptool from virtual environment")
	}
	orch, err := station.New(station.Options{
		Config:   cfg,
		Topology: topo,
		State:    station.State{Board: board, Power: power, Recent: recent},
		Ports:    ports,
		Tools:    tools,
		Sinks:    sinks,
		Display:  display,
		Log:      log.WithField("component", "station"),
	})
	if err != nil {
		return err
	}

	pageMap := map[app.PageID]app.Page{
		app.PanelPage:    pages.NewPanelPage(orch),
		app.LogPage:      pages.NewLogPage(),
		app.HistoryPage:  pages.NewHistoryPage(st),
		app.SettingsPage: pages.NewSettingsPage(&cfg, root),
	}
	prog = tea.NewProgram(app.New(pageMap, orch, cfg.TesterName), tea.WithAltScreen())
	logger.AddHook(&logging.StatusHook{Send: display.StatusLine})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := usb.NewResolver(log.WithField("component", "usb"))
	defer resolver.Close()
	go orch.Follow(ctx, resolver.Subscribe())
	go watchUSB(ctx, cfg, resolver, log)

	done := make(chan error, 1)
	go func() {
		err := orch.Run(ctx)
		if err != nil {
			log.WithError(err).Error("Station stopped")
			prog.Quit()
		}
		done <- err
	}()

	if _, err := prog.Run(); err != nil {
		return err
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(shutdownTimeout):
		log.Warn("Run still in progress at exit")
		ports.CloseAll()
		board.DisableAll()
		board.PowerOff()
		return nil
	}
}

func stationPath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func openHardware(cfg config.Config, log *logrus.Entry) (hw.Switchboard, hw.VoltageSource, error) {
	switch cfg.Hardware {
	case config.HardwareSim:
		log.Warn("Using simulated hardware")
		sim := hw.NewSimulator()
		return sim, sim, nil
	case config.HardwareLinux:
		board, err := hw.OpenGPIO(cfg.GPIOChip, cfg.Pins, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open switchboard: %w", err)
		}
		adc, err := hw.OpenIIO(cfg.ADCDir, cfg.ADC)
		if err != nil {
			board.Close()
			return nil, nil, fmt.Errorf("open ADC: %w", err)
		}
		return board, adc, nil
	default:
		return nil, nil, fmt.Errorf("unknown hardware backend %q", cfg.Hardware)
	}
}

func watchUSB(ctx context.Context, cfg config.Config, r *usb.Resolver, log *logrus.Entry) {
	var err error
	switch cfg.USBSource {
	case config.USBSourceSysfs:
		err = r.Poll(ctx, usbPollInterval, serial.ListPorts, func(dev string) (string, error) {
			return usb.SysfsAddress(ttyClassRoot, dev)
		})
	default:
		err = r.Watch(ctx)
	}
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Error("USB watcher stopped")
	}
}
