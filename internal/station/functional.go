package station

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/buckleypaul/paneltester/internal/action"
	"github.com/buckleypaul/paneltester/internal/device"
	"github.com/buckleypaul/paneltester/internal/hw"
)

const getTestAttempts = 5

var (
	openPort        = action.NewSuccess("Open serial port")
	getTestCommand  = action.NewSuccess("GET TEST command")
	resetCommand    = action.NewSuccess("FRST command")
	setWifiCommand  = action.NewSuccess("SET WIFI command")
	firmwareVersion = "Firmware version check"

	i2cMatcher = action.MustMatcher("I2C sensor detected",
		[]string{`\[INFO \] \[BNO080Sensor:0\] Connected to BNO085 on 0x4a`},
		[]string{`ERR`, `FATAL`, `Connected to BNO085 on 0x4b`})
	firmwareMatcher = action.MustMatcher("Firmware state",
		[]string{`.*\[TEST\] Board:.*, wifi state: \d.*`},
		[]string{`.*ERR.*`, `.*FATAL.*`})
	imuMatcher = action.MustMatcher("IMU data",
		[]string{`(?i)Sensor\[0\] sent some data, looks working\.`},
		[]string{`(?i)Sensor 1 didn't send any data yet`, `(?i)Sensor\[0\] didn't send any data yet`})

	buildPattern = regexp.MustCompile(`build: (\d+),.*mac: ([a-zA-Z0-9:]+),`)
)

// functional opens the serial port of every bound board on ch, boots the
// firmware and runs the self-test exchange.
func (o *Orchestrator) functional(ctx context.Context, ch hw.Channel) {
	var targets []*device.DeviceTest
	for _, d := range o.active(ch) {
		if d.PortPath != "" {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return
	}
	o.setPhase(PhaseFunctional)

	var opened []*device.DeviceTest
	for _, d := range targets {
		w, err := o.ports.Open(d.PortPath, d)
		if err != nil {
			o.addResult(d, openPort.Evaluate(false).WithLog(err.Error()))
			d.SetStatus(device.PortError)
			o.display.SetStatus(d.Slot, d.Status())
			continue
		}
		d.Bind(w)
		opened = append(opened, d)
	}
	if len(opened) == 0 {
		return
	}

	hw.Reboot(o.board, o.timing.Switching())

	for _, d := range opened {
		if ctx.Err() != nil {
			return
		}
		o.testFirmware(ctx, d)
	}
}

func (o *Orchestrator) testFirmware(ctx context.Context, d *device.DeviceTest) {
	if o.cfg.CheckI2C {
		o.addResult(d, i2cMatcher.Serial(ctx, d, o.timing.I2CTimeout.Duration()))
		if d.Failed() {
			return
		}
	}

	o.getTest(ctx, d)
	if d.Failed() {
		return
	}

	o.addResult(d, imuMatcher.Serial(ctx, d, o.timing.IMUTimeout.Duration()))
	if d.Failed() {
		return
	}

	if o.cfg.FactoryReset {
		start := time.Now()
		o.addResult(d, resetCommand.EvaluateSince(d.FactoryReset() == nil, start))
	}
	if o.cfg.WifiSSID != "" {
		start := time.Now()
		o.addResult(d, setWifiCommand.EvaluateSince(d.SetWifi(o.cfg.WifiSSID, o.cfg.WifiPassword) == nil, start))
	}
}

// getTest asks the firmware for its self-test line and checks the build.
func (o *Orchestrator) getTest(ctx context.Context, d *device.DeviceTest) {
	var r device.TestResult
	for attempt := 0; attempt < getTestAttempts; attempt++ {
		start := time.Now()
		if err := d.SendCommand("GET TEST"); err != nil {
			o.addResult(d, getTestCommand.EvaluateSince(false, start).WithLog("Serial command error: "+err.Error()))
			return
		}
		r = firmwareMatcher.Serial(ctx, d, o.timing.GetTestTimeout.Duration())
		if r.Status == device.Pass || d.Disconnected() || ctx.Err() != nil {
			break
		}
	}
	o.addResult(d, r)
	if r.Status != device.Pass {
		return
	}

	m := buildPattern.FindStringSubmatch(r.EndValue)
	if m == nil {
		return
	}
	build, _ := strconv.Atoi(m[1])
	mac := strings.ToLower(m[2])
	if o.cfg.FirmwareBuild != 0 && build != o.cfg.FirmwareBuild {
		o.addResult(d, device.NewResult(firmwareVersion, device.Error,
			fmt.Sprintf("build %d, expected %d", build, o.cfg.FirmwareBuild)).Since(r.StartedAt))
		return
	}

	d.FlashingRequired = false
	switch {
	case d.Identity == "":
		d.Identity = mac
		d.Commit = true
		o.display.SetID(d.Slot, mac)
	case d.Identity != mac:
		o.slotLog(d).WithField("id", d.Identity).Warnf("Firmware reports MAC %s", mac)
	}
}
