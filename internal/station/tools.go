package station

import (
	"context"
	"strconv"
	"time"

	"github.com/buckleypaul/paneltester/internal/action"
	"github.com/buckleypaul/paneltester/internal/config"
	"github.com/buckleypaul/paneltester/internal/device"
)

var (
	identityMatcher = action.MustMatcher("Read MAC address",
		[]string{`(?i)MAC: .*`},
		nil)
	flashMatcher = action.MustMatcher("Flash firmware",
		[]string{`(?i)Hash of data verified`},
		[]string{`(?i)Errno`, `(?i)error`})
)

// CommandTools runs esptool-style command templates.
type CommandTools struct {
	// Env is applied to every tool invocation.
	Env action.Env

	identityCmd     string
	flashCmd        string
	firmware        string
	baud            int
	identityTimeout time.Duration
	flashTimeout    time.Duration
}

func NewCommandTools(cfg config.Config) *CommandTools {
	return &CommandTools{
		identityCmd:     cfg.IdentityCommand,
		flashCmd:        cfg.FlashCommand,
		firmware:        cfg.FirmwareFile,
		baud:            cfg.FlashBaudRate,
		identityTimeout: cfg.Timing.IdentityTimeout.Duration(),
		flashTimeout:    cfg.Timing.FlashTimeout.Duration(),
	}
}

func (t *CommandTools) vars(port string) map[string]string {
	return map[string]string{
		"port":     port,
		"firmware": t.firmware,
		"baud":     strconv.Itoa(t.baud),
	}
}

func (t *CommandTools) ReadIdentity(ctx context.Context, port string) device.TestResult {
	argv := action.CommandLine(t.identityCmd, t.vars(port))
	return identityMatcher.CommandIn(ctx, t.Env, argv, t.identityTimeout, nil)
}

func (t *CommandTools) Flash(ctx context.Context, port string, abort <-chan struct{}) device.TestResult {
	argv := action.CommandLine(t.flashCmd, t.vars(port))
	return flashMatcher.CommandIn(ctx, t.Env, argv, t.flashTimeout, abort)
}
