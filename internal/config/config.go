package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/buckleypaul/paneltester/internal/hw"
)

const (
	DefaultBaudRate       = 115200
	DefaultDeviceCount    = 20
	DefaultRetries        = 5
	DefaultRecentFile     = "testedBoards.txt"
	DefaultRecentCapacity = 30
	DefaultTesterName     = "slime-tester-1"
	DefaultReportType     = "BOARD_SLIMEVR"

	DefaultIdentityCommand = "esptool --before no_reset --after no_reset --port {port} read_mac"
	DefaultFlashCommand    = "esptool --before no_reset --after no_reset --chip esp8266 --port {port} --baud {baud} write_flash -fm qio 0x0000 {firmware}"
	DefaultFlashBaudRate   = 3000000

	HardwareLinux = "linux"
	HardwareSim   = "sim"

	USBSourceDmesg = "dmesg"
	USBSourceSysfs = "sysfs"
)

// Millis is a duration in milliseconds as written in config files.
type Millis int

func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Timing holds every delay and deadline of a run.
type Timing struct {
	Settle          Millis `json:"settle_ms"`
	FlashPins       Millis `json:"flash_pins_ms"`
	SerialBoot      Millis `json:"serial_boot_ms"`
	Boot            Millis `json:"boot_ms"`
	Reset           Millis `json:"reset_ms"`
	PowerOff        Millis `json:"power_off_ms"`
	Discovery       Millis `json:"discovery_ms"`
	DiscoverySettle Millis `json:"discovery_settle_ms"`
	DiscoveryPoll   Millis `json:"discovery_poll_ms"`
	ButtonPoll      Millis `json:"button_poll_ms"`

	I2CTimeout      Millis `json:"i2c_timeout_ms"`
	GetTestTimeout  Millis `json:"get_test_timeout_ms"`
	IMUTimeout      Millis `json:"imu_timeout_ms"`
	IdentityTimeout Millis `json:"identity_timeout_ms"`
	FlashTimeout    Millis `json:"flash_timeout_ms"`
}

// Switching returns the delays used by the switchboard sequences.
func (t Timing) Switching() hw.Timing {
	return hw.Timing{
		Settle:    t.Settle.Duration(),
		FlashPins: t.FlashPins.Duration(),
		Reset:     t.Reset.Duration(),
		Boot:      t.Boot.Duration(),
	}
}

func DefaultTiming() Timing {
	return Timing{
		Settle:          100,
		FlashPins:       200,
		SerialBoot:      200,
		Boot:            1500,
		Reset:           300,
		PowerOff:        500,
		Discovery:       5000,
		DiscoverySettle: 500,
		DiscoveryPoll:   50,
		ButtonPoll:      10,
		I2CTimeout:      30000,
		GetTestTimeout:  200,
		IMUTimeout:      1000,
		IdentityTimeout: 3000,
		FlashTimeout:    120000,
	}
}

// Config holds all station configuration.
type Config struct {
	DeviceCount    int `json:"device_count,omitempty"`
	SerialBaudRate int `json:"serial_baud_rate,omitempty"`

	FirmwareFile    string `json:"firmware_file,omitempty"`
	FirmwareBuild   int    `json:"firmware_build,omitempty"`
	IdentityCommand string `json:"identity_command,omitempty"`
	FlashCommand    string `json:"flash_command,omitempty"`
	FlashBaudRate   int    `json:"flash_baud_rate,omitempty"`
	ToolVenv        string `json:"tool_venv,omitempty"`
	Retries         int    `json:"retries,omitempty"`
	CheckI2C        bool   `json:"check_i2c"`
	FactoryReset    bool   `json:"factory_reset"`
	WifiSSID        string `json:"wifi_ssid,omitempty"`
	WifiPassword    string `json:"wifi_password,omitempty"`

	RecentFile     string `json:"recent_file,omitempty"`
	RecentCapacity int    `json:"recent_capacity,omitempty"`

	RPCURL      string `json:"rpc_url,omitempty"`
	RPCPassword string `json:"rpc_password,omitempty"`
	TesterName  string `json:"tester_name,omitempty"`
	ReportType  string `json:"report_type,omitempty"`
	Archive     bool   `json:"archive"`

	Hardware  string         `json:"hardware,omitempty"`
	GPIOChip  string         `json:"gpio_chip,omitempty"`
	Pins      hw.Pins        `json:"pins"`
	ADCDir    string         `json:"adc_dir,omitempty"`
	ADC       hw.ADCChannels `json:"adc"`
	USBSource string         `json:"usb_source,omitempty"`
	Topology  string         `json:"topology,omitempty"`

	Timing Timing `json:"timing"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		DeviceCount:     DefaultDeviceCount,
		SerialBaudRate:  DefaultBaudRate,
		IdentityCommand: DefaultIdentityCommand,
		FlashCommand:    DefaultFlashCommand,
		FlashBaudRate:   DefaultFlashBaudRate,
		Retries:         DefaultRetries,
		RecentFile:      DefaultRecentFile,
		RecentCapacity:  DefaultRecentCapacity,
		TesterName:      DefaultTesterName,
		ReportType:      DefaultReportType,
		Archive:         true,
		Hardware:        HardwareLinux,
		GPIOChip:        "gpiochip0",
		Pins:            hw.DefaultPins(),
		ADCDir:          "/sys/bus/iio/devices/iio:device0",
		ADC:             hw.DefaultADCChannels(),
		USBSource:       USBSourceDmesg,
		Topology:        "topology.yaml",
		Timing:          DefaultTiming(),
	}
}

// Load reads and merges global and station configs, then applies
// environment overrides.
// Order: defaults → global (~/.config/paneltester/config.json) → station
// (.paneltester/config.json) → TESTER_* variables.
func Load(stationRoot string) Config {
	cfg := Defaults()

	// Global config
	if home, err := os.UserHomeDir(); err == nil {
		globalPath := filepath.Join(home, ".config", "paneltester", "config.json")
		mergeFromFile(&cfg, globalPath)
	}

	// Station config
	if stationRoot != "" {
		path := filepath.Join(stationRoot, ".paneltester", "config.json")
		mergeFromFile(&cfg, path)
	}

	applyEnv(&cfg, os.LookupEnv)
	return cfg
}

// Save writes the config to the station .paneltester/config.json by
// default, or to the global config if global is true.
func Save(cfg Config, stationRoot string, global bool) error {
	var dir string
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".config", "paneltester")
	} else {
		dir = filepath.Join(stationRoot, ".paneltester")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// mergeFromFile overlays the keys present in path onto cfg. A missing or
// malformed file leaves cfg untouched.
func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	merged := *cfg
	merged.Pins.Enable = append([]int(nil), cfg.Pins.Enable...)
	if err := json.Unmarshal(data, &merged); err != nil {
		return
	}
	*cfg = merged
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := map[string]*string{
		"TESTER_RPC_URL":       &cfg.RPCURL,
		"TESTER_RPC_PASSWORD":  &cfg.RPCPassword,
		"TESTER_NAME":          &cfg.TesterName,
		"TESTER_REPORT_TYPE":   &cfg.ReportType,
		"TESTER_FIRMWARE_FILE": &cfg.FirmwareFile,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("TESTER_FIRMWARE_BUILD"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FirmwareBuild = n
		}
	}
}
