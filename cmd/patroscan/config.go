package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the patroscan daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume a
// well-formed config. The defaults run the demo radio headless, so the daemon
// starts on any Linux box without hardware.
type Config struct {
	// Radio driver and scan cadence
	Scan ScanConfig `yaml:"scan"`

	// Joystick axis source
	Input InputConfig `yaml:"input"`

	// Confirm button on a GPIO pin
	Button ButtonConfig `yaml:"button"`

	// Heartbeat LED on a GPIO pin
	LED LEDConfig `yaml:"led"`

	// OLED output
	Display DisplayConfig `yaml:"display"`

	// Menu controller tunables
	Menu MenuFileConfig `yaml:"menu"`

	// Passphrases for protected networks, keyed by SSID
	Credentials CredentialsConfig `yaml:"credentials"`

	// IPC configuration (used by patroctl)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP server (/ws, /metrics, /screen.png)
	HTTP HTTPConfig `yaml:"http"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type ScanConfig struct {
	Driver    string `yaml:"driver"`              // "nl80211" or "demo"
	Interface string `yaml:"interface,omitempty"` // nl80211 only; empty picks the first station
	Capacity  int    `yaml:"capacity"`
	Eviction  string `yaml:"eviction"` // "drop" or "weakest"

	IntervalMS       int `yaml:"interval_ms"`
	RetryBackoffMS   int `yaml:"retry_backoff_ms"`
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`

	// DemoSeed seeds the simulated radio so runs are reproducible.
	DemoSeed int64 `yaml:"demo_seed,omitempty"`
}

type InputConfig struct {
	Driver string `yaml:"driver"` // "none", "evdev", "ads1115" or "serial"

	// evdev
	Devices    []string `yaml:"devices,omitempty"`
	AxisCode   int      `yaml:"axis_code,omitempty"`
	ConfirmKey int      `yaml:"confirm_key,omitempty"`
	DialCode   int      `yaml:"dial_code,omitempty"`

	// ads1115
	I2CBus     string `yaml:"i2c_bus,omitempty"`
	ADCChannel int    `yaml:"adc_channel,omitempty"`

	// serial
	SerialPort string `yaml:"serial_port,omitempty"`
	SerialBaud int    `yaml:"serial_baud,omitempty"`

	// Calibration, shared by all drivers
	RawMin   int  `yaml:"raw_min"`
	RawMax   int  `yaml:"raw_max"`
	AxisMax  int  `yaml:"axis_max"`
	Deadzone int  `yaml:"deadzone"`
	Invert   bool `yaml:"invert"`
}

type ButtonConfig struct {
	Driver     string `yaml:"driver"` // "none" or "gpio"
	Pin        string `yaml:"pin,omitempty"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// LEDConfig drives a status LED that blinks while the daemon loop runs.
type LEDConfig struct {
	Driver   string `yaml:"driver"` // "none" or "gpio"
	Pin      string `yaml:"pin,omitempty"`
	PeriodMS int    `yaml:"period_ms"` // half-period of the blink
}

type DisplayConfig struct {
	Driver  string `yaml:"driver"` // "none" or "ssd1306"
	I2CBus  string `yaml:"i2c_bus,omitempty"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Title   string `yaml:"title"`
	FrameHz int    `yaml:"frame_hz"`
}

// MenuFileConfig is the user-facing menu configuration. Row and band sizes are in pixels.
type MenuFileConfig struct {
	CooldownFrames int     `yaml:"cooldown_frames"`
	ScrollStep     float64 `yaml:"scroll_step"`
	RowHeight      int     `yaml:"row_height"`
	HeaderHeight   int     `yaml:"header_height"`
	FooterHeight   int     `yaml:"footer_height"`
}

type CredentialsConfig struct {
	Networks map[string]string `yaml:"networks,omitempty"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// HTTPConfig configures the observation server. Port 0 disables it.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	g := DefaultGeometry()
	return Config{
		Scan: ScanConfig{
			Driver:           "demo",
			Capacity:         defaultDiscoveryCapacity,
			Eviction:         string(EvictionDrop),
			IntervalMS:       defaultScanIntervalMS,
			RetryBackoffMS:   defaultRetryBackoffMS,
			ConnectTimeoutMS: defaultConnectTimeoutMS,
			DemoSeed:         1,
		},
		Input: InputConfig{
			Driver:     "none",
			Devices:    []string{"/dev/input/event0"},
			AxisCode:   ABS_Y,
			ConfirmKey: BTN_SOUTH,
			DialCode:   REL_DIAL,
			SerialBaud: 115200,
			RawMin:     defaultRawMin,
			RawMax:     defaultRawMax,
			AxisMax:    defaultAxisMax,
			Deadzone:   defaultDeadzone,
			Invert:     true,
		},
		Button: ButtonConfig{
			Driver:     "none",
			DebounceMS: defaultButtonDebounceMS,
		},
		LED: LEDConfig{
			Driver:   "none",
			PeriodMS: defaultLEDPeriodMS,
		},
		Display: DisplayConfig{
			Driver:  "none",
			Width:   g.Width,
			Height:  g.Height,
			Title:   defaultTitle,
			FrameHz: defaultFrameHz,
		},
		Menu: MenuFileConfig{
			CooldownFrames: defaultCooldownFrames,
			ScrollStep:     defaultScrollStep,
			RowHeight:      g.RowHeight,
			HeaderHeight:   g.HeaderHeight,
			FooterHeight:   g.FooterHeight,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/patroscan.sock",
		},
		HTTP: HTTPConfig{
			Port: 3002,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document. A yaml.Node
	// accepts any shape, so KnownFields can't hide a second document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
//
// Flags pass pointers; each override is only applied if the pointer is non-nil.
// main.go decides which flags exist.
type FlagOverrides struct {
	ScanDriver    *string
	ScanInterface *string
	ScanEviction  *string

	InputDriver *string
	InputDevice *string
	SerialPort  *string

	DisplayDriver *string
	ButtonPin     *string
	LEDPin        *string

	IPCSocket *string
	HTTPPort  *int
	LogLevel  *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a "zero value").
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.ScanDriver != nil {
		cfg.Scan.Driver = *o.ScanDriver
	}
	if o.ScanInterface != nil {
		cfg.Scan.Interface = *o.ScanInterface
	}
	if o.ScanEviction != nil {
		cfg.Scan.Eviction = *o.ScanEviction
	}

	if o.InputDriver != nil {
		cfg.Input.Driver = *o.InputDriver
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.SerialPort != nil {
		cfg.Input.SerialPort = *o.SerialPort
	}

	if o.DisplayDriver != nil {
		cfg.Display.Driver = *o.DisplayDriver
	}
	if o.ButtonPin != nil {
		cfg.Button.Pin = *o.ButtonPin
		if *o.ButtonPin != "" {
			cfg.Button.Driver = "gpio"
		}
	}

	if o.LEDPin != nil {
		cfg.LED.Pin = *o.LEDPin
		if *o.LEDPin != "" {
			cfg.LED.Driver = "gpio"
		}
	}

	if o.IPCSocket != nil {
		cfg.IPC.SocketPath = *o.IPCSocket
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks field ranges and cross-field requirements.
// It is called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Scan
	switch c.Scan.Driver {
	case "nl80211", "demo":
	default:
		return fmt.Errorf("scan.driver must be %q or %q", "nl80211", "demo")
	}
	if c.Scan.Capacity <= 0 {
		return errors.New("scan.capacity must be > 0")
	}
	switch EvictionPolicy(c.Scan.Eviction) {
	case EvictionDrop, EvictionWeakest:
	default:
		return fmt.Errorf("scan.eviction must be %q or %q", EvictionDrop, EvictionWeakest)
	}
	if c.Scan.IntervalMS < 0 {
		return errors.New("scan.interval_ms must be >= 0")
	}
	if c.Scan.RetryBackoffMS < 0 {
		return errors.New("scan.retry_backoff_ms must be >= 0")
	}
	if c.Scan.ConnectTimeoutMS <= 0 {
		return errors.New("scan.connect_timeout_ms must be > 0")
	}

	// Input
	switch c.Input.Driver {
	case "none":
	case "evdev":
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty for the evdev driver")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
	case "ads1115":
		if c.Input.ADCChannel < 0 || c.Input.ADCChannel > 3 {
			return errors.New("input.adc_channel must be between 0 and 3")
		}
	case "serial":
		if c.Input.SerialPort == "" {
			return errors.New("input.serial_port must not be empty for the serial driver")
		}
		if c.Input.SerialBaud <= 0 {
			return errors.New("input.serial_baud must be > 0")
		}
	default:
		return fmt.Errorf("input.driver must be one of: none, evdev, ads1115, serial")
	}
	if c.Input.RawMin >= c.Input.RawMax {
		return errors.New("input.raw_min must be < input.raw_max")
	}
	if c.Input.AxisMax <= 0 {
		return errors.New("input.axis_max must be > 0")
	}
	if c.Input.Deadzone < 0 || c.Input.Deadzone >= c.Input.AxisMax {
		return errors.New("input.deadzone must be >= 0 and < input.axis_max")
	}

	// Button
	switch c.Button.Driver {
	case "none":
	case "gpio":
		if c.Button.Pin == "" {
			return errors.New("button.pin must not be empty for the gpio driver")
		}
	default:
		return fmt.Errorf("button.driver must be %q or %q", "none", "gpio")
	}
	if c.Button.DebounceMS < 0 {
		return errors.New("button.debounce_ms must be >= 0")
	}

	// LED
	switch c.LED.Driver {
	case "none":
	case "gpio":
		if c.LED.Pin == "" {
			return errors.New("led.pin must not be empty for the gpio driver")
		}
	default:
		return fmt.Errorf("led.driver must be %q or %q", "none", "gpio")
	}
	if c.LED.PeriodMS <= 0 {
		return errors.New("led.period_ms must be > 0")
	}

	// Display
	switch c.Display.Driver {
	case "none", "ssd1306":
	default:
		return fmt.Errorf("display.driver must be %q or %q", "none", "ssd1306")
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return errors.New("display.width and display.height must be > 0")
	}
	if c.Display.FrameHz <= 0 || c.Display.FrameHz > 240 {
		return errors.New("display.frame_hz must be between 1 and 240")
	}

	// Menu
	if c.Menu.CooldownFrames < 0 {
		return errors.New("menu.cooldown_frames must be >= 0")
	}
	if c.Menu.ScrollStep < 0 {
		return errors.New("menu.scroll_step must be >= 0")
	}
	if c.Menu.RowHeight <= 0 {
		return errors.New("menu.row_height must be > 0")
	}
	if c.Menu.HeaderHeight < 0 || c.Menu.FooterHeight < 0 {
		return errors.New("menu.header_height and menu.footer_height must be >= 0")
	}
	if c.ToGeometry().VisibleRows() <= 0 {
		return errors.New("menu: no row fits between header and footer")
	}

	// HTTP
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToGeometry converts the display and menu sections into a layout geometry.
func (c *Config) ToGeometry() Geometry {
	g := DefaultGeometry()
	g.Width = c.Display.Width
	g.Height = c.Display.Height
	g.RowHeight = c.Menu.RowHeight
	g.HeaderHeight = c.Menu.HeaderHeight
	g.FooterHeight = c.Menu.FooterHeight
	return g
}

// ToReducerConfig converts file config into the reducer's config.
func (c *Config) ToReducerConfig() ReducerConfig {
	g := c.ToGeometry()
	return ReducerConfig{
		Menu: MenuConfig{
			CooldownFrames: c.Menu.CooldownFrames,
			ScrollStep:     c.Menu.ScrollStep,
			RowHeight:      g.RowHeight,
			VisibleRows:    g.VisibleRows(),
		},
		ScanInterval: time.Duration(c.Scan.IntervalMS) * time.Millisecond,
		RetryBackoff: time.Duration(c.Scan.RetryBackoffMS) * time.Millisecond,
	}
}

// ToAxisCalibration converts the input section into the axis mapping.
func (c *Config) ToAxisCalibration() AxisCalibration {
	return AxisCalibration{
		RawMin:   c.Input.RawMin,
		RawMax:   c.Input.RawMax,
		AxisMax:  c.Input.AxisMax,
		Deadzone: c.Input.Deadzone,
		Invert:   c.Input.Invert,
	}
}

// ConnectTimeout is the per-request association timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Scan.ConnectTimeoutMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
