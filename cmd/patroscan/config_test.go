package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "patroscan.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.ToGeometry(); got != DefaultGeometry() {
		t.Fatalf("default geometry = %+v, want %+v", got, DefaultGeometry())
	}
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	p := writeConfig(t, `
scan:
  driver: nl80211
  interface: wlan0
  eviction: weakest
  interval_ms: 8000
input:
  driver: serial
  serial_port: /dev/ttyACM0
credentials:
  networks:
    HomeNet: s3cret
logging:
  level: debug
`)

	cfg, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := DefaultConfig()
	want.Scan.Driver = "nl80211"
	want.Scan.Interface = "wlan0"
	want.Scan.Eviction = "weakest"
	want.Scan.IntervalMS = 8000
	want.Input.Driver = "serial"
	want.Input.SerialPort = "/dev/ttyACM0"
	want.Credentials.Networks = map[string]string{"HomeNet": "s3cret"}
	want.Logging.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "scan:\n  drvier: demo\n", "drvier"},
		{"trailing document", "scan:\n  driver: demo\n---\nscan:\n  driver: nl80211\n", "trailing"},
		{"trailing unknown document", "scan:\n  driver: demo\n---\nleds: 3\n", "trailing"},
		{"trailing scalar", "scan:\n  driver: demo\n---\nhello\n", "trailing"},
		{"bad type", "scan:\n  capacity: many\n", "decode config yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadConfigFile(""); err == nil {
		t.Fatal("empty path accepted")
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestLoadConfigFile_TrailingCommentsAllowed(t *testing.T) {
	cfg, err := LoadConfigFile(writeConfig(t, "scan:\n  driver: nl80211\n# end of file\n\n"))
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Scan.Driver != "nl80211" {
		t.Fatalf("scan driver = %q", cfg.Scan.Driver)
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	driver := "nl80211"
	pin := "GPIO17"
	led := "GPIO27"
	port := 0
	dev := "/dev/input/event3"

	FlagOverrides{
		ScanDriver:  &driver,
		ButtonPin:   &pin,
		LEDPin:      &led,
		HTTPPort:    &port,
		InputDevice: &dev,
	}.Apply(&cfg)

	if cfg.Scan.Driver != "nl80211" {
		t.Errorf("scan driver = %q", cfg.Scan.Driver)
	}
	if cfg.Button.Driver != "gpio" || cfg.Button.Pin != "GPIO17" {
		t.Errorf("button = %+v, want gpio on GPIO17", cfg.Button)
	}
	if cfg.LED.Driver != "gpio" || cfg.LED.Pin != "GPIO27" || cfg.LED.PeriodMS != defaultLEDPeriodMS {
		t.Errorf("led = %+v, want gpio on GPIO27", cfg.LED)
	}
	if cfg.HTTP.Port != 0 {
		t.Errorf("explicit zero port not applied: %d", cfg.HTTP.Port)
	}
	if diff := cmp.Diff([]string{"/dev/input/event3"}, cfg.Input.Devices); diff != "" {
		t.Errorf("devices (-want +got):\n%s", diff)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("untouched level changed to %q", cfg.Logging.Level)
	}

	FlagOverrides{}.Apply(nil)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"scan driver", func(c *Config) { c.Scan.Driver = "wext" }, "scan.driver"},
		{"capacity", func(c *Config) { c.Scan.Capacity = 0 }, "scan.capacity"},
		{"eviction", func(c *Config) { c.Scan.Eviction = "lru" }, "scan.eviction"},
		{"connect timeout", func(c *Config) { c.Scan.ConnectTimeoutMS = 0 }, "connect_timeout_ms"},
		{"evdev without devices", func(c *Config) { c.Input.Driver = "evdev"; c.Input.Devices = nil }, "input.devices"},
		{"adc channel", func(c *Config) { c.Input.Driver = "ads1115"; c.Input.ADCChannel = 4 }, "adc_channel"},
		{"serial port", func(c *Config) { c.Input.Driver = "serial" }, "serial_port"},
		{"raw range", func(c *Config) { c.Input.RawMin = 10; c.Input.RawMax = 10 }, "raw_min"},
		{"deadzone", func(c *Config) { c.Input.Deadzone = 5 }, "deadzone"},
		{"gpio without pin", func(c *Config) { c.Button.Driver = "gpio" }, "button.pin"},
		{"led driver", func(c *Config) { c.LED.Driver = "pwm" }, "led.driver"},
		{"led without pin", func(c *Config) { c.LED.Driver = "gpio" }, "led.pin"},
		{"led period", func(c *Config) { c.LED.PeriodMS = 0 }, "led.period_ms"},
		{"display driver", func(c *Config) { c.Display.Driver = "hdmi" }, "display.driver"},
		{"frame rate", func(c *Config) { c.Display.FrameHz = 0 }, "frame_hz"},
		{"no rows fit", func(c *Config) { c.Menu.HeaderHeight = 50 }, "no row fits"},
		{"http port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.IntervalMS = 1500
	cfg.Scan.RetryBackoffMS = 250
	cfg.Scan.ConnectTimeoutMS = 9000

	want := ReducerConfig{
		Menu: MenuConfig{
			CooldownFrames: defaultCooldownFrames,
			ScrollStep:     defaultScrollStep,
			RowHeight:      8,
			VisibleRows:    4,
		},
		ScanInterval: 1500 * time.Millisecond,
		RetryBackoff: 250 * time.Millisecond,
	}
	if diff := cmp.Diff(want, cfg.ToReducerConfig()); diff != "" {
		t.Fatalf("reducer config (-want +got):\n%s", diff)
	}
	if got := cfg.ConnectTimeout(); got != 9*time.Second {
		t.Fatalf("ConnectTimeout() = %v", got)
	}

	cal := cfg.ToAxisCalibration()
	if cal != (AxisCalibration{RawMin: 0, RawMax: 4095, AxisMax: 5, Deadzone: 2, Invert: true}) {
		t.Fatalf("calibration = %+v", cal)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"":               "",
		"/etc/x.yaml":    "/etc/x.yaml",
		"~":              home,
		"~/patro.yaml":   filepath.Join(home, "patro.yaml"),
		"~other/x.yaml":  "~other/x.yaml",
		"relative/x.yml": "relative/x.yml",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLogLevel_ConfigNames(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"error":   LogLevelError,
		"WARN":    LogLevelWarn,
		"warning": LogLevelWarn,
		"info":    LogLevelInfo,
		"Debug":   LogLevelDebug,
	} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Error("parseLogLevel(trace) accepted")
	}
}
