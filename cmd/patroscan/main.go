package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("patroscan v%s\n", version)
	fmt.Println("Wi-Fi scanner menu daemon for small OLED devices")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  patroscan [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Scans for Wi-Fi networks every few seconds, keeps a de-duplicated list")
	fmt.Println("  ranked by signal, and drives a joystick menu on an SSD1306 OLED.")
	fmt.Println("  Pressing confirm associates with the selected network.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -scan-driver string")
	fmt.Println("        Radio driver: nl80211|demo (default \"demo\")")
	fmt.Println()
	fmt.Println("  -interface string")
	fmt.Println("        nl80211 station interface (default: first station found)")
	fmt.Println()
	fmt.Println("  -eviction string")
	fmt.Println("        Full list policy: drop|weakest (default \"drop\")")
	fmt.Println()
	fmt.Println("  -input-driver string")
	fmt.Println("        Stick source: none|evdev|ads1115|serial (default \"none\")")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        evdev device for the stick (e.g. /dev/input/event0)")
	fmt.Println()
	fmt.Println("  -serial-port string")
	fmt.Println("        Serial port of a stick bridge (e.g. /dev/ttyACM0)")
	fmt.Println()
	fmt.Println("  -display string")
	fmt.Println("        Display driver: none|ssd1306 (default \"none\")")
	fmt.Println()
	fmt.Println("  -button-pin string")
	fmt.Println("        GPIO pin of the confirm button, e.g. GPIO17 (enables the gpio button)")
	fmt.Println()
	fmt.Println("  -led-pin string")
	fmt.Println("        GPIO pin of a status LED that blinks while the daemon runs")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", DefaultConfig().IPC.SocketPath)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        HTTP port for /ws, /metrics and /screen.png, 0 disables (default %d)\n", DefaultConfig().HTTP.Port)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Headless demo, watch it with menu_listen or /screen.png")
	fmt.Println("  patroscan")
	fmt.Println()
	fmt.Println("  # Real radio and OLED, stick on an ADS1115, button on GPIO17")
	fmt.Println("  patroscan -scan-driver nl80211 -display ssd1306 -input-driver ads1115 -button-pin GPIO17")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - nl80211 scanning and connecting need CAP_NET_ADMIN (run as root)")
	fmt.Println("  - I2C/GPIO access needs the i2c and gpio groups")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath    = flag.String("config", "", "YAML config file")
		scanDriver    = flag.String("scan-driver", "", "Radio driver: nl80211|demo")
		scanInterface = flag.String("interface", "", "nl80211 station interface")
		scanEviction  = flag.String("eviction", "", "Full list policy: drop|weakest")
		inputDriver   = flag.String("input-driver", "", "Stick source: none|evdev|ads1115|serial")
		inputDevice   = flag.String("input-device", "", "evdev device for the stick")
		serialPort    = flag.String("serial-port", "", "Serial port of a stick bridge")
		displayDriver = flag.String("display", "", "Display driver: none|ssd1306")
		buttonPin     = flag.String("button-pin", "", "GPIO pin of the confirm button")
		ledPin        = flag.String("led-pin", "", "GPIO pin of the heartbeat LED")
		ipcSocket     = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpPort      = flag.Int("http-port", 0, "HTTP port, 0 disables")
		logLevelStr   = flag.String("log-level", "", "Log level: error, warn, info, debug")
		_             = flag.Bool("version", false, "Print version and exit")
		_             = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	pick := func(name string, s *string) *string {
		if set[name] {
			return s
		}
		return nil
	}
	overrides := FlagOverrides{
		ScanDriver:    pick("scan-driver", scanDriver),
		ScanInterface: pick("interface", scanInterface),
		ScanEviction:  pick("eviction", scanEviction),
		InputDriver:   pick("input-driver", inputDriver),
		InputDevice:   pick("input-device", inputDevice),
		SerialPort:    pick("serial-port", serialPort),
		DisplayDriver: pick("display", displayDriver),
		ButtonPin:     pick("button-pin", buttonPin),
		LEDPin:        pick("led-pin", ledPin),
		IPCSocket:     pick("ipc-socket", ipcSocket),
		LogLevel:      pick("log-level", logLevelStr),
	}
	if set["http-port"] {
		overrides.HTTPPort = httpPort
	}
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("patroscan stopped", "error", err)
		os.Exit(1)
	}
}

// run opens the hardware, starts every goroutine and blocks until shutdown.
// Errors returned here are start-up errors; nothing after start-up is fatal.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Central event bus: IPC, buttons and the websocket feed the daemon.
	events := make(chan Event, 64)
	discoveries := make(chan DiscoveryFound, defaultDiscoveryQueue)
	broadcasts := make(chan StateBroadcast, 128)

	driver, err := openScanDriver(cfg.Scan, discoveries, logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	axis, err := openAxis(cfg, events, logger)
	if err != nil {
		return err
	}

	canvas, closeDisplay, err := openCanvas(cfg.Display)
	if err != nil {
		return err
	}
	defer closeDisplay()

	var btn *gpioButton
	if cfg.Button.Driver == "gpio" {
		if btn, err = openGPIOButton(cfg.Button, events, logger); err != nil {
			return err
		}
	}

	var led *heartbeatLED
	if cfg.LED.Driver == "gpio" {
		led, err = openHeartbeatLED(cfg.LED, func(err error) {
			logger.Warn("heartbeat led write failed", "pin", cfg.LED.Pin, "error", err)
		})
		if err != nil {
			return err
		}
		defer led.Off()
	}

	metrics := NewMetrics()
	ws := NewServer(logger, events, ServerConfig{})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		runDaemon(gctx, events, discoveries, NewDaemonState(cfg.Scan.Capacity, EvictionPolicy(cfg.Scan.Eviction)), DaemonConfig{
			Reducer:        cfg.ToReducerConfig(),
			FrameHz:        cfg.Display.FrameHz,
			Driver:         driver,
			Axis:           axis,
			Canvas:         canvas,
			Geometry:       cfg.ToGeometry(),
			Title:          cfg.Display.Title,
			Credentials:    cfg.Credentials.Networks,
			ConnectTimeout: cfg.ConnectTimeout(),
			Broadcasts:     broadcasts,
			Metrics:        metrics,
			Heartbeat:      heartbeat(led),
		}, logger)
		return nil
	})

	g.Go(func() error {
		ws.Hub().Run(gctx)
		return nil
	})
	g.Go(func() error {
		RunBroadcaster(gctx, ws.Hub(), broadcasts, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, metrics, logger)
	})

	if cfg.HTTP.Port > 0 {
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, newHTTPMux(ws, metrics, canvas.Snapshot), logger)
		})
	}

	if r, ok := axis.(axisRunner); ok {
		g.Go(func() error {
			defer r.Close()
			// A failed stick leaves the menu usable over IPC and the button.
			if err := r.Run(gctx); err != nil {
				logger.Error("stick input stopped", "driver", cfg.Input.Driver, "error", err)
			}
			return nil
		})
	}

	if btn != nil {
		g.Go(func() error { return btn.Run(gctx) })
	}

	logger.Info("listening",
		"scan_driver", cfg.Scan.Driver,
		"input_driver", cfg.Input.Driver,
		"display", cfg.Display.Driver,
		"button", cfg.Button.Driver,
		"led", cfg.LED.Driver,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"frame_hz", cfg.Display.FrameHz)
	logger.Debug("configuration",
		"capacity", cfg.Scan.Capacity,
		"eviction", cfg.Scan.Eviction,
		"scan_interval_ms", cfg.Scan.IntervalMS,
		"retry_backoff_ms", cfg.Scan.RetryBackoffMS,
		"connect_timeout_ms", cfg.Scan.ConnectTimeoutMS,
		"cooldown_frames", cfg.Menu.CooldownFrames,
		"scroll_step", cfg.Menu.ScrollStep,
		"visible_rows", cfg.ToGeometry().VisibleRows(),
		"credentials", len(cfg.Credentials.Networks))

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// heartbeat keeps a nil *heartbeatLED from becoming a non-nil interface.
func heartbeat(led *heartbeatLED) Heartbeat {
	if led == nil {
		return nil
	}
	return led
}

func openScanDriver(cfg ScanConfig, out chan<- DiscoveryFound, logger *slog.Logger) (ScanDriver, error) {
	switch cfg.Driver {
	case "nl80211":
		return openNL80211(cfg.Interface, out, logger)
	default:
		return newDemoDriver(cfg.DemoSeed, out), nil
	}
}

func openAxis(cfg Config, events chan<- Event, logger *slog.Logger) (AxisSource, error) {
	cal := cfg.ToAxisCalibration()
	switch cfg.Input.Driver {
	case "evdev":
		a := newEvdevAxis(cfg.Input, cal, events, logger)
		if err := a.Open(); err != nil {
			return nil, fmt.Errorf("%w (tip: run as root or add user to 'input' group)", err)
		}
		return a, nil
	case "ads1115":
		return newADS1115Axis(cfg.Input, cal, cfg.Display.FrameHz, logger)
	case "serial":
		return openSerialAxis(cfg.Input, cal, events, logger)
	default:
		return nullAxis{}, nil
	}
}

// openCanvas returns the raster canvas. Headless runs draw into an in-memory
// image so /screen.png still works.
func openCanvas(cfg DisplayConfig) (*imageCanvas, func(), error) {
	face, err := newMonoFace(defaultFontSize)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Driver == "ssd1306" {
		oled, err := openSSD1306(cfg)
		if err != nil {
			return nil, nil, err
		}
		return newImageCanvas(oled.Framebuffer(), face, oled.Present), func() { _ = oled.Close() }, nil
	}

	var fb draw.Image = image.NewGray(image.Rect(0, 0, cfg.Width, cfg.Height))
	return newImageCanvas(fb, face, nil), func() {}, nil
}
