package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// serialAxis reads a microcontroller bridge that streams raw ADC readings as
// "<y> <x> <btn>\n" lines. btn is 1 while pressed; its rising edge emits Confirm.
type serialAxis struct {
	*rawAxis

	port   io.ReadCloser
	events chan<- Event
	logger *slog.Logger

	pressed bool
}

func openSerialAxis(cfg InputConfig, cal AxisCalibration, events chan<- Event, logger *slog.Logger) (*serialAxis, error) {
	port, err := serial.Open(cfg.SerialPort, &serial.Mode{
		BaudRate: cfg.SerialBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.SerialPort, err)
	}
	return newSerialAxis(port, cal, events, logger), nil
}

func newSerialAxis(port io.ReadCloser, cal AxisCalibration, events chan<- Event, logger *slog.Logger) *serialAxis {
	return &serialAxis{
		rawAxis: newRawAxis(cal),
		port:    port,
		events:  events,
		logger:  logger,
	}
}

// Run consumes lines until ctx is canceled or the port fails.
func (a *serialAxis) Run(ctx context.Context) error {
	// Closing the port unblocks the scanner.
	stop := context.AfterFunc(ctx, func() { _ = a.port.Close() })
	defer stop()

	sc := bufio.NewScanner(a.port)
	for sc.Scan() {
		y, btn, err := parseStickLine(sc.Text())
		if err != nil {
			a.logger.Debug("serial stick: bad line", "line", sc.Text(), "error", err)
			continue
		}
		a.Store(y)
		if btn && !a.pressed {
			if !sendConfirm(a.events) {
				a.logger.Warn("event queue full, dropping confirm", "source", "serial")
			}
		}
		a.pressed = btn
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("serial stick read: %w", err)
	}
	return io.EOF
}

func (a *serialAxis) Close() error { return a.port.Close() }

// parseStickLine parses "<y> <x> <btn>". The x reading is accepted but unused.
func parseStickLine(line string) (y int, pressed bool, err error) {
	f := strings.Fields(line)
	if len(f) != 3 {
		return 0, false, fmt.Errorf("want 3 fields, got %d", len(f))
	}
	y, err = strconv.Atoi(f[0])
	if err != nil {
		return 0, false, fmt.Errorf("y: %w", err)
	}
	if _, err := strconv.Atoi(f[1]); err != nil {
		return 0, false, fmt.Errorf("x: %w", err)
	}
	switch f[2] {
	case "0":
		pressed = false
	case "1":
		pressed = true
	default:
		return 0, false, fmt.Errorf("btn: %q is not 0 or 1", f[2])
	}
	return y, pressed, nil
}
