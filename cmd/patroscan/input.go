package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// decodeInputEvent parses one little-endian input_event record.
func decodeInputEvent(r *bytes.Reader, buf []byte) (inputEvent, error) {
	r.Reset(buf)
	var ev inputEvent
	err := binary.Read(r, binary.LittleEndian, &ev)
	return ev, err
}

// evdevAxis turns a gamepad/joystick event device into the menu stick.
//
// EV_ABS on axisCode updates the raw sample. EV_KEY press on confirmKey emits
// Confirm. EV_REL on dialCode (a rotary encoder) emits MoveCursor.
type evdevAxis struct {
	*rawAxis

	paths      []string
	axisCode   uint16
	confirmKey uint16
	dialCode   uint16
	dial       *rotaryState

	events chan<- Event
	logger *slog.Logger

	files []*os.File
}

func newEvdevAxis(cfg InputConfig, cal AxisCalibration, events chan<- Event, logger *slog.Logger) *evdevAxis {
	return &evdevAxis{
		rawAxis:    newRawAxis(cal),
		paths:      cfg.Devices,
		axisCode:   uint16(cfg.AxisCode),
		confirmKey: uint16(cfg.ConfirmKey),
		dialCode:   uint16(cfg.DialCode),
		dial:       newRotaryState(),
		events:     events,
		logger:     logger,
	}
}

// Open opens every configured device. It fails if any device can't be opened.
func (a *evdevAxis) Open() error {
	for _, p := range a.paths {
		f, err := os.Open(p)
		if err != nil {
			a.Close()
			return fmt.Errorf("open input device %s: %w", p, err)
		}
		a.files = append(a.files, f)
	}
	return nil
}

func (a *evdevAxis) Close() error {
	var errs []error
	for _, f := range a.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.files = nil
	return errors.Join(errs...)
}

// Run reads all devices with a single epoll goroutine until ctx is canceled.
// The reader goroutine has exited by the time Run returns.
func (a *evdevAxis) Run(ctx context.Context) error {
	if len(a.files) == 0 {
		if err := a.Open(); err != nil {
			return err
		}
	}

	readCtx, stop := context.WithCancel(ctx)
	defer stop()

	evCh := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go func() { readErr <- readInputEventsEpoll(readCtx, a.files, evCh, a.logger) }()

	for {
		select {
		case <-ctx.Done():
			stop()
			return <-readErr
		case err := <-readErr:
			if err == nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)
		case ev := <-evCh:
			a.handle(ev)
		}
	}
}

// handle applies one input event.
func (a *evdevAxis) handle(ev inputEvent) {
	switch ev.Type {
	case EV_ABS:
		if ev.Code == a.axisCode {
			a.Store(int(ev.Value))
		}
	case EV_KEY:
		if ev.Code == a.confirmKey && ev.Value == evValuePress {
			if !sendConfirm(a.events) {
				a.logger.Warn("event queue full, dropping confirm", "source", "evdev")
			}
		}
	case EV_REL:
		if ev.Code != a.dialCode || ev.Value == 0 {
			return
		}
		select {
		case a.events <- MoveCursor{Delta: a.dial.rows(int(ev.Value))}:
		default:
			a.logger.Warn("event queue full, dropping dial step", "source", "evdev")
		}
	}
}
