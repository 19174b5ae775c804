package main

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Heartbeat is advanced by the daemon once per frame. A stalled loop stops it.
type Heartbeat interface {
	Beat(now time.Time)
}

// outPin is the part of gpio.PinOut the LED needs.
type outPin interface {
	Out(l gpio.Level) error
}

// heartbeatLED blinks a status LED with a fixed half-period while the daemon
// loop is alive. Only the daemon goroutine calls Beat.
type heartbeatLED struct {
	pin    outPin
	period time.Duration

	next    time.Time
	lit     bool
	failing bool
	onError func(error)
}

func openHeartbeatLED(cfg LEDConfig, onError func(error)) (*heartbeatLED, error) {
	p, err := openGPIO(cfg.Pin)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configure led pin %s: %w", cfg.Pin, err)
	}
	return newHeartbeatLED(p, time.Duration(cfg.PeriodMS)*time.Millisecond, onError), nil
}

func newHeartbeatLED(p outPin, period time.Duration, onError func(error)) *heartbeatLED {
	return &heartbeatLED{pin: p, period: period, onError: onError}
}

// Beat toggles the LED once per elapsed half-period. A late frame toggles once
// and re-arms from now instead of catching up.
func (h *heartbeatLED) Beat(now time.Time) {
	if now.Before(h.next) {
		return
	}
	h.next = now.Add(h.period)
	h.lit = !h.lit

	err := h.pin.Out(gpio.Level(h.lit))
	switch {
	case err != nil && !h.failing:
		h.failing = true
		if h.onError != nil {
			h.onError(err)
		}
	case err == nil:
		h.failing = false
	}
}

// Off turns the LED off on shutdown.
func (h *heartbeatLED) Off() error {
	h.lit = false
	return h.pin.Out(gpio.Low)
}
