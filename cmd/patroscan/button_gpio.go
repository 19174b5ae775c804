package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// edgePin is the part of gpio.PinIO the button needs.
type edgePin interface {
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}

// gpioButton is an active-low confirm button with a pull-up.
type gpioButton struct {
	pin      edgePin
	debounce time.Duration
	events   chan<- Event
	logger   *slog.Logger

	// pollTimeout bounds each WaitForEdge so ctx cancellation is noticed.
	pollTimeout time.Duration
}

func openGPIOButton(cfg ButtonConfig, events chan<- Event, logger *slog.Logger) (*gpioButton, error) {
	p, err := openGPIO(cfg.Pin)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("configure button pin %s: %w", cfg.Pin, err)
	}
	return newGPIOButton(p, time.Duration(cfg.DebounceMS)*time.Millisecond, events, logger), nil
}

func newGPIOButton(p edgePin, debounce time.Duration, events chan<- Event, logger *slog.Logger) *gpioButton {
	return &gpioButton{
		pin:         p,
		debounce:    debounce,
		events:      events,
		logger:      logger,
		pollTimeout: 500 * time.Millisecond,
	}
}

// Run emits Confirm on each debounced press until ctx is canceled.
func (b *gpioButton) Run(ctx context.Context) error {
	var last time.Time
	for ctx.Err() == nil {
		if !b.pin.WaitForEdge(b.pollTimeout) {
			continue
		}
		now := time.Now()
		if now.Sub(last) < b.debounce {
			continue
		}
		// Bounces produce a falling edge on release too; only a held-low pin counts.
		if b.pin.Read() != gpio.Low {
			continue
		}
		last = now
		if !sendConfirm(b.events) {
			b.logger.Warn("event queue full, dropping confirm", "source", "gpio")
		}
	}
	return nil
}
