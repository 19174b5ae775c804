package main

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// oledDisplay owns the SSD1306 and its I2C bus.
type oledDisplay struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
	fb  *image1bit.VerticalLSB
}

func openSSD1306(cfg DisplayConfig) (*oledDisplay, error) {
	bus, err := openI2C(cfg.I2CBus)
	if err != nil {
		return nil, err
	}
	opts := ssd1306.DefaultOpts
	opts.W = cfg.Width
	opts.H = cfg.Height
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("ssd1306 init: %w", err)
	}
	return &oledDisplay{
		bus: bus,
		dev: dev,
		fb:  image1bit.NewVerticalLSB(dev.Bounds()),
	}, nil
}

// Framebuffer is the 1-bit image the canvas draws into.
func (d *oledDisplay) Framebuffer() *image1bit.VerticalLSB { return d.fb }

// Present pushes a full frame to the panel.
func (d *oledDisplay) Present(img image.Image) error {
	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("ssd1306 draw: %w", err)
	}
	return nil
}

func (d *oledDisplay) Close() error {
	_ = d.dev.Halt()
	return d.bus.Close()
}
