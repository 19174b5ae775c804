package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// ads1115FullScale is the stick supply voltage; readings are rescaled to the
// 12-bit range the calibration expects.
const ads1115FullScale = 3300 * physic.MilliVolt

var ads1115Channels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// ads1115Axis reads the stick through an ADS1115 on I2C.
type ads1115Axis struct {
	*rawAxis

	bus    i2c.BusCloser
	pin    ads1x15.PinADC
	period time.Duration
	logger *slog.Logger
}

func newADS1115Axis(cfg InputConfig, cal AxisCalibration, frameHz int, logger *slog.Logger) (*ads1115Axis, error) {
	bus, err := openI2C(cfg.I2CBus)
	if err != nil {
		return nil, err
	}
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("ads1115 init: %w", err)
	}
	pin, err := adc.PinForChannel(ads1115Channels[cfg.ADCChannel], ads1115FullScale, 200*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("ads1115 channel %d: %w", cfg.ADCChannel, err)
	}
	return &ads1115Axis{
		rawAxis: newRawAxis(cal),
		bus:     bus,
		pin:     pin,
		period:  time.Second / time.Duration(frameHz),
		logger:  logger,
	}, nil
}

// Run samples the channel once per frame until ctx is canceled.
// A failed conversion keeps the previous sample.
func (a *ads1115Axis) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s, err := a.pin.Read()
			if err != nil {
				a.logger.Debug("ads1115 read failed", "error", err)
				continue
			}
			a.Store(voltsToRaw12(s.V))
		}
	}
}

func (a *ads1115Axis) Close() error {
	_ = a.pin.Halt()
	return a.bus.Close()
}

// voltsToRaw12 rescales a reading to 0..4095 of the full-scale voltage.
func voltsToRaw12(v physic.ElectricPotential) int {
	raw := int64(v) * defaultRawMax / int64(ads1115FullScale)
	return int(max(0, min(raw, defaultRawMax)))
}
