package main

import (
	"context"
	"sync/atomic"
)

// AxisCalibration maps a raw stick reading to a signed menu axis.
type AxisCalibration struct {
	RawMin, RawMax int
	AxisMax        int
	Deadzone       int
	Invert         bool
}

// Apply maps raw into [-AxisMax, AxisMax], inverts if configured, and zeroes
// values inside the deadzone.
func (c AxisCalibration) Apply(raw int) int {
	v := mapValue(raw, c.RawMin, c.RawMax, -c.AxisMax, c.AxisMax)
	if c.Invert {
		v = -v
	}
	return applyDeadzone(v, c.Deadzone)
}

// Center is the raw value that maps to zero before the deadzone.
func (c AxisCalibration) Center() int {
	return c.RawMin + (c.RawMax-c.RawMin)/2
}

// mapValue linearly maps v from [inMin, inMax] to [outMin, outMax] with integer
// truncation. v is clamped to the input range first.
func mapValue(v, inMin, inMax, outMin, outMax int) int {
	if inMax <= inMin {
		return outMin
	}
	v = max(inMin, min(v, inMax))
	return (v-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

func applyDeadzone(v, deadzone int) int {
	if v > deadzone || v < -deadzone {
		return v
	}
	return 0
}

// AxisSource provides the calibrated Y position of the stick.
//
// AxisY is sampled once per frame by the daemon loop and must not block.
type AxisSource interface {
	AxisY() int
}

// axisRunner is implemented by sources that need a reader goroutine.
// Run blocks until ctx is canceled or the device fails.
type axisRunner interface {
	AxisSource
	Run(ctx context.Context) error
	Close() error
}

// nullAxis is the stick of a device that has none.
type nullAxis struct{}

func (nullAxis) AxisY() int { return 0 }

// rawAxis holds the latest raw sample. Reader goroutines Store, the daemon Loads.
type rawAxis struct {
	cal AxisCalibration
	raw atomic.Int64
}

func newRawAxis(cal AxisCalibration) *rawAxis {
	a := &rawAxis{cal: cal}
	a.raw.Store(int64(cal.Center()))
	return a
}

func (a *rawAxis) Store(raw int) { a.raw.Store(int64(raw)) }

func (a *rawAxis) AxisY() int { return a.cal.Apply(int(a.raw.Load())) }

// sendConfirm emits a Confirm without blocking the reader; a full queue drops it.
func sendConfirm(events chan<- Event) bool {
	select {
	case events <- Confirm{}:
		return true
	default:
		return false
	}
}
