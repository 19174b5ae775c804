package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

func defaultCalibration() AxisCalibration {
	return AxisCalibration{RawMin: 0, RawMax: 4095, AxisMax: 5, Deadzone: 2}
}

func TestMapValue(t *testing.T) {
	tests := []struct {
		v, inMin, inMax, outMin, outMax int
		want                            int
	}{
		{0, 0, 4095, -5, 5, -5},
		{4095, 0, 4095, -5, 5, 5},
		{2048, 0, 4095, -5, 5, 0},
		{1000, 0, 4095, -5, 5, -3},
		{-100, 0, 4095, -5, 5, -5}, // clamped low
		{9999, 0, 4095, -5, 5, 5},  // clamped high
		{5, 10, 10, -5, 5, -5},     // empty input range
	}
	for _, tt := range tests {
		if got := mapValue(tt.v, tt.inMin, tt.inMax, tt.outMin, tt.outMax); got != tt.want {
			t.Errorf("mapValue(%d, %d, %d, %d, %d) = %d, want %d",
				tt.v, tt.inMin, tt.inMax, tt.outMin, tt.outMax, got, tt.want)
		}
	}
}

func TestAxisCalibration_Apply(t *testing.T) {
	cal := defaultCalibration()
	tests := []struct {
		raw  int
		want int
	}{
		{0, -5},
		{600, -4},
		{1200, -3},
		{1700, 0}, // -1 inside deadzone
		{cal.Center(), 0},
		{2900, 0}, // +2 inside deadzone
		{3300, 3},
		{4095, 5},
	}
	for _, tt := range tests {
		if got := cal.Apply(tt.raw); got != tt.want {
			t.Errorf("Apply(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}

	cal.Invert = true
	if got := cal.Apply(0); got != 5 {
		t.Errorf("inverted Apply(0) = %d, want 5", got)
	}
}

func TestRawAxis_StartsCentered(t *testing.T) {
	a := newRawAxis(defaultCalibration())
	if got := a.AxisY(); got != 0 {
		t.Fatalf("AxisY() before any sample = %d, want 0", got)
	}
	a.Store(0)
	if got := a.AxisY(); got != -5 {
		t.Fatalf("AxisY() = %d, want -5", got)
	}
}

func TestParseStickLine(t *testing.T) {
	y, pressed, err := parseStickLine("  1234 2048 1 ")
	if err != nil || y != 1234 || !pressed {
		t.Fatalf("parseStickLine = %d, %v, %v", y, pressed, err)
	}
	for _, bad := range []string{"", "1 2", "a 2 0", "1 b 0", "1 2 2", "1 2 0 9"} {
		if _, _, err := parseStickLine(bad); err == nil {
			t.Errorf("parseStickLine(%q) accepted", bad)
		}
	}
}

func TestSerialAxis_Run(t *testing.T) {
	pr, pw := io.Pipe()
	events := make(chan Event, 4)
	a := newSerialAxis(pr, defaultCalibration(), events, testLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(context.Background()) }()

	lines := "0 2048 0\ngarbage\n0 2048 1\n0 2048 1\n4095 2048 0\n4095 2048 1\n"
	go func() {
		_, _ = io.WriteString(pw, lines)
		_ = pw.Close()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("Run() = %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return at end of stream")
	}

	// Two rising edges, one held press.
	if got := len(events); got != 2 {
		t.Fatalf("got %d confirms, want 2", got)
	}
	if got := a.AxisY(); got != 5 {
		t.Fatalf("AxisY() = %d, want 5", got)
	}
}

func TestSerialAxis_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	a := newSerialAxis(pr, defaultCalibration(), make(chan Event, 1), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func encodeInputEvent(t *testing.T, ev inputEvent) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeInputEvent(t *testing.T) {
	want := inputEvent{Sec: 12, Usec: 34, Type: EV_ABS, Code: ABS_Y, Value: -321}
	raw := encodeInputEvent(t, want)
	if len(raw) != 24 {
		t.Fatalf("input_event is %d bytes, want 24", len(raw))
	}

	got, err := decodeInputEvent(bytes.NewReader(nil), raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("decoded %+v, want %+v", got, want)
	}

	if _, err := decodeInputEvent(bytes.NewReader(nil), raw[:10]); err == nil {
		t.Fatal("short record decoded")
	}
}

func TestEvdevAxis_Handle(t *testing.T) {
	events := make(chan Event, 8)
	cfg := DefaultConfig().Input
	a := newEvdevAxis(cfg, defaultCalibration(), events, testLogger())

	a.handle(inputEvent{Type: EV_ABS, Code: ABS_X, Value: 0})
	if got := a.AxisY(); got != 0 {
		t.Fatalf("ABS_X moved the menu axis to %d", got)
	}
	a.handle(inputEvent{Type: EV_ABS, Code: ABS_Y, Value: 4095})
	if got := a.AxisY(); got != 5 {
		t.Fatalf("AxisY() = %d, want 5", got)
	}

	a.handle(inputEvent{Type: EV_KEY, Code: BTN_SOUTH, Value: evValueRelease})
	a.handle(inputEvent{Type: EV_KEY, Code: BTN_SOUTH, Value: evValueRepeat})
	a.handle(inputEvent{Type: EV_KEY, Code: KEY_ENTER, Value: evValuePress})
	if len(events) != 0 {
		t.Fatalf("non-press or other key emitted %d events", len(events))
	}
	a.handle(inputEvent{Type: EV_KEY, Code: BTN_SOUTH, Value: evValuePress})
	if ev := <-events; ev != (Confirm{}) {
		t.Fatalf("got %#v, want Confirm", ev)
	}

	a.handle(inputEvent{Type: EV_REL, Code: REL_WHEEL, Value: 1})
	a.handle(inputEvent{Type: EV_REL, Code: REL_DIAL, Value: 0})
	if len(events) != 0 {
		t.Fatalf("wheel or zero detent emitted %d events", len(events))
	}
	a.handle(inputEvent{Type: EV_REL, Code: REL_DIAL, Value: -1})
	if ev := <-events; ev != (MoveCursor{Delta: -1}) {
		t.Fatalf("got %#v, want MoveCursor{-1}", ev)
	}
}

func TestEvdevAxis_OpenFailsOnMissingDevice(t *testing.T) {
	cfg := DefaultConfig().Input
	cfg.Devices = []string{t.TempDir() + "/no-such-event"}
	a := newEvdevAxis(cfg, defaultCalibration(), make(chan Event, 1), testLogger())
	if err := a.Open(); err == nil {
		t.Fatal("Open succeeded on a missing device")
	}
}

func TestVoltsToRaw12(t *testing.T) {
	tests := []struct {
		v    physic.ElectricPotential
		want int
	}{
		{0, 0},
		{-50 * physic.MilliVolt, 0},
		{1650 * physic.MilliVolt, 2047},
		{3300 * physic.MilliVolt, 4095},
		{5 * physic.Volt, 4095},
	}
	for _, tt := range tests {
		if got := voltsToRaw12(tt.v); got != tt.want {
			t.Errorf("voltsToRaw12(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestSendConfirm_DropsWhenFull(t *testing.T) {
	events := make(chan Event, 1)
	if !sendConfirm(events) {
		t.Fatal("first confirm dropped")
	}
	if sendConfirm(events) {
		t.Fatal("confirm queued on a full channel")
	}
}
