package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03

	// Relative axis codes
	REL_DIAL  = 0x07
	REL_WHEEL = 0x08

	// Absolute axis codes
	ABS_X = 0x00
	ABS_Y = 0x01

	// Gamepad buttons
	BTN_SOUTH  = 0x130
	BTN_THUMBL = 0x13d
	KEY_ENTER  = 28
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Menu and scan defaults
const (
	defaultFrameHz          = 30   // UI frame rate (Hz)
	defaultCooldownFrames   = 10   // Frames of ignored stick input after a cursor move
	defaultScrollStep       = 1.0  // Scroll approach speed (pixels per frame)
	defaultScanIntervalMS   = 5000 // Pause between a finished round and the next start (ms)
	defaultRetryBackoffMS   = 5000 // Pause after a failed scan start (ms)
	defaultConnectTimeoutMS = 15000

	defaultTitle = "Patro Wi-fi Scanner"

	// Discovery channel between the radio driver and the daemon loop.
	defaultDiscoveryQueue = 64
)

// Axis calibration defaults (12-bit ADC mapped to -5..5 with a +-2 deadzone)
const (
	defaultRawMin   = 0
	defaultRawMax   = 4095
	defaultAxisMax  = 5
	defaultDeadzone = 2

	defaultButtonDebounceMS = 50
	defaultLEDPeriodMS      = 169 // Heartbeat half-period (ms)
)
