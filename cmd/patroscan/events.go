package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the input to the reducer.
// It can be a user Action, a Tick, a discovery from the radio, or an effect result.
type Event interface {
	eventMarker()
}

// TimedEvent attaches the daemon's receive time to an event from outside the loop.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop once per UI frame.
//
// AxisY and ScanActive are sampled by the loop right before the tick is reduced
// so the reducer itself never touches hardware.
type Tick struct {
	Now        time.Time
	AxisY      int
	ScanActive bool
}

func (Tick) eventMarker() {}

// DiscoveryFound is one sighting of a network during a scan round.
// Auth may be AuthUnknown when the driver can't classify the network.
type DiscoveryFound struct {
	Name         string
	HardwareAddr HardwareAddr
	SignalDBM    int
	Auth         AuthMode
}

func (DiscoveryFound) eventMarker() {}

// ScanStarted is emitted after the driver accepted a scan request.
type ScanStarted struct {
	At time.Time
}

func (ScanStarted) eventMarker() {}

// ScanStartFailed is emitted when the driver refused to start a scan.
type ScanStartFailed struct {
	Err error
	At  time.Time
}

func (ScanStartFailed) eventMarker() {}

// ConnectResult reports the outcome of a CmdConnect. Err is nil on success.
type ConnectResult struct {
	Name         string
	HardwareAddr HardwareAddr
	Err          error
	Elapsed      time.Duration
	At           time.Time
}

func (ConnectResult) eventMarker() {}

// RequestStateSnapshot asks the daemon for a coherent copy of its state.
// The reply is delivered by the effects layer, never by the reducer.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// Actions (IPC / remote control)
// ============================================================================

// MoveCursor moves the selection by Delta rows, bypassing the stick debounce.
type MoveCursor struct {
	Delta int `json:"delta"`
}

func (MoveCursor) eventMarker() {}

// Confirm is the rising edge of the confirm button.
type Confirm struct{}

func (Confirm) eventMarker() {}

// Rescan asks for the next scan round to start as soon as the radio is idle.
type Rescan struct{}

func (Rescan) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps events for JSON serialization with a type discriminator.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// Only remote-control actions can travel over the wire.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "move_cursor":
		var a MoveCursor
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal MoveCursor: %w", err)
		}
		return a, nil

	case "confirm":
		return Confirm{}, nil

	case "rescan":
		return Rescan{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// eventName returns the wire type of a remote action, or "" for events that
// never cross the socket.
func eventName(e Event) string {
	switch e.(type) {
	case MoveCursor:
		return "move_cursor"
	case Confirm:
		return "confirm"
	case Rescan:
		return "rescan"
	}
	return ""
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator.
func MarshalEvent(e Event) ([]byte, error) {
	env := EventEnvelope{Type: eventName(e)}
	if env.Type == "" {
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	if mc, ok := e.(MoveCursor); ok {
		data, err := json.Marshal(mc)
		if err != nil {
			return nil, fmt.Errorf("marshal MoveCursor: %w", err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}
