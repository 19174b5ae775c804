package main

import (
	"strings"
	"testing"
)

func TestMarshalEvent_Wire(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{MoveCursor{Delta: 3}, `{"type":"move_cursor","data":{"delta":3}}`},
		{Confirm{}, `{"type":"confirm"}`},
		{Rescan{}, `{"type":"rescan"}`},
	}
	for _, tt := range tests {
		raw, err := MarshalEvent(tt.ev)
		if err != nil {
			t.Fatalf("MarshalEvent(%#v): %v", tt.ev, err)
		}
		if string(raw) != tt.want {
			t.Errorf("MarshalEvent(%#v) = %s, want %s", tt.ev, raw, tt.want)
		}
		back, err := UnmarshalEvent(raw)
		if err != nil || back != tt.ev {
			t.Errorf("UnmarshalEvent(%s) = %#v, %v", raw, back, err)
		}
	}
}

func TestMarshalEvent_RejectsInternalEvents(t *testing.T) {
	for _, ev := range []Event{Tick{}, DiscoveryFound{}, ScanStarted{}} {
		if _, err := MarshalEvent(ev); err == nil {
			t.Errorf("MarshalEvent(%T) accepted", ev)
		}
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	tests := map[string]string{
		`{`:                               "unmarshal envelope",
		`{"type":"scan_started"}`:         "unknown event type",
		`{"type":"move_cursor","data":1}`: "unmarshal MoveCursor",
	}
	for in, want := range tests {
		_, err := UnmarshalEvent([]byte(in))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("UnmarshalEvent(%s) = %v, want error containing %q", in, err, want)
		}
	}
}
