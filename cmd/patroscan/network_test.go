package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHardwareAddr_Text(t *testing.T) {
	a, err := ParseHardwareAddr("02:00:00:00:00:2A")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != addr(0x2a) {
		t.Fatalf("parsed %v", a)
	}
	if got := a.String(); got != "02:00:00:00:00:2a" {
		t.Fatalf("String() = %q", got)
	}

	for _, bad := range []string{"", "zz:00:00:00:00:00", "00:00:5e:00:53:01:02:03"} {
		if _, err := ParseHardwareAddr(bad); err == nil {
			t.Errorf("ParseHardwareAddr(%q) accepted", bad)
		}
	}
}

func TestNetworkRecord_JSON(t *testing.T) {
	rec := NetworkRecord{Name: "Lab", HardwareAddr: addr(9), SignalDBM: -89, Auth: AuthWPA3SAEAES}
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":"Lab","hardware_addr":"02:00:00:00:00:09","signal_dbm":-89,"auth":"wpa3_sae_aes"}`
	if string(raw) != want {
		t.Fatalf("got %s, want %s", raw, want)
	}

	var back NetworkRecord
	if err := json.Unmarshal(raw, &back); err != nil || back != rec {
		t.Fatalf("unmarshal = %+v, %v", back, err)
	}
	if err := json.Unmarshal([]byte(`{"auth":"wep"}`), &back); err == nil {
		t.Fatal("unknown auth mode accepted")
	}
}

func TestAuthMode_Labels(t *testing.T) {
	if got := AuthUnknown.Label(); got != "Locked" {
		t.Errorf("unknown label = %q", got)
	}
	if got := AuthMode(42).String(); got != "unknown" {
		t.Errorf("out of range String() = %q", got)
	}
	if m, err := ParseAuthMode(" WPA2_Mixed "); err != nil || m != AuthWPA2Mixed {
		t.Errorf("ParseAuthMode = %v, %v", m, err)
	}
}

func TestTruncateName_KeepsRunes(t *testing.T) {
	long := strings.Repeat("é", maxNameBytes) // two bytes each
	got := truncateName(long)
	if len(got) > maxNameBytes || len(got)%2 != 0 {
		t.Fatalf("truncateName split a rune: %d bytes", len(got))
	}
	if truncateName("short") != "short" {
		t.Fatal("short name changed")
	}
}
