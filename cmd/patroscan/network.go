package main

import (
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// maxNameBytes is the longest SSID the radio can report (802.11 limit).
const maxNameBytes = 32

// HardwareAddr is a 6-byte BSSID. It is the unique key of a NetworkRecord.
type HardwareAddr [6]byte

// ParseHardwareAddr parses "aa:bb:cc:dd:ee:ff" (or any form net.ParseMAC accepts
// that yields exactly 6 bytes).
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	var a HardwareAddr
	mac, err := net.ParseMAC(s)
	if err != nil {
		return a, fmt.Errorf("parse hardware address: %w", err)
	}
	if len(mac) != len(a) {
		return a, fmt.Errorf("parse hardware address: want 6 bytes, got %d", len(mac))
	}
	copy(a[:], mac)
	return a, nil
}

// HardwareAddrFrom copies a net.HardwareAddr. Addresses that are not 6 bytes long
// yield the zero address and false.
func HardwareAddrFrom(mac net.HardwareAddr) (HardwareAddr, bool) {
	var a HardwareAddr
	if len(mac) != len(a) {
		return a, false
	}
	copy(a[:], mac)
	return a, true
}

func (a HardwareAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// MarshalText lets HardwareAddr appear as a string in JSON payloads.
func (a HardwareAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *HardwareAddr) UnmarshalText(b []byte) error {
	parsed, err := ParseHardwareAddr(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AuthMode is the security scheme advertised by a network.
type AuthMode int

const (
	AuthUnknown AuthMode = iota
	AuthOpen
	AuthWPATKIP
	AuthWPA2AES
	AuthWPA2Mixed
	AuthWPA3SAEAES
	AuthWPA3WPA2AES
)

var authModeNames = map[AuthMode]string{
	AuthUnknown:     "unknown",
	AuthOpen:        "open",
	AuthWPATKIP:     "wpa_tkip",
	AuthWPA2AES:     "wpa2_aes",
	AuthWPA2Mixed:   "wpa2_mixed",
	AuthWPA3SAEAES:  "wpa3_sae_aes",
	AuthWPA3WPA2AES: "wpa3_wpa2_aes",
}

var authModeLabels = map[AuthMode]string{
	AuthOpen:        "Open",
	AuthWPATKIP:     "WPA TKIP",
	AuthWPA2AES:     "WPA2 AES",
	AuthWPA2Mixed:   "WPA2 Mixed",
	AuthWPA3SAEAES:  "WPA3 SAE",
	AuthWPA3WPA2AES: "WPA3/WPA2",
}

// String returns the stable identifier used in config and on the wire.
func (m AuthMode) String() string {
	if s, ok := authModeNames[m]; ok {
		return s
	}
	return authModeNames[AuthUnknown]
}

// Label is the human-readable text shown in the menu footer.
// Unknown and unmapped codes render as "Locked".
func (m AuthMode) Label() string {
	if s, ok := authModeLabels[m]; ok {
		return s
	}
	return "Locked"
}

// ParseAuthMode is the inverse of String. Matching is case-insensitive.
func ParseAuthMode(s string) (AuthMode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for m, name := range authModeNames {
		if name == key {
			return m, nil
		}
	}
	return AuthUnknown, fmt.Errorf("invalid auth mode: %q", s)
}

func (m AuthMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *AuthMode) UnmarshalText(b []byte) error {
	parsed, err := ParseAuthMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// NetworkRecord is one discovered network as shown in the menu.
type NetworkRecord struct {
	Name         string       `json:"name"`
	HardwareAddr HardwareAddr `json:"hardware_addr"`
	SignalDBM    int          `json:"signal_dbm"`
	Auth         AuthMode     `json:"auth"`
}

// truncateName clips s to maxNameBytes without splitting a UTF-8 sequence.
func truncateName(s string) string {
	if len(s) <= maxNameBytes {
		return s
	}
	cut := maxNameBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
