package main

import "time"

// ScanPhase is the lifecycle phase of the radio.
type ScanPhase int

const (
	ScanIdle ScanPhase = iota
	ScanScanning
)

func (p ScanPhase) String() string {
	if p == ScanScanning {
		return "scanning"
	}
	return "idle"
}

// ScanRoundState tracks the background scan lifecycle.
type ScanRoundState struct {
	Phase ScanPhase

	// NextScanAt is the earliest time the next round may start.
	// The zero value means "immediately".
	NextScanAt time.Time

	// StartPending is set while a CmdStartScan is in flight so a second tick
	// can't issue another one.
	StartPending bool

	// Round counts completed rounds.
	Round uint64

	StartedAt time.Time
}

// ConnectState remembers the last connect request and its outcome.
type ConnectState struct {
	Pending      bool      `json:"pending"`
	Name         string    `json:"name,omitempty"`
	LastOK       bool      `json:"last_ok"`
	LastError    string    `json:"last_error,omitempty"`
	LastResultAt time.Time `json:"last_result_at"`
}

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine touches it. Other goroutines talk to it through
// events and get copies back through StateSnapshot.
type DaemonState struct {
	Networks  *DiscoverySet
	Selection SelectionState
	Scan      ScanRoundState
	Connect   ConnectState
}

// NewDaemonState returns a state with an empty discovery set.
func NewDaemonState(capacity int, policy EvictionPolicy) *DaemonState {
	return &DaemonState{
		Networks: NewDiscoverySet(capacity, policy),
	}
}

// StateSnapshot is a copy of the state that is safe to hand to other goroutines.
type StateSnapshot struct {
	Records    []NetworkRecord `json:"records"`
	Selection  SelectionState  `json:"selection"`
	Selected   int             `json:"selected"`
	HasSelect  bool            `json:"has_selection"`
	Scanning   bool            `json:"scanning"`
	Round      uint64          `json:"round"`
	NextScanAt time.Time       `json:"next_scan_at"`
	Connect    ConnectState    `json:"connect"`
}

// Snapshot copies the state.
func (s *DaemonState) Snapshot() StateSnapshot {
	recs := s.Networks.Records()
	sel, ok := s.Selection.Selected(len(recs))
	return StateSnapshot{
		Records:    recs,
		Selection:  s.Selection,
		Selected:   sel,
		HasSelect:  ok,
		Scanning:   s.Scan.Phase == ScanScanning,
		Round:      s.Scan.Round,
		NextScanAt: s.Scan.NextScanAt,
		Connect:    s.Connect,
	}
}

// View builds the renderer input for the current state.
func (s *DaemonState) View(title string) MenuView {
	return MenuView{
		Title:     title,
		Records:   s.Networks.Records(),
		Selection: s.Selection,
		Scanning:  s.Scan.Phase == ScanScanning,
	}
}
