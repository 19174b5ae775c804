package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
// In this codebase, those are radio driver calls and snapshot replies.
type Command interface {
	commandMarker()
	String() string
}

// CmdStartScan asks the radio driver to begin a scan round.
type CmdStartScan struct{}

func (CmdStartScan) commandMarker() {}
func (CmdStartScan) String() string { return "CmdStartScan()" }

// CmdConnect asks the radio driver to associate with a network.
// It runs off the daemon goroutine; the outcome comes back as ConnectResult.
type CmdConnect struct {
	Name         string
	HardwareAddr HardwareAddr
	Auth         AuthMode
}

func (CmdConnect) commandMarker() {}
func (c CmdConnect) String() string {
	return fmt.Sprintf("CmdConnect(name=%q, bssid=%s, auth=%s)", c.Name, c.HardwareAddr, c.Auth)
}

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
