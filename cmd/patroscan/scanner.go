package main

import (
	"context"
	"errors"
)

// ScanDriver is the radio.
//
// Start begins a round and returns once the radio accepted it; sightings are
// delivered asynchronously on the discoveries channel the driver was built
// with. Active reports whether the round is still running and is cleared only
// after the last sighting of the round was sent. Connect blocks until the
// association succeeded, failed, or ctx expired.
type ScanDriver interface {
	Start(ctx context.Context) error
	Active() bool
	Connect(ctx context.Context, req ConnectRequest) error
	Close() error
}

// ConnectRequest is what a driver needs to associate with one network.
type ConnectRequest struct {
	Name         string
	HardwareAddr HardwareAddr
	Auth         AuthMode
	Passphrase   string
}

var (
	// errScanBusy is returned by Start while a round is still running.
	errScanBusy = errors.New("scan already in progress")

	// errNoCredentials is returned by Connect for a protected network without a passphrase.
	errNoCredentials = errors.New("no passphrase configured for network")
)

// needsPassphrase reports whether auth rules out an open association.
func needsPassphrase(auth AuthMode) bool {
	return auth != AuthOpen && auth != AuthUnknown
}
