package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdlayher/wifi"
)

// nl80211Driver drives a station interface through the kernel's nl80211 API.
//
// Authentication details are not decoded from scan results, so every sighting
// carries AuthUnknown and the footer shows "Locked".
type nl80211Driver struct {
	client *wifi.Client
	ifi    *wifi.Interface
	out    chan<- DiscoveryFound
	logger *slog.Logger

	// mu serializes netlink requests between scan and connect goroutines.
	mu sync.Mutex

	active atomic.Bool
	wg     sync.WaitGroup

	// pollInterval is how often Connect checks the association state.
	pollInterval time.Duration
}

func openNL80211(ifName string, out chan<- DiscoveryFound, logger *slog.Logger) (*nl80211Driver, error) {
	c, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("open nl80211: %w", err)
	}
	ifis, err := c.Interfaces()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("list wifi interfaces: %w", err)
	}

	var ifi *wifi.Interface
	for _, cand := range ifis {
		if cand.Type != wifi.InterfaceTypeStation {
			continue
		}
		if ifName == "" || cand.Name == ifName {
			ifi = cand
			break
		}
	}
	if ifi == nil {
		c.Close()
		if ifName != "" {
			return nil, fmt.Errorf("no station interface named %q", ifName)
		}
		return nil, errors.New("no wifi station interface found")
	}

	logger.Info("nl80211 interface selected", "interface", ifi.Name, "mac", ifi.HardwareAddr.String())

	return &nl80211Driver{
		client:       c,
		ifi:          ifi,
		out:          out,
		logger:       logger,
		pollInterval: 250 * time.Millisecond,
	}, nil
}

// Start launches a trigger-scan/dump cycle in the background.
func (d *nl80211Driver) Start(ctx context.Context) error {
	if !d.active.CompareAndSwap(false, true) {
		return errScanBusy
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.active.Store(false)

		bss, err := d.scan(ctx)
		if err != nil {
			d.logger.Warn("nl80211 scan failed", "interface", d.ifi.Name, "error", err)
			return
		}
		for _, b := range bss {
			ev, ok := discoveryFromBSS(b)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case d.out <- ev:
			}
		}
	}()
	return nil
}

func (d *nl80211Driver) scan(ctx context.Context) ([]*wifi.BSS, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.client.Scan(ctx, d.ifi); err != nil {
		return nil, fmt.Errorf("trigger scan: %w", err)
	}
	bss, err := d.client.AccessPoints(d.ifi)
	if err != nil {
		return nil, fmt.Errorf("dump scan results: %w", err)
	}
	return bss, nil
}

// discoveryFromBSS converts a scan result. Signal arrives in mBm.
func discoveryFromBSS(b *wifi.BSS) (DiscoveryFound, bool) {
	addr, ok := HardwareAddrFrom(b.BSSID)
	if !ok {
		return DiscoveryFound{}, false
	}
	return DiscoveryFound{
		Name:         b.SSID,
		HardwareAddr: addr,
		SignalDBM:    int(b.Signal / 100),
		Auth:         AuthUnknown,
	}, true
}

func (d *nl80211Driver) Active() bool { return d.active.Load() }

// Connect associates by SSID, with WPA-PSK when a passphrase is given, and waits
// until the kernel reports the association or ctx expires.
func (d *nl80211Driver) Connect(ctx context.Context, req ConnectRequest) error {
	if needsPassphrase(req.Auth) && req.Passphrase == "" {
		return fmt.Errorf("connect %q: %w", req.Name, errNoCredentials)
	}

	d.mu.Lock()
	var err error
	if req.Passphrase != "" {
		err = d.client.ConnectWPAPSK(d.ifi, req.Name, req.Passphrase)
	} else {
		err = d.client.Connect(d.ifi, req.Name)
	}
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("connect %q: %w", req.Name, err)
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect %q: %w", req.Name, ctx.Err())
		case <-ticker.C:
			d.mu.Lock()
			bss, err := d.client.BSS(d.ifi)
			d.mu.Unlock()
			if err != nil {
				// Not associated yet.
				continue
			}
			if bss.Status == wifi.BSSStatusAssociated && bss.SSID == req.Name {
				return nil
			}
		}
	}
}

func (d *nl80211Driver) Close() error {
	d.wg.Wait()
	return d.client.Close()
}
