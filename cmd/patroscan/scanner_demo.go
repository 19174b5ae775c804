package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// demoNetwork is one simulated access point.
type demoNetwork struct {
	name    string
	addr    HardwareAddr
	baseDBM int
	auth    AuthMode
}

var demoNeighbourhood = []demoNetwork{
	{"HomeNet", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}, -42, AuthWPA2AES},
	{"HomeNet", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}, -63, AuthWPA2AES},
	{"CoffeeShop", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x03}, -71, AuthOpen},
	{"Neighbour-5G", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x04}, -58, AuthWPA3SAEAES},
	{"PrinterDirect", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x05}, -77, AuthWPA2Mixed},
	{"OldRouter", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x06}, -84, AuthWPATKIP},
	{"Guest", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x07}, -66, AuthWPA3WPA2AES},
	{"", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x08}, -55, AuthWPA2AES}, // hidden SSID
	{"Lab", HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x09}, -89, AuthUnknown},
}

// demoDriver simulates a radio: each round reports the neighbourhood with
// jittered signal, plus a few repeated sightings.
type demoDriver struct {
	out      chan<- DiscoveryFound
	networks []demoNetwork

	// sightingDelay spaces sightings out like a real channel sweep.
	sightingDelay time.Duration
	connectDelay  time.Duration

	mu  sync.Mutex
	rng *rand.Rand

	active atomic.Bool
	wg     sync.WaitGroup
}

func newDemoDriver(seed int64, out chan<- DiscoveryFound) *demoDriver {
	return &demoDriver{
		out:           out,
		networks:      demoNeighbourhood,
		sightingDelay: 40 * time.Millisecond,
		connectDelay:  800 * time.Millisecond,
		rng:           rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

func (d *demoDriver) Start(ctx context.Context) error {
	if !d.active.CompareAndSwap(false, true) {
		return errScanBusy
	}
	round := d.plan()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.active.Store(false)
		for _, ev := range round {
			if d.sightingDelay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(d.sightingDelay):
				}
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

// plan draws one round of sightings.
func (d *demoDriver) plan() []DiscoveryFound {
	d.mu.Lock()
	defer d.mu.Unlock()

	round := make([]DiscoveryFound, 0, len(d.networks)+3)
	for _, n := range d.networks {
		round = append(round, d.sighting(n))
	}
	// Repeat sightings: same address, fresh signal.
	for i := 0; i < 3 && len(d.networks) > 0; i++ {
		round = append(round, d.sighting(d.networks[d.rng.IntN(len(d.networks))]))
	}
	d.rng.Shuffle(len(round), func(i, j int) { round[i], round[j] = round[j], round[i] })
	return round
}

func (d *demoDriver) sighting(n demoNetwork) DiscoveryFound {
	return DiscoveryFound{
		Name:         n.name,
		HardwareAddr: n.addr,
		SignalDBM:    n.baseDBM + d.rng.IntN(7) - 3,
		Auth:         n.auth,
	}
}

func (d *demoDriver) Active() bool { return d.active.Load() }

// Connect pretends to associate. Protected networks need a passphrase.
func (d *demoDriver) Connect(ctx context.Context, req ConnectRequest) error {
	if needsPassphrase(req.Auth) && req.Passphrase == "" {
		return fmt.Errorf("connect %q: %w", req.Name, errNoCredentials)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("connect %q: %w", req.Name, ctx.Err())
	case <-time.After(d.connectDelay):
		return nil
	}
}

// Close waits for a running round to finish.
func (d *demoDriver) Close() error {
	d.wg.Wait()
	return nil
}
