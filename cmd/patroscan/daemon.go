package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop - Reducer-driven "Daemon Brain"
// ============================================================================
//
// Rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands + broadcasts.
//   - The daemon loop is the only goroutine that touches DaemonState.
//   - Driver results are turned into Events and fed back into the reducer.
//   - Discoveries are drained once per frame, right after sampling driver.Active(),
//     so a finished round is fully ingested before the tick that ranks it.
//
// ============================================================================

// DaemonConfig wires the loop to its collaborators. Only Driver is required.
type DaemonConfig struct {
	Reducer ReducerConfig
	FrameHz int

	Driver ScanDriver
	Axis   AxisSource

	// Canvas is nil when running headless.
	Canvas   Canvas
	Geometry Geometry
	Title    string

	Credentials    map[string]string
	ConnectTimeout time.Duration

	// Broadcasts receives reducer broadcasts for the websocket. May be nil.
	Broadcasts chan<- StateBroadcast

	Metrics *Metrics

	// Heartbeat is advanced every frame when set.
	Heartbeat Heartbeat
}

// runDaemon is the main daemon loop that:
//   - Receives Events from IPC, buttons and the websocket
//   - Emits Tick events once per frame
//   - Reduces events into (state, commands, broadcasts)
//   - Executes commands and feeds observations back into the reducer
//   - Renders the menu when something visible changed
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	discoveries <-chan DiscoveryFound,
	state *DaemonState,
	cfg DaemonConfig,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	frameHz := cfg.FrameHz
	if frameHz <= 0 {
		frameHz = defaultFrameHz
	}
	ticker := time.NewTicker(time.Second / time.Duration(frameHz))
	defer ticker.Stop()

	axis := cfg.Axis
	if axis == nil {
		axis = nullAxis{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	// Results of effects that run off this goroutine (connect).
	async := make(chan Event, 8)
	env := effectEnv{
		driver:         cfg.Driver,
		credentials:    cfg.Credentials,
		connectTimeout: cfg.ConnectTimeout,
		async:          async,
	}

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	var eventQueue []Event
	var cmdQueue []Command

	// The first frame is always drawn.
	dirty := true
	renderFailing := false

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bs []StateBroadcast) {
		if cfg.Broadcasts == nil {
			return
		}
		for _, b := range bs {
			select {
			case cfg.Broadcasts <- b:
			default:
				metrics.Dropped("broadcasts")
			}
		}
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			metrics.ObserveEvent(ev)
			rr := Reduce(state, ev, cfg.Reducer)
			if rr.State != nil {
				state = rr.State
			}
			metrics.ObserveResult(rr)
			logResult(logger, ev, rr)

			cmdQueue = append(cmdQueue, rr.Commands...)
			for _, b := range rr.Broadcasts {
				if _, ok := b.(BroadcastMenuChanged); ok {
					dirty = true
				}
			}
			publish(rr.Broadcasts)
		}
	}

	// Execute all queued commands, enqueuing observation events.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			logger.Debug("executing command", "command", cmd.String())
			runEffect(ctx, env, cmd, logger, enqueueEvent)

			// Reduce observations promptly so follow-up commands run in order.
			flushEvents()
		}
	}

	render := func() {
		if !dirty || cfg.Canvas == nil {
			return
		}
		start := time.Now()
		err := Execute(cfg.Canvas, Layout(state.View(cfg.Title), cfg.Geometry))
		metrics.ObserveFrame(time.Since(start).Seconds())
		if err != nil {
			if !renderFailing {
				logger.Warn("display present failed", "error", err)
			}
			renderFailing = true
			return
		}
		if renderFailing {
			logger.Info("display present recovered")
		}
		renderFailing = false
		dirty = false
	}

	// Main loop
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case ev := <-async:
			enqueueEvent(ev)
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			active := cfg.Driver != nil && cfg.Driver.Active()
		drain:
			for {
				select {
				case d := <-discoveries:
					enqueueEvent(d)
				default:
					break drain
				}
			}
			enqueueEvent(Tick{Now: now, AxisY: axis.AxisY(), ScanActive: active})
			flushEvents()
			flushCommands()
			render()
			if cfg.Heartbeat != nil {
				cfg.Heartbeat.Beat(now)
			}
		}
	}
}

// logResult logs the reducer outcomes worth a line.
func logResult(logger *slog.Logger, ev Event, rr ReduceResult) {
	if te, ok := ev.(TimedEvent); ok {
		ev = te.Event
	}
	if rr.Ingested {
		if d, ok := ev.(DiscoveryFound); ok {
			switch rr.Ingest {
			case IngestFiltered:
				logger.Debug("discovery filtered", "bssid", d.HardwareAddr.String())
			case IngestDropped:
				logger.Debug("discovery dropped at capacity", "ssid", d.Name, "bssid", d.HardwareAddr.String())
			}
		}
	}
	for _, b := range rr.Broadcasts {
		if rc, ok := b.(BroadcastRoundCompleted); ok {
			logger.Info("scan round completed", "round", rc.Round, "networks", rc.Networks, "duration", rc.Duration)
		}
	}
	switch e := ev.(type) {
	case ScanStarted:
		logger.Debug("scan round started")
	case Confirm:
		if len(rr.Commands) == 0 {
			logger.Debug("confirm ignored", "networks", rr.State.Networks.Len(), "connect_pending", rr.State.Connect.Pending)
		}
	case ScanStartFailed:
		logger.Debug("scan retry armed", "next_scan_at", rr.State.Scan.NextScanAt, "error", e.Err)
	}
}
