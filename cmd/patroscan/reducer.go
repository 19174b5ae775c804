package main

import "time"

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (ticks, discoveries, user actions, driver results)
//   - Commands: side effects requested by the reducer (scan start, connect)
//   - Broadcasts: state changes published to observers (websocket clients)
//   - Reduce(): computes next state + commands, without performing I/O
//
// The daemon loop is responsible for executing Commands and feeding results back as Events.

// ReducerConfig holds everything Reduce needs besides state and event.
type ReducerConfig struct {
	Menu MenuConfig

	// ScanInterval is the pause between a completed round and the next start.
	ScanInterval time.Duration

	// RetryBackoff is the pause after the driver refused to start a scan.
	RetryBackoff time.Duration
}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a reducer-emitted notification for external observers.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastMenuChanged is emitted when anything visible in the menu changed.
type BroadcastMenuChanged struct {
	Snapshot StateSnapshot
	At       time.Time
}

func (BroadcastMenuChanged) broadcastMarker() {}

// BroadcastRoundCompleted is emitted once per ranked round.
type BroadcastRoundCompleted struct {
	Round    uint64
	Networks int
	Duration time.Duration
	At       time.Time
}

func (BroadcastRoundCompleted) broadcastMarker() {}

// BroadcastConnectResult mirrors ConnectResult for observers.
type BroadcastConnectResult struct {
	Name  string
	OK    bool
	Error string
	At    time.Time
}

func (BroadcastConnectResult) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state plus Commands and Broadcasts.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast

	// Ingested is set when the event was a discovery; Ingest says what happened to it.
	Ingested bool
	Ingest   IngestResult
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = NewDaemonState(0, EvictionDrop)
	}

	at := time.Time{}
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
		at = te.At
	}
	if at.IsZero() {
		at = time.Now()
	}

	rr := ReduceResult{State: s}
	before := menuKey(s)

	switch ev := e.(type) {
	case Tick:
		reduceTick(s, ev, cfg, &rr)

	case DiscoveryFound:
		rr.Ingested = true
		if s.Scan.Phase != ScanScanning {
			// Late sighting from a round that has already been ranked.
			rr.Ingest = IngestFiltered
			break
		}
		rr.Ingest = s.Networks.Ingest(ev)
		s.Selection.Clamp(s.Networks.Len())

	case ScanStarted:
		s.Scan.StartPending = false
		s.Scan.Phase = ScanScanning
		s.Scan.StartedAt = ev.At
		s.Networks.BeginRound()

	case ScanStartFailed:
		s.Scan.StartPending = false
		s.Scan.Phase = ScanIdle
		s.Scan.NextScanAt = ev.At.Add(cfg.RetryBackoff)

	case MoveCursor:
		s.Selection.Move(ev.Delta, s.Networks.Len())

	case Confirm:
		idx, ok := s.Selection.Selected(s.Networks.Len())
		if !ok || s.Connect.Pending {
			break
		}
		rec := s.Networks.At(idx)
		s.Connect.Pending = true
		s.Connect.Name = rec.Name
		rr.Commands = append(rr.Commands, CmdConnect{
			Name:         rec.Name,
			HardwareAddr: rec.HardwareAddr,
			Auth:         rec.Auth,
		})

	case ConnectResult:
		s.Connect.Pending = false
		s.Connect.Name = ev.Name
		s.Connect.LastOK = ev.Err == nil
		s.Connect.LastError = ""
		if ev.Err != nil {
			s.Connect.LastError = ev.Err.Error()
		}
		s.Connect.LastResultAt = ev.At
		rr.Broadcasts = append(rr.Broadcasts, BroadcastConnectResult{
			Name:  ev.Name,
			OK:    s.Connect.LastOK,
			Error: s.Connect.LastError,
			At:    ev.At,
		})

	case Rescan:
		if s.Scan.Phase == ScanIdle && !s.Scan.StartPending {
			s.Scan.NextScanAt = at
		}

	case RequestStateSnapshot:
		rr.Commands = append(rr.Commands, CmdPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.Snapshot(),
		})

	default:
		// Unknown event type: no-op.
	}

	if menuKey(s) != before {
		rr.Broadcasts = append(rr.Broadcasts, BroadcastMenuChanged{Snapshot: s.Snapshot(), At: at})
	}

	return rr
}

// reduceTick drives the scan lifecycle and advances the menu by one frame.
func reduceTick(s *DaemonState, ev Tick, cfg ReducerConfig, rr *ReduceResult) {
	switch {
	case s.Scan.Phase == ScanScanning && !ev.ScanActive:
		// Round finished: rank once and invalidate the previous selection.
		s.Networks.Rank()
		s.Selection.Reset()
		s.Scan.Phase = ScanIdle
		s.Scan.Round++
		s.Scan.NextScanAt = ev.Now.Add(cfg.ScanInterval)
		rr.Broadcasts = append(rr.Broadcasts, BroadcastRoundCompleted{
			Round:    s.Scan.Round,
			Networks: s.Networks.Len(),
			Duration: ev.Now.Sub(s.Scan.StartedAt),
			At:       ev.Now,
		})

	case s.Scan.Phase == ScanIdle && !s.Scan.StartPending && !ev.Now.Before(s.Scan.NextScanAt):
		s.Scan.StartPending = true
		rr.Commands = append(rr.Commands, CmdStartScan{})
	}

	s.Selection.Step(ev.AxisY, s.Networks.Len(), cfg.Menu)
}

// menuFingerprint captures what the menu shows, to detect visible changes cheaply.
type menuFingerprint struct {
	size     int
	cursor   int
	scroll   float64
	scanning bool
	round    uint64
	version  uint64
}

func menuKey(s *DaemonState) menuFingerprint {
	return menuFingerprint{
		size:     s.Networks.Len(),
		cursor:   s.Selection.Cursor,
		scroll:   s.Selection.ScrollOffset,
		scanning: s.Scan.Phase == ScanScanning,
		round:    s.Scan.Round,
		version:  s.Networks.Version(),
	}
}
