package main

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Unix(1700000000, 0).UTC()

func testReducerConfig() ReducerConfig {
	return ReducerConfig{
		Menu:         testMenu(),
		ScanInterval: 5 * time.Second,
		RetryBackoff: 2 * time.Second,
	}
}

func hasBroadcast[T StateBroadcast](bs []StateBroadcast) (T, bool) {
	for _, b := range bs {
		if v, ok := b.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func onlyCommand[T Command](t *testing.T, rr ReduceResult) T {
	t.Helper()
	if len(rr.Commands) != 1 {
		t.Fatalf("got %d commands (%v), want 1", len(rr.Commands), rr.Commands)
	}
	c, ok := rr.Commands[0].(T)
	if !ok {
		t.Fatalf("command is %T", rr.Commands[0])
	}
	return c
}

// startedRound drives a fresh state into the scanning phase.
func startedRound(t *testing.T, cfg ReducerConfig) *DaemonState {
	t.Helper()
	s := NewDaemonState(5, EvictionDrop)
	rr := Reduce(s, Tick{Now: t0}, cfg)
	onlyCommand[CmdStartScan](t, rr)
	rr = Reduce(rr.State, ScanStarted{At: t0}, cfg)
	return rr.State
}

func TestReduce_FirstTickStartsScan(t *testing.T) {
	cfg := testReducerConfig()
	s := NewDaemonState(5, EvictionDrop)

	rr := Reduce(s, Tick{Now: t0}, cfg)
	onlyCommand[CmdStartScan](t, rr)
	if !rr.State.Scan.StartPending {
		t.Fatal("StartPending not set")
	}

	// A second tick while the start is in flight must not issue another one.
	rr = Reduce(rr.State, Tick{Now: t0.Add(time.Second)}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("second tick issued %v", rr.Commands)
	}
}

func TestReduce_RoundLifecycle(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	if s.Scan.Phase != ScanScanning {
		t.Fatalf("phase = %v, want scanning", s.Scan.Phase)
	}

	for _, d := range []DiscoveryFound{
		sighting("A", 1, -40),
		sighting("B", 2, -65),
		sighting("A", 1, -55),
		sighting("D", 4, -30),
	} {
		rr := Reduce(s, d, cfg)
		if !rr.Ingested {
			t.Fatalf("discovery %v not ingested", d)
		}
		s = rr.State
	}

	// Insertion order while the round is running.
	if diff := cmp.Diff([]string{"A", "B", "D"}, names(s.Networks.Records())); diff != "" {
		t.Fatalf("unranked (-want +got):\n%s", diff)
	}

	rr := Reduce(s, Tick{Now: t0.Add(time.Second), ScanActive: true}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("active tick issued %v", rr.Commands)
	}

	end := t0.Add(3 * time.Second)
	rr = Reduce(rr.State, Tick{Now: end, ScanActive: false}, cfg)
	s = rr.State

	if diff := cmp.Diff([]string{"D", "A", "B"}, names(s.Networks.Records())); diff != "" {
		t.Fatalf("ranked (-want +got):\n%s", diff)
	}
	rc, ok := hasBroadcast[BroadcastRoundCompleted](rr.Broadcasts)
	if !ok {
		t.Fatal("no round_completed broadcast")
	}
	want := BroadcastRoundCompleted{Round: 1, Networks: 3, Duration: 3 * time.Second, At: end}
	if diff := cmp.Diff(want, rc); diff != "" {
		t.Fatalf("round completed (-want +got):\n%s", diff)
	}
	if _, ok := hasBroadcast[BroadcastMenuChanged](rr.Broadcasts); !ok {
		t.Fatal("ranking did not broadcast menu_changed")
	}
	if s.Scan.Phase != ScanIdle || !s.Scan.NextScanAt.Equal(end.Add(cfg.ScanInterval)) {
		t.Fatalf("scan state after round = %+v", s.Scan)
	}

	// Idle until the interval elapses.
	rr = Reduce(s, Tick{Now: end.Add(cfg.ScanInterval - time.Millisecond)}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("early tick issued %v", rr.Commands)
	}
	rr = Reduce(rr.State, Tick{Now: end.Add(cfg.ScanInterval)}, cfg)
	onlyCommand[CmdStartScan](t, rr)
}

func TestReduce_RankResetsSelection(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	for i := range 5 {
		s = Reduce(s, sighting("n", byte(i+1), -50-i), cfg).State
	}
	s = Reduce(s, MoveCursor{Delta: 4}, cfg).State
	s.Selection.ScrollOffset = 8

	s = Reduce(s, Tick{Now: t0.Add(time.Second)}, cfg).State

	if s.Selection.Cursor != 0 {
		t.Fatalf("Cursor = %d after ranking, want 0", s.Selection.Cursor)
	}
	if s.Selection.ScrollOffset != 0 {
		t.Fatalf("ScrollOffset = %v after ranking, want 0", s.Selection.ScrollOffset)
	}
}

func TestReduce_NewRoundEmptiesList(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	for i := range 5 {
		s = Reduce(s, sighting("n", byte(i+1), -50), cfg).State
	}

	s = Reduce(s, ScanStarted{At: t0.Add(time.Minute)}, cfg).State
	if s.Networks.Len() != 0 {
		t.Fatalf("Len() = %d after the next round started", s.Networks.Len())
	}
	if _, ok := s.Selection.Selected(s.Networks.Len()); ok {
		t.Fatal("selection active on an empty list")
	}
}

func TestReduce_IngestClampsCursor(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	for i := range 3 {
		s = Reduce(s, sighting("n", byte(i+1), -50), cfg).State
	}
	s.Selection.Cursor = 4

	s = Reduce(s, sighting("n", 2, -45), cfg).State
	if s.Selection.Cursor != 2 {
		t.Fatalf("Cursor = %d, want clamped to 2", s.Selection.Cursor)
	}
}

func TestReduce_LateDiscoveryFiltered(t *testing.T) {
	cfg := testReducerConfig()
	s := NewDaemonState(5, EvictionDrop)

	rr := Reduce(s, sighting("late", 1, -40), cfg)
	if !rr.Ingested || rr.Ingest != IngestFiltered {
		t.Fatalf("late discovery: ingested=%v result=%v", rr.Ingested, rr.Ingest)
	}
	if rr.State.Networks.Len() != 0 {
		t.Fatal("late discovery was stored")
	}
}

func TestReduce_ScanStartFailedBacksOff(t *testing.T) {
	cfg := testReducerConfig()
	s := NewDaemonState(5, EvictionDrop)
	s = Reduce(s, Tick{Now: t0}, cfg).State

	s = Reduce(s, ScanStartFailed{Err: errors.New("busy"), At: t0}, cfg).State
	if s.Scan.StartPending || s.Scan.Phase != ScanIdle {
		t.Fatalf("scan state after failure = %+v", s.Scan)
	}

	rr := Reduce(s, Tick{Now: t0.Add(time.Second)}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("retried before backoff: %v", rr.Commands)
	}
	rr = Reduce(rr.State, Tick{Now: t0.Add(cfg.RetryBackoff)}, cfg)
	onlyCommand[CmdStartScan](t, rr)
}

func TestReduce_ConfirmEmptyIsNoop(t *testing.T) {
	cfg := testReducerConfig()
	s := NewDaemonState(5, EvictionDrop)

	rr := Reduce(s, Confirm{}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("confirm on empty list issued %v", rr.Commands)
	}
	if rr.State.Connect.Pending {
		t.Fatal("connect pending on empty list")
	}
}

func TestReduce_ConfirmConnectsSelected(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	s = Reduce(s, sighting("first", 1, -40), cfg).State
	s = Reduce(s, DiscoveryFound{Name: "cafe", HardwareAddr: addr(2), SignalDBM: -70, Auth: AuthOpen}, cfg).State
	s = Reduce(s, MoveCursor{Delta: 1}, cfg).State

	rr := Reduce(s, TimedEvent{Event: Confirm{}, At: t0}, cfg)
	got := onlyCommand[CmdConnect](t, rr)
	want := CmdConnect{Name: "cafe", HardwareAddr: addr(2), Auth: AuthOpen}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("connect (-want +got):\n%s", diff)
	}
	if !rr.State.Connect.Pending || rr.State.Connect.Name != "cafe" {
		t.Fatalf("connect state = %+v", rr.State.Connect)
	}

	// A second confirm while pending is ignored.
	rr = Reduce(rr.State, Confirm{}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("confirm while pending issued %v", rr.Commands)
	}

	rr = Reduce(rr.State, ConnectResult{Name: "cafe", HardwareAddr: addr(2), Err: errors.New("auth timeout"), At: t0}, cfg)
	if rr.State.Connect.Pending {
		t.Fatal("connect still pending after result")
	}
	bc, ok := hasBroadcast[BroadcastConnectResult](rr.Broadcasts)
	if !ok {
		t.Fatal("no connect_result broadcast")
	}
	if diff := cmp.Diff(BroadcastConnectResult{Name: "cafe", OK: false, Error: "auth timeout", At: t0}, bc); diff != "" {
		t.Fatalf("broadcast (-want +got):\n%s", diff)
	}

	rr = Reduce(rr.State, ConnectResult{Name: "cafe", At: t0}, cfg)
	if !rr.State.Connect.LastOK || rr.State.Connect.LastError != "" {
		t.Fatalf("connect state after success = %+v", rr.State.Connect)
	}
}

func TestReduce_RescanStartsNow(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	s = Reduce(s, Tick{Now: t0.Add(time.Second)}, cfg).State // round done, next at +6s

	at := t0.Add(2 * time.Second)
	s = Reduce(s, TimedEvent{Event: Rescan{}, At: at}, cfg).State
	if !s.Scan.NextScanAt.Equal(at) {
		t.Fatalf("NextScanAt = %v, want %v", s.Scan.NextScanAt, at)
	}
	onlyCommand[CmdStartScan](t, Reduce(s, Tick{Now: at}, cfg))
}

func TestReduce_RescanWhileScanningIsNoop(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	before := s.Scan

	s = Reduce(s, TimedEvent{Event: Rescan{}, At: t0.Add(time.Second)}, cfg).State
	if diff := cmp.Diff(before, s.Scan); diff != "" {
		t.Fatalf("scan state changed (-before +after):\n%s", diff)
	}
}

func TestReduce_MoveCursorBroadcastsMenu(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	s = Reduce(s, sighting("a", 1, -40), cfg).State
	s = Reduce(s, sighting("b", 2, -50), cfg).State

	rr := Reduce(s, MoveCursor{Delta: 1}, cfg)
	mc, ok := hasBroadcast[BroadcastMenuChanged](rr.Broadcasts)
	if !ok {
		t.Fatal("no menu_changed broadcast")
	}
	if mc.Snapshot.Selection.Cursor != 1 || !mc.Snapshot.HasSelect || mc.Snapshot.Selected != 1 {
		t.Fatalf("snapshot selection = %+v", mc.Snapshot)
	}

	// Moving past the end changes nothing visible.
	rr = Reduce(rr.State, MoveCursor{Delta: 1}, cfg)
	if _, ok := hasBroadcast[BroadcastMenuChanged](rr.Broadcasts); ok {
		t.Fatal("no-op move broadcast menu_changed")
	}
}

func TestReduce_StickMovesCursorEachFrame(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	for i := range 3 {
		s = Reduce(s, sighting("n", byte(i+1), -50), cfg).State
	}

	now := t0
	for range cfg.Menu.CooldownFrames + 1 {
		now = now.Add(33 * time.Millisecond)
		s = Reduce(s, Tick{Now: now, AxisY: 3, ScanActive: true}, cfg).State
	}
	if s.Selection.Cursor != 1 {
		t.Fatalf("Cursor = %d after cooldown, want 1", s.Selection.Cursor)
	}
	s = Reduce(s, Tick{Now: now, AxisY: 3, ScanActive: true}, cfg).State
	if s.Selection.Cursor != 2 {
		t.Fatalf("Cursor = %d, want 2", s.Selection.Cursor)
	}
}

func TestReduce_SnapshotRequest(t *testing.T) {
	cfg := testReducerConfig()
	s := startedRound(t, cfg)
	s = Reduce(s, sighting("a", 1, -40), cfg).State

	reply := make(chan StateSnapshot, 1)
	rr := Reduce(s, RequestStateSnapshot{Reply: reply}, cfg)
	cmd := onlyCommand[CmdPublishStateSnapshot](t, rr)
	if cmd.Reply != reply {
		t.Fatal("reply channel not carried")
	}
	if !cmd.Snapshot.Scanning || len(cmd.Snapshot.Records) != 1 {
		t.Fatalf("snapshot = %+v", cmd.Snapshot)
	}
}

func TestReduce_NilStateAndUnknownEvent(t *testing.T) {
	rr := Reduce(nil, TimedEvent{Event: nil, At: t0}, testReducerConfig())
	if rr.State == nil {
		t.Fatal("nil state not replaced")
	}
	if len(rr.Commands) != 0 || len(rr.Broadcasts) != 0 {
		t.Fatalf("unknown event produced %v %v", rr.Commands, rr.Broadcasts)
	}
}
