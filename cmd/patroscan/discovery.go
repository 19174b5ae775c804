package main

import (
	"fmt"
	"sort"
)

// EvictionPolicy decides what happens to a never-seen address once the set is full.
type EvictionPolicy string

const (
	// EvictionDrop ignores newcomers at capacity. Entries are never evicted, so
	// networks beyond the cap stay invisible until the next round.
	EvictionDrop EvictionPolicy = "drop"

	// EvictionWeakest replaces the weakest entry when the newcomer is strictly stronger.
	EvictionWeakest EvictionPolicy = "weakest"
)

const defaultDiscoveryCapacity = 20

// IngestResult reports what Ingest did with an event. It exists for logging and
// metrics only; ingest never fails.
type IngestResult int

const (
	IngestInserted IngestResult = iota
	IngestUpdated
	IngestFiltered
	IngestDropped
	IngestEvicted
)

func (r IngestResult) String() string {
	switch r {
	case IngestInserted:
		return "inserted"
	case IngestUpdated:
		return "updated"
	case IngestFiltered:
		return "filtered"
	case IngestDropped:
		return "dropped"
	case IngestEvicted:
		return "evicted"
	default:
		return fmt.Sprintf("IngestResult(%d)", int(r))
	}
}

// DiscoverySet is a bounded, address-unique sequence of NetworkRecord.
//
// Records keep first-seen position and last-seen signal until Rank reorders them.
// A DiscoverySet is owned by the daemon goroutine and is not safe for concurrent use.
type DiscoverySet struct {
	records  []NetworkRecord
	capacity int
	policy   EvictionPolicy

	// version increases on every mutation so observers can detect changes.
	version uint64
}

// NewDiscoverySet returns an empty set. capacity <= 0 selects the default.
func NewDiscoverySet(capacity int, policy EvictionPolicy) *DiscoverySet {
	if capacity <= 0 {
		capacity = defaultDiscoveryCapacity
	}
	if policy == "" {
		policy = EvictionDrop
	}
	return &DiscoverySet{
		records:  make([]NetworkRecord, 0, capacity),
		capacity: capacity,
		policy:   policy,
	}
}

func (d *DiscoverySet) Len() int { return len(d.records) }

func (d *DiscoverySet) Cap() int { return d.capacity }

func (d *DiscoverySet) Policy() EvictionPolicy { return d.policy }

// Version changes whenever the contents or order change.
func (d *DiscoverySet) Version() uint64 { return d.version }

// At returns the record at i. It panics on an out-of-range index like a slice does.
func (d *DiscoverySet) At(i int) NetworkRecord { return d.records[i] }

// Records returns a copy of the current sequence.
func (d *DiscoverySet) Records() []NetworkRecord {
	out := make([]NetworkRecord, len(d.records))
	copy(out, d.records)
	return out
}

// BeginRound logically discards all entries. Call it once per scan round, when the
// round starts.
func (d *DiscoverySet) BeginRound() {
	d.records = d.records[:0]
	d.version++
}

// Ingest folds one discovery event into the set.
func (d *DiscoverySet) Ingest(ev DiscoveryFound) IngestResult {
	if ev.Name == "" {
		return IngestFiltered
	}

	for i := range d.records {
		if d.records[i].HardwareAddr != ev.HardwareAddr {
			continue
		}
		d.records[i].SignalDBM = ev.SignalDBM
		if ev.Auth != AuthUnknown {
			d.records[i].Auth = ev.Auth
		}
		d.version++
		return IngestUpdated
	}

	rec := NetworkRecord{
		Name:         truncateName(ev.Name),
		HardwareAddr: ev.HardwareAddr,
		SignalDBM:    ev.SignalDBM,
		Auth:         ev.Auth,
	}

	if len(d.records) < d.capacity {
		d.records = append(d.records, rec)
		d.version++
		return IngestInserted
	}

	if d.policy != EvictionWeakest {
		return IngestDropped
	}

	weakest := 0
	for i := 1; i < len(d.records); i++ {
		if d.records[i].SignalDBM < d.records[weakest].SignalDBM {
			weakest = i
		}
	}
	if rec.SignalDBM <= d.records[weakest].SignalDBM {
		return IngestDropped
	}
	d.records[weakest] = rec
	d.version++
	return IngestEvicted
}

// Rank orders the set by signal strength, strongest first. Equal signals keep
// their relative order so repeated rounds don't jitter.
func (d *DiscoverySet) Rank() {
	sort.SliceStable(d.records, func(i, j int) bool {
		return d.records[i].SignalDBM > d.records[j].SignalDBM
	})
	d.version++
}
