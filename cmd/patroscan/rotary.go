package main

import (
	"sync"
	"time"
)

// Dial acceleration: this many same-direction detents inside the window
// count as a fast spin and move dialFastRows per detent.
const (
	dialFastWindow = 200 * time.Millisecond
	dialFastSteps  = 3
	dialFastRows   = 2
)

// rotaryState tracks recent dial detents so a fast spin can skip rows.
type rotaryState struct {
	mu     sync.Mutex
	recent []rotaryStep
	now    func() time.Time
}

type rotaryStep struct {
	at        time.Time
	direction int // +1 down the list, -1 up
}

func newRotaryState() *rotaryState {
	return &rotaryState{
		recent: make([]rotaryStep, 0, 16),
		now:    time.Now,
	}
}

// addStep records a detent and returns how many detents in the same direction
// fall inside window, this one included.
func (r *rotaryState) addStep(direction int, window time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-window)

	kept := r.recent[:0]
	for _, s := range r.recent {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	kept = append(kept, rotaryStep{at: now, direction: direction})
	r.recent = kept

	same := 0
	for _, s := range kept {
		if s.direction == direction {
			same++
		}
	}
	return same
}

// rows converts one detent into a cursor delta.
func (r *rotaryState) rows(direction int) int {
	if direction == 0 {
		return 0
	}
	if direction > 0 {
		direction = 1
	} else {
		direction = -1
	}
	if r.addStep(direction, dialFastWindow) >= dialFastSteps {
		return direction * dialFastRows
	}
	return direction
}
