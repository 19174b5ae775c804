package main

import "math"

// MenuConfig holds the tunables of the selection/scroll controller.
type MenuConfig struct {
	// CooldownFrames is how many frames input is ignored after a cursor move.
	CooldownFrames int

	// ScrollStep is how many pixels the scroll offset may move per frame.
	ScrollStep float64

	// RowHeight and VisibleRows come from the display geometry.
	RowHeight   int
	VisibleRows int
}

// SelectionState is the cursor/scroll state of the menu.
//
// Cursor is only meaningful while the list is non-empty. When the list is empty
// the cursor keeps its last value but is inactive; it is clamped again as soon
// as the list has entries.
type SelectionState struct {
	Cursor       int     `json:"cursor"`
	ScrollOffset float64 `json:"scroll_offset"`
	Cooldown     int     `json:"cooldown"`
}

// Selected returns the cursor index and whether it addresses a row of a list
// with size entries.
func (s SelectionState) Selected(size int) (int, bool) {
	if size <= 0 || s.Cursor < 0 || s.Cursor >= size {
		return 0, false
	}
	return s.Cursor, true
}

// Reset puts the cursor back on the first row and the scroll at the top.
func (s *SelectionState) Reset() {
	s.Cursor = 0
	s.ScrollOffset = 0
}

// Clamp forces the cursor into [0, size-1]. It leaves the cursor alone when size is 0.
func (s *SelectionState) Clamp(size int) {
	if size <= 0 {
		return
	}
	if s.Cursor < 0 {
		s.Cursor = 0
	}
	if s.Cursor > size-1 {
		s.Cursor = size - 1
	}
}

// Move shifts the cursor by delta rows and clamps. It reports whether the list
// had anything to move over.
func (s *SelectionState) Move(delta, size int) bool {
	if size <= 0 {
		return false
	}
	s.Cursor += delta
	s.Clamp(size)
	return true
}

// Step advances the controller by one frame: debounced axis input and then one
// scroll approach step.
//
// A negative axis moves the cursor up, a positive one moves it down. The cooldown
// is armed only by a move, never by the stick returning to center.
func (s *SelectionState) Step(axisY int, size int, cfg MenuConfig) {
	s.stepInput(axisY, size, cfg)
	s.Clamp(size)
	s.ScrollOffset = Approach(s.ScrollOffset, ScrollTarget(s.Cursor, size, cfg), cfg.ScrollStep)
}

func (s *SelectionState) stepInput(axisY int, size int, cfg MenuConfig) {
	if s.Cooldown > 0 {
		s.Cooldown--
		return
	}
	var delta int
	switch {
	case axisY < 0:
		delta = -1
	case axisY > 0:
		delta = 1
	default:
		return
	}
	if s.Move(delta, size) {
		s.Cooldown = cfg.CooldownFrames
	}
}

// ScrollTarget is the scroll offset that keeps the cursor row visible while
// pinning the last page to the bottom of the viewport.
func ScrollTarget(cursor, size int, cfg MenuConfig) float64 {
	top := cursor
	if limit := size - cfg.VisibleRows; top > limit {
		top = limit
	}
	if top < 0 {
		top = 0
	}
	return float64(top * cfg.RowHeight)
}

// approachSlack absorbs float error accumulated over many fractional steps so
// the final step lands on target instead of leaving a sub-ulp remainder.
const approachSlack = 1e-9

// Approach moves current toward target by at most step and never overshoots.
// A non-positive step jumps straight to target. From any start it lands on
// target after ceil(|target-current|/step) calls.
func Approach(current, target, step float64) float64 {
	if step <= 0 {
		return target
	}
	d := target - current
	slack := approachSlack * max(1, math.Abs(target), math.Abs(current))
	if math.Abs(d) <= step+slack {
		return target
	}
	if d > 0 {
		return current + step
	}
	return current - step
}
