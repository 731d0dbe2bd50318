package input

import "sort"

// EdgeTracker converts level-triggered control state into press/release
// transitions. Repeated calls with an unchanged state emit nothing, which
// absorbs overlapping sources (keyboard, mouse and touch on the same control).
type EdgeTracker struct {
	current map[string]bool
	emit    Emitter
}

// NewEdgeTracker creates a tracker that reports transitions to emit.
func NewEdgeTracker(emit Emitter) *EdgeTracker {
	return &EdgeTracker{
		current: make(map[string]bool),
		emit:    emit,
	}
}

// SetControlState records the state of name and emits one intent if it
// changed. It reports whether a transition happened.
func (t *EdgeTracker) SetControlState(name string, pressed bool) bool {
	if name == "" || t.current[name] == pressed {
		return false
	}

	if pressed {
		t.current[name] = true
		t.emit(Intent{Kind: KindPressed, Control: name})
	} else {
		delete(t.current, name)
		t.emit(Intent{Kind: KindReleased, Control: name})
	}
	return true
}

// ReleaseAll emits a release for every pressed control, in name order, and
// returns how many were released.
func (t *EdgeTracker) ReleaseAll() int {
	pressed := t.Pressed()
	for _, name := range pressed {
		t.SetControlState(name, false)
	}
	return len(pressed)
}

// IsPressed reports the tracked state of name.
func (t *EdgeTracker) IsPressed(name string) bool {
	return t.current[name]
}

// Pressed returns the currently pressed controls, sorted.
func (t *EdgeTracker) Pressed() []string {
	out := make([]string, 0, len(t.current))
	for name := range t.current {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
