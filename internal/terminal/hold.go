package terminal

import (
	"sort"
	"time"
)

// HoldTracker turns key repeat into held controls. Terminals report key
// presses only, so a control counts as held until no press for it has been
// seen for the hold window.
type HoldTracker struct {
	window time.Duration
	seen   map[string]time.Time
}

// NewHoldTracker creates a tracker with the given hold window.
func NewHoldTracker(window time.Duration) *HoldTracker {
	return &HoldTracker{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// Touch records a press at now. It reports whether the control was not held.
func (h *HoldTracker) Touch(name string, now time.Time) bool {
	_, held := h.seen[name]
	h.seen[name] = now
	return !held
}

// Expired removes and returns the controls not touched within the window,
// sorted.
func (h *HoldTracker) Expired(now time.Time) []string {
	var out []string
	for name, t := range h.seen {
		if now.Sub(t) >= h.window {
			out = append(out, name)
			delete(h.seen, name)
		}
	}
	sort.Strings(out)
	return out
}

// Clear forgets every held control and returns them, sorted.
func (h *HoldTracker) Clear() []string {
	out := h.Held()
	clear(h.seen)
	return out
}

// Held returns the held controls, sorted.
func (h *HoldTracker) Held() []string {
	out := make([]string, 0, len(h.seen))
	for name := range h.seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
