package input

import (
	"errors"
	"fmt"
)

// DefaultWeaponSlots matches the four rotating cannons of the ship.
const DefaultWeaponSlots = 4

var (
	ErrWeaponOutOfRange = errors.New("input: weapon slot out of range")
	ErrWeaponDisabled   = errors.New("input: weapon slot disabled")
)

// WeaponSelector tracks the selected weapon slot. Slots are 1-based; only
// the first ActiveCount slots are enabled, and a count of 0 disables all. Selection is not edge-tracked:
// every accepted selection is emitted.
type WeaponSelector struct {
	slots    int
	active   int
	selected int
	emit     Emitter
}

// NewWeaponSelector creates a selector with every slot enabled and slot 1
// selected.
func NewWeaponSelector(slots int, emit Emitter) *WeaponSelector {
	if slots < 1 {
		slots = DefaultWeaponSlots
	}
	return &WeaponSelector{
		slots:    slots,
		active:   slots,
		selected: 1,
		emit:     emit,
	}
}

// Select switches to slot k and emits the selection.
func (w *WeaponSelector) Select(k int) error {
	if k < 1 || k > w.slots {
		return fmt.Errorf("select %d of %d: %w", k, w.slots, ErrWeaponOutOfRange)
	}
	if k > w.active {
		return fmt.Errorf("select %d with %d active: %w", k, w.active, ErrWeaponDisabled)
	}
	w.selected = k
	w.emit(Intent{Kind: KindWeapon, Weapon: k})
	return nil
}

// SetActiveCount updates how many slots the server reports as usable. If the
// current selection becomes disabled it falls back to slot 1, which is
// emitted. With no slot enabled the selection is kept and nothing is sent.
// It reports whether a fallback happened.
func (w *WeaponSelector) SetActiveCount(n int) bool {
	if n < 0 {
		n = 0
	}
	if n > w.slots {
		n = w.slots
	}
	w.active = n

	if w.active > 0 && w.selected > w.active {
		w.selected = 1
		w.emit(Intent{Kind: KindWeapon, Weapon: 1})
		return true
	}
	return false
}

// Selected returns the selected slot.
func (w *WeaponSelector) Selected() int { return w.selected }

// ActiveCount returns the number of enabled slots.
func (w *WeaponSelector) ActiveCount() int { return w.active }

// Slots returns the total number of slots.
func (w *WeaponSelector) Slots() int { return w.slots }

// Enabled reports whether slot k can be selected.
func (w *WeaponSelector) Enabled(k int) bool {
	return k >= 1 && k <= w.active
}
