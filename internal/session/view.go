package session

import (
	"github.com/Flgjfvevdk/pilot-together/internal/roster"
	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

// View is read access to loop-owned state, valid only inside Do.
type View struct {
	c *Controller
}

// WeaponState describes the weapon selector.
type WeaponState struct {
	Selected int `json:"selected"`
	Active   int `json:"active"`
	Slots    int `json:"slots"`
}

// AimState describes the aim sampler.
type AimState struct {
	Angle  float64 `json:"angle"`
	Firing bool    `json:"firing"`
}

// Status returns the current session status.
func (v View) Status() Status { return v.c.status }

// Stats returns session counters.
func (v View) Stats() Stats { return v.c.Stats() }

// Entries returns the scene in paint order, back-to-front.
func (v View) Entries() []scene.Entry { return v.c.reconciler.Entries() }

// Self returns the merged self descriptor once seen.
func (v View) Self() (scene.Descriptor, bool) { return v.c.reconciler.Self() }

// Players returns the roster in join order.
func (v View) Players() []roster.Player { return v.c.roster.Players() }

// Health returns the latest ship health.
func (v View) Health() (scene.Gauge, bool) {
	if v.c.health == nil {
		return scene.Gauge{}, false
	}
	return *v.c.health, true
}

// Temperature returns the ship temperature from the last snapshot.
func (v View) Temperature() (scene.Gauge, bool) {
	self, ok := v.c.reconciler.Self()
	if !ok || self.Temperature == nil {
		return scene.Gauge{}, false
	}
	return *self.Temperature, true
}

// Weapons returns the weapon selector state.
func (v View) Weapons() WeaponState {
	w := v.c.weapons
	return WeaponState{Selected: w.Selected(), Active: w.ActiveCount(), Slots: w.Slots()}
}

// Pressed returns the held controls, sorted.
func (v View) Pressed() []string { return v.c.edges.Pressed() }

// Aim returns the aim sampler state.
func (v View) Aim() AimState {
	return AimState{Angle: v.c.aim.Angle(), Firing: v.c.aim.Firing()}
}

// FieldSize returns the play field size in pixels.
func (v View) FieldSize() (w, h float64) { return v.c.cfg.FieldWidth, v.c.cfg.FieldHeight }
