// Package input turns continuous player input into a bounded stream of
// intents: edge-triggered key transitions, immediate weapon selection and a
// fixed-rate aim sampler.
package input

import "sort"

// Boolean control names understood by the server.
const (
	Up          = "up"
	Down        = "down"
	Left        = "left"
	Right       = "right"
	ShootUp     = "shoot_up"
	ShootDown   = "shoot_down"
	ShootLeft   = "shoot_left"
	ShootRight  = "shoot_right"
	Cool        = "cool"
	Shield      = "shield"
	ShieldUp    = "shield_up"
	ShieldDown  = "shield_down"
	ShieldLeft  = "shield_left"
	ShieldRight = "shield_right"
)

var controls = map[string]bool{
	Up: true, Down: true, Left: true, Right: true,
	ShootUp: true, ShootDown: true, ShootLeft: true, ShootRight: true,
	Cool: true, Shield: true,
	ShieldUp: true, ShieldDown: true, ShieldLeft: true, ShieldRight: true,
}

// IsControl reports whether name is a known boolean control.
func IsControl(name string) bool {
	return controls[name]
}

// Controls returns every known boolean control, sorted.
func Controls() []string {
	out := make([]string, 0, len(controls))
	for name := range controls {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Kind classifies an intent.
type Kind uint8

const (
	KindPressed Kind = iota
	KindReleased
	KindAim
	KindWeapon
	KindRepair
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindPressed:
		return "pressed"
	case KindReleased:
		return "released"
	case KindAim:
		return "aim"
	case KindWeapon:
		return "weapon"
	case KindRepair:
		return "repair"
	default:
		return "unknown"
	}
}

// Intent is one outbound player action.
type Intent struct {
	Kind    Kind
	Control string  // pressed / released
	Angle   float64 // aim, degrees [0, 360)
	Firing  bool    // aim
	Weapon  int     // weapon, 1-based slot
}

// Emitter receives intents synchronously.
type Emitter func(Intent)
