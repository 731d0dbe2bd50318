// Package scene keeps the client's persistent set of visual entities in step
// with the server's world snapshots.
//
// The server sends a full description of every visible object on each update.
// The Reconciler turns that stream into the smallest set of create, update and
// remove operations against a Surface, so node identity survives across
// snapshots and paint order follows zIndex.
package scene

// SelfID is the reserved id of the controlled spaceship. Its node belongs to
// the host and is never created or destroyed here, only updated or hidden.
const SelfID = "spaceship"

// Gauge is a current/max pair (health, temperature).
type Gauge struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// Ratio returns Current/Max clamped to [0, 1]. A zero Max yields 0.
func (g Gauge) Ratio() float64 {
	if g.Max <= 0 {
		return 0
	}
	r := g.Current / g.Max
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Collider is an oriented rectangle relative to the entity position (debug only).
type Collider struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Angle   float64 `json:"angle"` // radians
}

// Appearance describes the image drawn for an entity.
type Appearance struct {
	Image           string  `json:"image"`
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	UseRelativeSize bool    `json:"useRelativeSize"`
	Angle           float64 `json:"angle"`   // radians
	Opacity         float64 `json:"opacity"` // 0..1
}

// Descriptor is the canonical per-entity record of a snapshot. Wire-level
// defaults (zIndex 0, active true, flattened self fields) are resolved by the
// protocol layer before a Descriptor is built.
type Descriptor struct {
	ID                string      `json:"id"`
	X                 float64     `json:"x"` // percent of play field
	Y                 float64     `json:"y"`
	ZIndex            int         `json:"zIndex"`
	Active            bool        `json:"active"`
	Appearance        *Appearance `json:"appearance,omitempty"`
	Health            *Gauge      `json:"health,omitempty"`
	Temperature       *Gauge      `json:"temperature,omitempty"`
	Colliders         []Collider  `json:"colliders,omitempty"`
	ActiveWeaponCount *int        `json:"activeWeaponCount,omitempty"`
}

// Snapshot is one complete, server-authoritative view of the world.
type Snapshot struct {
	Entities []Descriptor
}
