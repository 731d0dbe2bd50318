package protocol

import (
	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

// ToSnapshot converts a wire snapshot into the canonical scene form.
// Defaults are resolved here: zIndex 0, active true, opacity 1. When the self
// entity is sent flattened at the top level it becomes an ordinary descriptor;
// if it is also present in gameObjects the nested entry wins and the
// flattened fields only fill what it lacks.
func (msg *SnapshotMessage) ToSnapshot() scene.Snapshot {
	snap := scene.Snapshot{
		Entities: make([]scene.Descriptor, 0, len(msg.GameObjects)+1),
	}

	selfIdx := -1
	for i := range msg.GameObjects {
		d := msg.GameObjects[i].ToDescriptor()
		if d.ID == scene.SelfID && selfIdx < 0 {
			selfIdx = len(snap.Entities)
		}
		snap.Entities = append(snap.Entities, d)
	}

	flat, ok := msg.flattenedSelf()
	if !ok {
		return snap
	}
	if selfIdx < 0 {
		// Flattened self paints beneath everything at the same zIndex
		snap.Entities = append([]scene.Descriptor{flat}, snap.Entities...)
		return snap
	}

	nested := &snap.Entities[selfIdx]
	if nested.Appearance == nil {
		nested.Appearance = flat.Appearance
	}
	if nested.Health == nil {
		nested.Health = flat.Health
	}
	if nested.Temperature == nil {
		nested.Temperature = flat.Temperature
	}
	if nested.ActiveWeaponCount == nil {
		nested.ActiveWeaponCount = flat.ActiveWeaponCount
	}
	return snap
}

// flattenedSelf builds the self descriptor from top-level fields. It reports
// false when the snapshot carries no flattened position.
func (msg *SnapshotMessage) flattenedSelf() (scene.Descriptor, bool) {
	if msg.ShipX == nil && msg.ShipY == nil {
		return scene.Descriptor{}, false
	}

	e := EntityData{
		ID:                scene.SelfID,
		Width:             msg.Width,
		Height:            msg.Height,
		Image:             msg.Image,
		Health:            msg.Health,
		Temperature:       msg.Temperature,
		MaxTemperature:    msg.MaxTemperature,
		ActiveWeaponCount: msg.ActiveWeaponCount,
	}
	if msg.ShipX != nil {
		e.X = *msg.ShipX
	}
	if msg.ShipY != nil {
		e.Y = *msg.ShipY
	}
	return e.ToDescriptor(), true
}

// ToDescriptor converts one wire entity into a scene descriptor.
func (e *EntityData) ToDescriptor() scene.Descriptor {
	d := scene.Descriptor{
		ID:                e.ID,
		X:                 e.X,
		Y:                 e.Y,
		ZIndex:            e.ZIndex,
		Active:            true,
		ActiveWeaponCount: e.ActiveWeaponCount,
	}
	if e.Active != nil {
		d.Active = *e.Active
	}

	if e.Image != nil {
		d.Appearance = e.appearance()
	}
	if e.Health != nil {
		d.Health = e.Health.toGauge(nil)
	}
	if e.Temperature != nil {
		d.Temperature = e.Temperature.toGauge(e.MaxTemperature)
	}

	// An empty list clears the overlay; only an absent field keeps it
	if e.Colliders != nil {
		d.Colliders = make([]scene.Collider, len(e.Colliders))
		for i, c := range e.Colliders {
			d.Colliders[i] = scene.Collider{
				Width:   c.Width,
				Height:  c.Height,
				OffsetX: c.OffsetX,
				OffsetY: c.OffsetY,
				Angle:   c.Angle,
			}
		}
	}
	return d
}

// appearance resolves sprite size. With relative sizing the entity's own
// width/height are play-field percentages and take precedence over the
// image's pixel size.
func (e *EntityData) appearance() *scene.Appearance {
	img := e.Image
	a := &scene.Appearance{
		Image:           img.URL,
		Width:           img.Width,
		Height:          img.Height,
		UseRelativeSize: img.UseRelativeSize,
		Angle:           img.Angle,
		Opacity:         1,
	}
	if img.Opacity != nil {
		a.Opacity = *img.Opacity
	}
	if img.UseRelativeSize {
		if e.Width != nil {
			a.Width = *e.Width
		}
		if e.Height != nil {
			a.Height = *e.Height
		}
	}
	return a
}

func (g *GaugeData) toGauge(siblingMax *float64) *scene.Gauge {
	out := &scene.Gauge{Current: g.Current}
	switch {
	case g.Max != nil:
		out.Max = *g.Max
	case siblingMax != nil:
		out.Max = *siblingMax
	}
	return out
}

// ToGauge converts a health update into a scene gauge.
func (h HealthUpdate) ToGauge() scene.Gauge {
	return *h.Health.toGauge(nil)
}
