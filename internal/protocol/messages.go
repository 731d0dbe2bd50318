package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SnapshotMessage is the world snapshot sent on game_state_update. The self
// entity may arrive flattened at the top level (shipX, shipY, image, ...) or
// as an ordinary entry of GameObjects.
type SnapshotMessage struct {
	ShipX             *float64     `json:"shipX,omitempty"`
	ShipY             *float64     `json:"shipY,omitempty"`
	Width             *float64     `json:"width,omitempty"`
	Height            *float64     `json:"height,omitempty"`
	Image             *ImageData   `json:"image,omitempty"`
	Health            *GaugeData   `json:"health,omitempty"`
	Temperature       *GaugeData   `json:"temperature,omitempty"`
	MaxTemperature    *float64     `json:"maxTemperature,omitempty"`
	ActiveWeaponCount *int         `json:"activeWeaponCount,omitempty"`
	GameObjects       []EntityData `json:"gameObjects"`
}

// EntityData is one game object descriptor.
type EntityData struct {
	ID                string         `json:"id" jsonschema:"required"`
	X                 float64        `json:"x"`
	Y                 float64        `json:"y"`
	Width             *float64       `json:"width,omitempty"`
	Height            *float64       `json:"height,omitempty"`
	ZIndex            int            `json:"zIndex,omitempty"`
	Active            *bool          `json:"active,omitempty"`
	Image             *ImageData     `json:"image,omitempty"`
	Health            *GaugeData     `json:"health,omitempty"`
	Temperature       *GaugeData     `json:"temperature,omitempty"`
	MaxTemperature    *float64       `json:"maxTemperature,omitempty"`
	Colliders         []ColliderData `json:"colliders,omitempty"`
	ActiveWeaponCount *int           `json:"activeWeaponCount,omitempty"`
}

// ImageData describes an entity sprite. Angle is in radians.
type ImageData struct {
	URL             string   `json:"url"`
	Width           float64  `json:"width,omitempty"`
	Height          float64  `json:"height,omitempty"`
	Angle           float64  `json:"angle,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`
	UseRelativeSize bool     `json:"useRelativeSize,omitempty"`
}

// ColliderData is an oriented rectangle relative to the entity center.
type ColliderData struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Angle   float64 `json:"angle"`
}

// GaugeData is a current/max pair. Servers also send a bare number for the
// current value, with the maximum in a sibling field.
type GaugeData struct {
	Current float64  `json:"current"`
	Max     *float64 `json:"max,omitempty"`
}

// UnmarshalJSON accepts {"current":..,"max":..} or a bare number.
func (g *GaugeData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("gauge: %w", err)
		}
		*g = GaugeData{Current: v}
		return nil
	}

	type plain GaugeData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*g = GaugeData(p)
	return nil
}

// PlayerData is a roster entry.
type PlayerData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerList is the full roster sent on player_list.
type PlayerList []PlayerData

// HealthUpdate is sent on spaceship_health_update.
type HealthUpdate struct {
	Health GaugeData `json:"health"`
}

// CannonsUpdate carries the number of usable weapon slots.
type CannonsUpdate struct {
	ActiveCannons int `json:"active_cannons"`
}

// PlayerAction is a display-only notice of another player's action.
type PlayerAction struct {
	Player    string `json:"player"`
	Direction string `json:"direction"`
}

// Welcome carries the server-assigned id of this connection.
type Welcome struct {
	ID string `json:"id"`
}

// Notice is a payload-less game lifecycle event (started/paused/resumed).
type Notice struct {
	Event string `json:"-"`
}

// Outbound payloads

// KeyPayload is sent with key_down and key_up.
type KeyPayload struct {
	Key string `json:"key"`
}

// AimPayload is sent with rotate_shoot.
type AimPayload struct {
	Angle  float64 `json:"angle"`
	Firing bool    `json:"firing"`
}

// WeaponPayload is sent with weapon_select.
type WeaponPayload struct {
	Weapon int `json:"weapon"`
}

// Empty is the payload of repair and request_game_state.
type Empty struct{}

// NamePayload is sent with set_name.
type NamePayload struct {
	Name string `json:"name"`
}
