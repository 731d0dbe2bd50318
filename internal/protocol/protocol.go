// Package protocol defines the JSON wire format exchanged with the game server
// over the websocket channel. Every frame is an envelope carrying an event
// name and a raw payload.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxMessageSize bounds a single inbound frame (1MB)
	MaxMessageSize = 1024 * 1024

	// Connection defaults
	WriteTimeout   = 250 * time.Millisecond
	DialTimeout    = 3 * time.Second
	ReconnectDelay = 500 * time.Millisecond
)

// Inbound events
const (
	EventGameState     = "game_state_update"
	EventPlayerList    = "player_list"
	EventPlayerJoined  = "player_joined"
	EventPlayerLeft    = "player_left"
	EventPlayerUpdated = "player_updated"
	EventHealthUpdate  = "spaceship_health_update"
	EventActiveCannons = "active_cannons_update"
	EventUpdateCannons = "update_active_cannons" // name used by older servers
	EventGameStarted   = "game_started"
	EventGamePaused    = "game_paused"
	EventGameResumed   = "game_resumed"
	EventPlayerAction  = "player_action"
	EventWelcome       = "welcome"
)

// Outbound events
const (
	EventKeyDown          = "key_down"
	EventKeyUp            = "key_up"
	EventRotateShoot      = "rotate_shoot"
	EventWeaponSelect     = "weapon_select"
	EventRepair           = "repair"
	EventSetName          = "set_name"
	EventRequestGameState = "request_game_state"
)

var (
	ErrUnknownEvent = errors.New("protocol: unknown event")
	ErrEmptyEvent   = errors.New("protocol: envelope without event")
	ErrTooLarge     = errors.New("protocol: message exceeds size limit")
)

// Envelope is the frame wrapper: {"event": ..., "data": ...}
type Envelope struct {
	Event string          `json:"event" jsonschema:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload into an envelope. A nil payload encodes as {}.
func Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, ErrEmptyEvent
	}
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DecodeEnvelope parses a raw frame into its envelope.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if len(frame) > MaxMessageSize {
		return env, ErrTooLarge
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return env, ErrEmptyEvent
	}
	return env, nil
}

// Decode parses the envelope payload into the typed message for its event.
// The returned value is one of *SnapshotMessage, []PlayerData, PlayerData,
// HealthUpdate, CannonsUpdate, PlayerAction, Welcome or Notice.
func Decode(env Envelope) (any, error) {
	var msg any
	switch env.Event {
	case EventGameState:
		msg = &SnapshotMessage{}
	case EventPlayerList:
		msg = &PlayerList{}
	case EventPlayerJoined, EventPlayerLeft, EventPlayerUpdated:
		msg = &PlayerData{}
	case EventHealthUpdate:
		msg = &HealthUpdate{}
	case EventActiveCannons, EventUpdateCannons:
		msg = &CannonsUpdate{}
	case EventPlayerAction:
		msg = &PlayerAction{}
	case EventWelcome:
		msg = &Welcome{}
	case EventGameStarted, EventGamePaused, EventGameResumed:
		return Notice{Event: env.Event}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if err := unmarshal(env, msg); err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case *PlayerList:
		return []PlayerData(*m), nil
	case *PlayerData:
		return *m, nil
	case *HealthUpdate:
		return *m, nil
	case *CannonsUpdate:
		return *m, nil
	case *PlayerAction:
		return *m, nil
	case *Welcome:
		return *m, nil
	}
	return msg, nil
}

func unmarshal(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return nil
}
