package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("session: not connected")
	ErrClosed       = errors.New("session: closed")
)

// State of the server connection. Reconnection reuses Connecting.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	default:
		return fmt.Errorf("session: unknown state %q", b)
	}
	return nil
}

// ReconnectPolicy decides what happens to held controls across a reconnect.
type ReconnectPolicy int

const (
	// ReleaseOnDisconnect releases every held control when the link drops.
	// The player must press again after reconnecting.
	ReleaseOnDisconnect ReconnectPolicy = iota
	// ResendHeld keeps held controls and re-sends them once reconnected.
	ResendHeld
)

// Status texts
const (
	TextConnecting     = "Connecting to game server..."
	TextConnected      = "Connected to game server!"
	TextDisconnected   = "Disconnected from server. Trying to reconnect..."
	TextWaiting        = "Waiting for connection to server..."
	TextGameInProgress = "Game in progress..."
	TextGameStarted    = "Game started!"
	TextGamePaused     = "Game paused"
	TextGameResumed    = "Game resumed"
)

// Status is what the player sees about the session.
type Status struct {
	State      State  `json:"state"`
	Connection string `json:"connection"`
	Game       string `json:"game"`
	Joined     bool   `json:"joined"`
	Name       string `json:"name"`
	PlayerID   string `json:"playerId"`
}

// Stats are cumulative session counters.
type Stats struct {
	FramesReceived uint64 `json:"framesReceived"`
	Snapshots      uint64 `json:"snapshots"`
	Discarded      uint64 `json:"discarded"`
	DecodeErrors   uint64 `json:"decodeErrors"`
	Sent           uint64 `json:"sent"`
	Dropped        uint64 `json:"dropped"`
	Connects       uint64 `json:"connects"`
	Reconnects     uint64 `json:"reconnects"`
}
