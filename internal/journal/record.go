// Package journal keeps a bounded, rate-limited record of protocol traffic
// and optionally appends it to a JSONL file for offline replay.
package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Direction of a recorded frame
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
	Lifecycle // connect/disconnect markers
)

// RecordVersion for backwards compatibility in replay
const RecordVersion uint8 = 1

// Record is one journal entry
type Record struct {
	Version   uint8           `json:"version"`
	Sequence  uint64          `json:"sequence"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Direction Direction       `json:"direction"`
	Event     string          `json:"event"`
	Size      int             `json:"size"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "in"
	case Outbound:
		return "out"
	case Lifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// MarshalText encodes the direction by name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "in":
		*d = Inbound
	case "out":
		*d = Outbound
	case "lifecycle":
		*d = Lifecycle
	default:
		return fmt.Errorf("journal: unknown direction %q", b)
	}
	return nil
}

// NewRecord creates a record stamped with the current time. Payloads above
// MaxPayloadSize are dropped, keeping only the size.
func NewRecord(dir Direction, event string, frame []byte) Record {
	r := Record{
		Version:   RecordVersion,
		Timestamp: time.Now().UnixNano(),
		Direction: dir,
		Event:     event,
		Size:      len(frame),
	}
	if len(frame) > 0 && len(frame) <= MaxPayloadSize && json.Valid(frame) {
		r.Payload = append(json.RawMessage(nil), frame...)
	}
	return r
}
