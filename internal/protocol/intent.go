package protocol

import (
	"fmt"

	"github.com/Flgjfvevdk/pilot-together/internal/input"
)

// IntentEvent returns the event name and payload for an input intent.
func IntentEvent(i input.Intent) (string, any, error) {
	switch i.Kind {
	case input.KindPressed:
		return EventKeyDown, KeyPayload{Key: i.Control}, nil
	case input.KindReleased:
		return EventKeyUp, KeyPayload{Key: i.Control}, nil
	case input.KindAim:
		return EventRotateShoot, AimPayload{Angle: i.Angle, Firing: i.Firing}, nil
	case input.KindWeapon:
		return EventWeaponSelect, WeaponPayload{Weapon: i.Weapon}, nil
	case input.KindRepair:
		return EventRepair, Empty{}, nil
	default:
		return "", nil, fmt.Errorf("intent kind %v: %w", i.Kind, ErrUnknownEvent)
	}
}

// EncodeIntent encodes an input intent as a ready-to-send frame.
func EncodeIntent(i input.Intent) (string, []byte, error) {
	event, payload, err := IntentEvent(i)
	if err != nil {
		return "", nil, err
	}
	frame, err := Encode(event, payload)
	return event, frame, err
}
