package protocol

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// payloads maps each event to an example of its payload type.
var payloads = map[string]any{
	EventGameState:        &SnapshotMessage{},
	EventPlayerList:       &PlayerList{},
	EventPlayerJoined:     &PlayerData{},
	EventPlayerLeft:       &PlayerData{},
	EventPlayerUpdated:    &PlayerData{},
	EventHealthUpdate:     &HealthUpdate{},
	EventActiveCannons:    &CannonsUpdate{},
	EventPlayerAction:     &PlayerAction{},
	EventWelcome:          &Welcome{},
	EventKeyDown:          &KeyPayload{},
	EventKeyUp:            &KeyPayload{},
	EventRotateShoot:      &AimPayload{},
	EventWeaponSelect:     &WeaponPayload{},
	EventSetName:          &NamePayload{},
	EventRepair:           &Empty{},
	EventRequestGameState: &Empty{},
}

// Events returns every event with a documented payload, sorted.
func Events() []string {
	out := make([]string, 0, len(payloads))
	for name := range payloads {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Schema reflects the JSON schema of an event's payload.
func Schema(event string) (*jsonschema.Schema, error) {
	v, ok := payloads[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
	}
	return reflector.Reflect(v), nil
}

// SchemaDocument renders the schemas of every event as one JSON object keyed
// by event name.
func SchemaDocument() ([]byte, error) {
	doc := make(map[string]*jsonschema.Schema, len(payloads))
	for _, event := range Events() {
		s, err := Schema(event)
		if err != nil {
			return nil, err
		}
		doc[event] = s
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
