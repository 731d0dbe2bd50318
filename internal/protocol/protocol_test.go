package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Flgjfvevdk/pilot-together/internal/input"
	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

func decodeSnapshot(t *testing.T, frame string) scene.Snapshot {
	t.Helper()
	env, err := DecodeEnvelope([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	msg, err := Decode(env)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	snap, ok := msg.(*SnapshotMessage)
	if !ok {
		t.Fatalf("Expected *SnapshotMessage, got %T", msg)
	}
	return snap.ToSnapshot()
}

// TestDecodeSnapshotDefaults tests wire defaults for zIndex, active and opacity
func TestDecodeSnapshotDefaults(t *testing.T) {
	snap := decodeSnapshot(t, `{"event":"game_state_update","data":{"gameObjects":[
		{"id":"a1","x":10,"y":20},
		{"id":"a2","x":1,"y":2,"zIndex":4,"active":false,
		 "image":{"url":"rock.png","width":64,"height":32,"angle":1.5}}
	]}}`)

	if len(snap.Entities) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(snap.Entities))
	}
	a1 := snap.Entities[0]
	if a1.ZIndex != 0 || !a1.Active || a1.Appearance != nil {
		t.Errorf("Unexpected defaults for a1: %+v", a1)
	}
	a2 := snap.Entities[1]
	if a2.Active || a2.ZIndex != 4 {
		t.Errorf("Expected a2 inactive at zIndex 4, got %+v", a2)
	}
	if a2.Appearance == nil || a2.Appearance.Opacity != 1 || a2.Appearance.Image != "rock.png" {
		t.Errorf("Expected default opacity 1, got %+v", a2.Appearance)
	}
}

// TestDecodeRelativeSize tests that relative sizing uses the entity's own dimensions
func TestDecodeRelativeSize(t *testing.T) {
	snap := decodeSnapshot(t, `{"event":"game_state_update","data":{"gameObjects":[
		{"id":"ast","x":5,"y":5,"width":7,"height":9,
		 "image":{"url":"a.png","width":300,"height":200,"opacity":0.5,"useRelativeSize":true}},
		{"id":"px","x":5,"y":5,"width":7,"height":9,
		 "image":{"url":"b.png","width":300,"height":200}}
	]}}`)

	rel := snap.Entities[0].Appearance
	if !rel.UseRelativeSize || rel.Width != 7 || rel.Height != 9 || rel.Opacity != 0.5 {
		t.Errorf("Expected relative 7x9 at 0.5 opacity, got %+v", rel)
	}
	abs := snap.Entities[1].Appearance
	if abs.UseRelativeSize || abs.Width != 300 || abs.Height != 200 {
		t.Errorf("Expected pixel size kept for absolute sprite, got %+v", abs)
	}
}

// TestDecodeFlattenedSelf tests synthesis and merge of the top-level self fields
func TestDecodeFlattenedSelf(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		wantX     float64
		wantImage string
		wantCount int
	}{
		{
			name: "flattened only",
			frame: `{"event":"game_state_update","data":{"shipX":40,"shipY":60,
				"image":{"url":"ship.png"},"gameObjects":[{"id":"a1","x":1,"y":1}]}}`,
			wantX:     40,
			wantImage: "ship.png",
			wantCount: 2,
		},
		{
			name: "nested wins",
			frame: `{"event":"game_state_update","data":{"shipX":40,"shipY":60,
				"image":{"url":"ship.png"},"gameObjects":[{"id":"spaceship","x":51,"y":50}]}}`,
			wantX:     51,
			wantImage: "ship.png",
			wantCount: 1,
		},
		{
			name: "nested image kept",
			frame: `{"event":"game_state_update","data":{"shipX":40,
				"image":{"url":"flat.png"},"gameObjects":[{"id":"spaceship","x":51,"y":50,"image":{"url":"nested.png"}}]}}`,
			wantX:     51,
			wantImage: "nested.png",
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := decodeSnapshot(t, tt.frame)
			if len(snap.Entities) != tt.wantCount {
				t.Fatalf("Expected %d entities, got %d", tt.wantCount, len(snap.Entities))
			}
			var self *scene.Descriptor
			for i := range snap.Entities {
				if snap.Entities[i].ID == scene.SelfID {
					self = &snap.Entities[i]
				}
			}
			if self == nil {
				t.Fatal("Expected a self descriptor")
			}
			if self.X != tt.wantX {
				t.Errorf("Expected x=%v, got %v", tt.wantX, self.X)
			}
			if self.Appearance == nil || self.Appearance.Image != tt.wantImage {
				t.Errorf("Expected image %q, got %+v", tt.wantImage, self.Appearance)
			}
		})
	}
}

// TestDecodeTemperature tests both gauge encodings
func TestDecodeTemperature(t *testing.T) {
	snap := decodeSnapshot(t, `{"event":"game_state_update","data":{"gameObjects":[
		{"id":"spaceship","x":0,"y":0,"temperature":35,"maxTemperature":100,
		 "health":{"current":80,"max":200}},
		{"id":"b","x":0,"y":0,"temperature":{"current":2,"max":4}}
	]}}`)

	self := snap.Entities[0]
	if self.Temperature == nil || self.Temperature.Current != 35 || self.Temperature.Max != 100 {
		t.Errorf("Expected temperature 35/100, got %+v", self.Temperature)
	}
	if self.Health == nil || self.Health.Ratio() != 0.4 {
		t.Errorf("Expected health ratio 0.4, got %+v", self.Health)
	}
	if other := snap.Entities[1].Temperature; other == nil || other.Ratio() != 0.5 {
		t.Errorf("Expected object gauge 2/4, got %+v", other)
	}
}

// TestDecodeColliders tests that an empty collider list differs from an absent one
func TestDecodeColliders(t *testing.T) {
	snap := decodeSnapshot(t, `{"event":"game_state_update","data":{"gameObjects":[
		{"id":"a","x":0,"y":0,"colliders":[{"width":5,"height":5}]},
		{"id":"b","x":0,"y":0,"colliders":[]},
		{"id":"c","x":0,"y":0}
	]}}`)

	if got := snap.Entities[0].Colliders; len(got) != 1 || got[0].Width != 5 {
		t.Errorf("Expected one 5x5 collider, got %+v", got)
	}
	if got := snap.Entities[1].Colliders; got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil colliders, got %#v", got)
	}
	if got := snap.Entities[2].Colliders; got != nil {
		t.Errorf("Expected nil colliders when absent, got %#v", got)
	}
}

// TestDecodeEvents tests typed decoding of the non-snapshot events
func TestDecodeEvents(t *testing.T) {
	tests := []struct {
		frame string
		check func(t *testing.T, v any)
	}{
		{`{"event":"player_list","data":[{"id":"p1","name":"Ann"},{"id":"p2","name":"Bo"}]}`, func(t *testing.T, v any) {
			if list, ok := v.([]PlayerData); !ok || len(list) != 2 || list[1].Name != "Bo" {
				t.Errorf("Unexpected player list %#v", v)
			}
		}},
		{`{"event":"player_joined","data":{"id":"p3","name":"Cy"}}`, func(t *testing.T, v any) {
			if p, ok := v.(PlayerData); !ok || p.ID != "p3" {
				t.Errorf("Unexpected player %#v", v)
			}
		}},
		{`{"event":"spaceship_health_update","data":{"health":{"current":50,"max":100}}}`, func(t *testing.T, v any) {
			h, ok := v.(HealthUpdate)
			if !ok || h.ToGauge().Ratio() != 0.5 {
				t.Errorf("Unexpected health %#v", v)
			}
		}},
		{`{"event":"update_active_cannons","data":{"active_cannons":2}}`, func(t *testing.T, v any) {
			if c, ok := v.(CannonsUpdate); !ok || c.ActiveCannons != 2 {
				t.Errorf("Unexpected cannons %#v", v)
			}
		}},
		{`{"event":"game_paused"}`, func(t *testing.T, v any) {
			if n, ok := v.(Notice); !ok || n.Event != EventGamePaused {
				t.Errorf("Unexpected notice %#v", v)
			}
		}},
		{`{"event":"welcome","data":{"id":"sid-1"}}`, func(t *testing.T, v any) {
			if w, ok := v.(Welcome); !ok || w.ID != "sid-1" {
				t.Errorf("Unexpected welcome %#v", v)
			}
		}},
	}

	for _, tt := range tests {
		env, err := DecodeEnvelope([]byte(tt.frame))
		if err != nil {
			t.Fatalf("DecodeEnvelope(%s) failed: %v", tt.frame, err)
		}
		v, err := Decode(env)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", env.Event, err)
		}
		tt.check(t, v)
	}
}

// TestDecodeErrors tests rejection of bad frames
func TestDecodeErrors(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{"data":{}}`)); !errors.Is(err, ErrEmptyEvent) {
		t.Errorf("Expected ErrEmptyEvent, got %v", err)
	}
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	big := make([]byte, MaxMessageSize+1)
	if _, err := DecodeEnvelope(big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
	if _, err := Decode(Envelope{Event: "bogus"}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
	bad := Envelope{Event: EventGameState, Data: json.RawMessage(`{"gameObjects":"nope"}`)}
	if _, err := Decode(bad); err == nil {
		t.Error("Expected error for malformed snapshot")
	}
}

// TestEncodeIntent tests the outbound frame for each intent kind
func TestEncodeIntent(t *testing.T) {
	tests := []struct {
		intent input.Intent
		want   string
	}{
		{input.Intent{Kind: input.KindPressed, Control: input.Up}, `{"event":"key_down","data":{"key":"up"}}`},
		{input.Intent{Kind: input.KindReleased, Control: input.Cool}, `{"event":"key_up","data":{"key":"cool"}}`},
		{input.Intent{Kind: input.KindAim, Angle: 90, Firing: true}, `{"event":"rotate_shoot","data":{"angle":90,"firing":true}}`},
		{input.Intent{Kind: input.KindAim, Angle: 90}, `{"event":"rotate_shoot","data":{"angle":90,"firing":false}}`},
		{input.Intent{Kind: input.KindWeapon, Weapon: 3}, `{"event":"weapon_select","data":{"weapon":3}}`},
		{input.Intent{Kind: input.KindRepair}, `{"event":"repair","data":{}}`},
	}

	for _, tt := range tests {
		_, frame, err := EncodeIntent(tt.intent)
		if err != nil {
			t.Fatalf("EncodeIntent(%v) failed: %v", tt.intent.Kind, err)
		}
		if string(frame) != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, frame)
		}
	}

	if _, _, err := EncodeIntent(input.Intent{Kind: input.Kind(42)}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}

// TestEncodeNilPayload tests that a nil payload becomes an empty object
func TestEncodeNilPayload(t *testing.T) {
	frame, err := Encode(EventRequestGameState, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(frame) != `{"event":"request_game_state","data":{}}` {
		t.Errorf("Unexpected frame %s", frame)
	}
	if _, err := Encode("", nil); !errors.Is(err, ErrEmptyEvent) {
		t.Errorf("Expected ErrEmptyEvent, got %v", err)
	}
}

// TestSchemaDocument tests that every event reflects to a schema
func TestSchemaDocument(t *testing.T) {
	doc, err := SchemaDocument()
	if err != nil {
		t.Fatalf("SchemaDocument failed: %v", err)
	}
	for _, want := range []string{`"game_state_update"`, `"gameObjects"`, `"rotate_shoot"`, `"active_cannons"`} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("Expected schema document to mention %s", want)
		}
	}
	if _, err := Schema("bogus"); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}
