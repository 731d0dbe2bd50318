package roster

import (
	"reflect"
	"testing"
)

// TestRosterLifecycle tests replace, join, update and leave
func TestRosterLifecycle(t *testing.T) {
	r := New()
	r.SetSelf("p2")
	r.Replace([]Player{{ID: "p1", Name: "Ann"}, {ID: "p2", Name: "Bo"}, {ID: "", Name: "ghost"}})

	if r.Len() != 2 {
		t.Fatalf("Expected 2 players, got %d", r.Len())
	}

	r.Join(Player{ID: "p3", Name: "Cy"})
	r.Join(Player{ID: "p1", Name: "Annie"})
	if !r.Update(Player{ID: "p3", Name: "Cyd"}) {
		t.Error("Expected update of p3 to succeed")
	}
	if r.Update(Player{ID: "nope", Name: "x"}) {
		t.Error("Expected update of unknown player to fail")
	}

	want := []Player{
		{ID: "p1", Name: "Annie"},
		{ID: "p2", Name: "Bo", Self: true},
		{ID: "p3", Name: "Cyd"},
	}
	if got := r.Players(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	left, ok := r.Leave("p2")
	if !ok || left.Name != "Bo" || !left.Self {
		t.Errorf("Expected to remove self Bo, got %+v (%v)", left, ok)
	}
	if _, ok := r.Leave("p2"); ok {
		t.Error("Second leave should fail")
	}
	if r.Len() != 2 {
		t.Errorf("Expected 2 players, got %d", r.Len())
	}
}

// TestPlayerLabel tests the "(You)" marker
func TestPlayerLabel(t *testing.T) {
	r := New()
	r.Join(Player{ID: "a", Name: "Ann"})
	r.SetSelf("a")

	p, ok := r.Get("a")
	if !ok {
		t.Fatal("Expected player a")
	}
	if p.Label() != "Ann (You)" {
		t.Errorf("Expected 'Ann (You)', got %q", p.Label())
	}

	r.Clear()
	if r.Len() != 0 || r.SelfID() != "a" {
		t.Errorf("Clear should drop players but keep self id, got len=%d self=%q", r.Len(), r.SelfID())
	}
}
