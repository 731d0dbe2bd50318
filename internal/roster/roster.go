// Package roster tracks the lobby's player list as announced by the server.
package roster

// Player is one connected player.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Self bool   `json:"self,omitempty"`
}

// Label returns the display name, marking the local player.
func (p Player) Label() string {
	if p.Self {
		return p.Name + " (You)"
	}
	return p.Name
}

// Roster keeps players in join order. Not safe for concurrent use.
type Roster struct {
	players []Player
	selfID  string
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{}
}

// Replace swaps in a full list.
func (r *Roster) Replace(players []Player) {
	r.players = r.players[:0]
	for _, p := range players {
		if p.ID == "" {
			continue
		}
		r.upsert(p)
	}
}

// Join adds a player, or renames it if already present.
func (r *Roster) Join(p Player) {
	if p.ID == "" {
		return
	}
	r.upsert(p)
}

// Leave removes a player and returns it.
func (r *Roster) Leave(id string) (Player, bool) {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return r.mark(p), true
		}
	}
	return Player{}, false
}

// Update renames a known player. Unknown ids are ignored.
func (r *Roster) Update(p Player) bool {
	for i := range r.players {
		if r.players[i].ID == p.ID {
			r.players[i].Name = p.Name
			return true
		}
	}
	return false
}

// SetSelf records the local player's id.
func (r *Roster) SetSelf(id string) {
	r.selfID = id
}

// SelfID returns the local player's id, if known.
func (r *Roster) SelfID() string { return r.selfID }

// Clear drops every player. The self id survives.
func (r *Roster) Clear() {
	r.players = r.players[:0]
}

// Len returns the number of players.
func (r *Roster) Len() int { return len(r.players) }

// Get returns the player with the given id.
func (r *Roster) Get(id string) (Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return r.mark(p), true
		}
	}
	return Player{}, false
}

// Players returns a copy of the roster in join order with Self resolved.
func (r *Roster) Players() []Player {
	out := make([]Player, len(r.players))
	for i, p := range r.players {
		out[i] = r.mark(p)
	}
	return out
}

func (r *Roster) upsert(p Player) {
	p.Self = false
	for i := range r.players {
		if r.players[i].ID == p.ID {
			r.players[i] = p
			return
		}
	}
	r.players = append(r.players, p)
}

func (r *Roster) mark(p Player) Player {
	p.Self = r.selfID != "" && p.ID == r.selfID
	return p
}
