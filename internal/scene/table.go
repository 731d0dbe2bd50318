package scene

import "sort"

// row is one identity table entry: the node handle plus the last state
// pushed to it.
type row struct {
	handle    Handle
	applied   Attributes
	colliders []Collider
	desc      Descriptor
	seen      uint64 // reconcile generation the id last appeared in
	fresh     bool   // nothing applied yet
	external  bool
}

// Entry is a read-only copy of an identity table row.
type Entry struct {
	ID         string     `json:"id"`
	Handle     Handle     `json:"handle"`
	Attributes Attributes `json:"attributes"`
	Colliders  []Collider `json:"colliders,omitempty"`
	Descriptor Descriptor `json:"descriptor"`
}

// Table maps entity ids to their visual node and last-applied attributes.
// There is exactly one row per id that has appeared and not been removed.
type Table struct {
	rows map[string]*row
}

func newTable() *Table {
	return &Table{rows: make(map[string]*row)}
}

// Len returns the number of rows, self included.
func (t *Table) Len() int {
	return len(t.rows)
}

// Lookup returns the row for id.
func (t *Table) Lookup(id string) (Entry, bool) {
	r, ok := t.rows[id]
	if !ok {
		return Entry{}, false
	}
	return r.entry(id), true
}

// IDs returns all ids in lexical order.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *row) entry(id string) Entry {
	e := Entry{
		ID:         id,
		Handle:     r.handle,
		Attributes: r.applied,
		Descriptor: r.desc,
	}
	if r.colliders != nil {
		e.Colliders = append([]Collider(nil), r.colliders...)
	}
	return e
}
