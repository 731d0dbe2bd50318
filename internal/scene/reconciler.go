package scene

import (
	"errors"
	"log"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSizePercent is the node size used when the server does not send a
// relative size. Absolute pixel sizes are never trusted.
const DefaultSizePercent = 6.0

// Options tunes the reconciler.
type Options struct {
	DebugColliders     bool    // push collider overlays to the surface
	DefaultSizePercent float64 // size for appearances without useRelativeSize
}

// Result summarizes one Reconcile call.
type Result struct {
	Created    []string
	Updated    []string
	Removed    []string
	Unchanged  int
	Malformed  int // descriptors without an id
	Missing    int // descriptors skipped because their node was gone
	Duplicates int // repeated ids within the snapshot
}

// Reconciler applies snapshots to a Surface. It owns the identity table and
// must only be used from one goroutine.
type Reconciler struct {
	surface Surface
	table   *Table
	opts    Options
	gen     uint64
	order   []string // last paint order, back-to-front

	warn rate.Sometimes
}

// NewReconciler creates a reconciler whose self entity is the host-owned
// node self.
func NewReconciler(surface Surface, self Handle, opts Options) *Reconciler {
	if opts.DefaultSizePercent <= 0 {
		opts.DefaultSizePercent = DefaultSizePercent
	}

	t := newTable()
	t.rows[SelfID] = &row{
		handle:   self,
		applied:  Attributes{Opacity: 1, Visible: true},
		fresh:    true,
		external: true,
	}

	return &Reconciler{
		surface: surface,
		table:   t,
		opts:    opts,
		order:   []string{SelfID},
		warn:    rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// Reconcile brings the surface in line with snap. Descriptors are processed
// in ascending zIndex (stable), ids missing from snap are removed, and the
// surface is restacked so later-painted entities sit on top.
func (r *Reconciler) Reconcile(snap Snapshot) Result {
	r.gen++
	var res Result

	sorted := make([]Descriptor, 0, len(snap.Entities))
	for _, d := range snap.Entities {
		if d.ID == "" {
			res.Malformed++
			r.warnf("⚠️ Skipping descriptor without id at (%.1f, %.1f)", d.X, d.Y)
			continue
		}
		sorted = append(sorted, d)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ZIndex < sorted[j].ZIndex
	})

	placed := make(map[string]int, len(sorted)) // id -> index in order
	order := make([]string, 0, len(sorted)+1)

	for _, d := range sorted {
		if _, dup := placed[d.ID]; dup {
			res.Duplicates++
		}

		rw, exists := r.table.rows[d.ID]
		if !exists {
			h, err := r.surface.Create(d.ID)
			if err != nil {
				r.warnf("⚠️ Could not create node for %q: %v", d.ID, err)
				continue
			}
			rw = &row{
				handle:  h,
				applied: Attributes{Opacity: 1},
				fresh:   true,
			}
			r.table.rows[d.ID] = rw
			res.Created = append(res.Created, d.ID)
		}

		changed, err := r.apply(rw, d)
		if err != nil {
			res.Missing++
			r.warnf("⚠️ Skipping %q: %v", d.ID, err)
			if errors.Is(err, ErrNodeNotFound) && !rw.external {
				// Drop the stale row so the next snapshot recreates the node.
				delete(r.table.rows, d.ID)
			}
			continue
		}
		rw.seen = r.gen

		if exists {
			if changed {
				res.Updated = append(res.Updated, d.ID)
			} else {
				res.Unchanged++
			}
		}

		if pos, dup := placed[d.ID]; dup {
			order[pos] = ""
		}
		placed[d.ID] = len(order)
		order = append(order, d.ID)
	}

	for _, id := range r.table.IDs() {
		rw := r.table.rows[id]
		if rw.external || rw.seen == r.gen {
			continue
		}
		if err := r.surface.Destroy(rw.handle); err != nil {
			r.warnf("⚠️ Removing %q: %v", id, err)
		}
		delete(r.table.rows, id)
		res.Removed = append(res.Removed, id)
	}

	r.restack(order, placed)
	return res
}

// apply pushes the attributes present in d to the row's node. It reports
// whether anything on the surface changed.
func (r *Reconciler) apply(rw *row, d Descriptor) (bool, error) {
	attrs := r.resolve(rw.applied, d)

	changed := false
	if rw.fresh || attrs != rw.applied {
		if err := r.surface.Apply(rw.handle, attrs); err != nil {
			return false, err
		}
		rw.applied = attrs
		rw.fresh = false
		changed = true
	}

	if r.opts.DebugColliders && d.Colliders != nil && !sameColliders(d.Colliders, rw.colliders) {
		if err := r.surface.SetColliders(rw.handle, d.Colliders); err != nil {
			return changed, err
		}
		rw.colliders = append([]Collider(nil), d.Colliders...)
		changed = true
	}

	rw.desc = mergeDescriptor(rw.desc, d)
	return changed, nil
}

// resolve derives node attributes from prev and the fields present in d.
func (r *Reconciler) resolve(prev Attributes, d Descriptor) Attributes {
	a := prev
	a.X = d.X
	a.Y = d.Y
	a.ZIndex = d.ZIndex
	a.Visible = d.Active

	if ap := d.Appearance; ap != nil {
		a.Image = ap.Image
		a.Angle = ap.Angle
		a.Opacity = clamp01(ap.Opacity)
		if ap.UseRelativeSize {
			a.Width = ap.Width
			a.Height = ap.Height
		} else {
			a.Width = r.opts.DefaultSizePercent
			a.Height = r.opts.DefaultSizePercent
		}
	}
	return a
}

func (r *Reconciler) restack(order []string, placed map[string]int) {
	compact := make([]string, 0, len(order)+1)
	if _, ok := placed[SelfID]; !ok {
		// Self keeps a slot at the back when the snapshot omits it.
		compact = append(compact, SelfID)
	}
	for _, id := range order {
		if id != "" {
			compact = append(compact, id)
		}
	}

	handles := make([]Handle, 0, len(compact))
	for _, id := range compact {
		if rw, ok := r.table.rows[id]; ok {
			handles = append(handles, rw.handle)
		}
	}
	if err := r.surface.Restack(handles); err != nil {
		r.warnf("⚠️ Restack failed: %v", err)
	}
	r.order = compact
}

// Lookup returns the identity table row for id.
func (r *Reconciler) Lookup(id string) (Entry, bool) {
	return r.table.Lookup(id)
}

// Len returns the number of tracked entities, self included.
func (r *Reconciler) Len() int {
	return r.table.Len()
}

// Entries returns all tracked entities in paint order, back-to-front.
func (r *Reconciler) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		if rw, ok := r.table.rows[id]; ok {
			out = append(out, rw.entry(id))
		}
	}
	return out
}

// Self returns the merged descriptor of the self entity once it has appeared
// in a snapshot.
func (r *Reconciler) Self() (Descriptor, bool) {
	rw := r.table.rows[SelfID]
	if rw == nil || rw.seen == 0 {
		return Descriptor{}, false
	}
	return rw.desc, true
}

// SelfPosition returns the last known self position in play-field percent.
func (r *Reconciler) SelfPosition() (x, y float64, ok bool) {
	d, ok := r.Self()
	if !ok {
		return 0, 0, false
	}
	return d.X, d.Y, true
}

func (r *Reconciler) warnf(format string, args ...any) {
	r.warn.Do(func() {
		log.Printf(format, args...)
	})
}

// mergeDescriptor keeps optional fields from prev that next does not carry.
func mergeDescriptor(prev, next Descriptor) Descriptor {
	if next.Appearance == nil {
		next.Appearance = prev.Appearance
	}
	if next.Health == nil {
		next.Health = prev.Health
	}
	if next.Temperature == nil {
		next.Temperature = prev.Temperature
	}
	if next.Colliders == nil {
		next.Colliders = prev.Colliders
	}
	if next.ActiveWeaponCount == nil {
		next.ActiveWeaponCount = prev.ActiveWeaponCount
	}
	return next
}

func sameColliders(a, b []Collider) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
