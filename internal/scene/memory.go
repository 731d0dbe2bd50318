package scene

import "fmt"

// Node is a visual node held by a MemorySurface.
type Node struct {
	Handle     Handle     `json:"handle"`
	ID         string     `json:"id"`
	Attributes Attributes `json:"attributes"`
	Colliders  []Collider `json:"colliders,omitempty"`
	External   bool       `json:"external"`
}

// MemorySurface is an in-memory visual tree. It backs headless clients, the
// debug frame renderer and tests.
type MemorySurface struct {
	next  Handle
	nodes map[Handle]*Node
	order []Handle // back-to-front

	created   int
	destroyed int
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		nodes: make(map[Handle]*Node),
	}
}

// Attach registers a node owned by the host (the self ship). It can be
// updated and restacked but never destroyed.
func (s *MemorySurface) Attach(id string) Handle {
	s.next++
	h := s.next
	s.nodes[h] = &Node{
		Handle:     h,
		ID:         id,
		Attributes: Attributes{Opacity: 1, Visible: true},
		External:   true,
	}
	s.order = append(s.order, h)
	return h
}

// Create implements Surface.
func (s *MemorySurface) Create(id string) (Handle, error) {
	if id == "" {
		return 0, ErrMissingID
	}
	s.next++
	h := s.next
	s.nodes[h] = &Node{
		Handle:     h,
		ID:         id,
		Attributes: Attributes{Opacity: 1, Visible: true},
	}
	s.order = append(s.order, h)
	s.created++
	return h, nil
}

// Apply implements Surface.
func (s *MemorySurface) Apply(h Handle, attrs Attributes) error {
	n, ok := s.nodes[h]
	if !ok {
		return fmt.Errorf("apply %d: %w", h, ErrNodeNotFound)
	}
	n.Attributes = attrs
	return nil
}

// SetColliders implements Surface.
func (s *MemorySurface) SetColliders(h Handle, colliders []Collider) error {
	n, ok := s.nodes[h]
	if !ok {
		return fmt.Errorf("colliders %d: %w", h, ErrNodeNotFound)
	}
	n.Colliders = append(n.Colliders[:0], colliders...)
	return nil
}

// Destroy implements Surface.
func (s *MemorySurface) Destroy(h Handle) error {
	n, ok := s.nodes[h]
	if !ok {
		return fmt.Errorf("destroy %d: %w", h, ErrNodeNotFound)
	}
	if n.External {
		return fmt.Errorf("destroy %q: %w", n.ID, ErrExternalNode)
	}
	delete(s.nodes, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.destroyed++
	return nil
}

// Restack implements Surface. Unknown handles are ignored.
func (s *MemorySurface) Restack(order []Handle) error {
	listed := make(map[Handle]bool, len(order))
	for _, h := range order {
		if _, ok := s.nodes[h]; ok {
			listed[h] = true
		}
	}

	next := make([]Handle, 0, len(s.nodes))
	for _, h := range s.order {
		if !listed[h] {
			next = append(next, h)
		}
	}
	for _, h := range order {
		if listed[h] {
			next = append(next, h)
			delete(listed, h)
		}
	}
	s.order = next
	return nil
}

// Node returns a copy of the node behind h.
func (s *MemorySurface) Node(h Handle) (Node, bool) {
	n, ok := s.nodes[h]
	if !ok {
		return Node{}, false
	}
	return copyNode(n), true
}

// NodeByID returns the node registered for an entity id.
func (s *MemorySurface) NodeByID(id string) (Node, bool) {
	for _, h := range s.order {
		if n := s.nodes[h]; n.ID == id {
			return copyNode(n), true
		}
	}
	return Node{}, false
}

// PaintOrder returns copies of all nodes back-to-front.
func (s *MemorySurface) PaintOrder() []Node {
	out := make([]Node, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, copyNode(s.nodes[h]))
	}
	return out
}

// Len returns the number of live nodes, external ones included.
func (s *MemorySurface) Len() int {
	return len(s.nodes)
}

// Counts returns how many nodes were created and destroyed over the
// surface's lifetime.
func (s *MemorySurface) Counts() (created, destroyed int) {
	return s.created, s.destroyed
}

func copyNode(n *Node) Node {
	c := *n
	if n.Colliders != nil {
		c.Colliders = append([]Collider(nil), n.Colliders...)
	}
	return c
}
