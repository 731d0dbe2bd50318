package scene

import "errors"

var (
	// ErrNodeNotFound is returned by a Surface when a handle no longer refers
	// to a live node.
	ErrNodeNotFound = errors.New("scene: visual node not found")

	// ErrExternalNode is returned when asked to destroy a node the Surface
	// does not own.
	ErrExternalNode = errors.New("scene: node is externally owned")

	// ErrMissingID marks a descriptor without an id.
	ErrMissingID = errors.New("scene: descriptor has no id")
)

// Handle identifies a visual node on a Surface.
type Handle uint64

// Attributes are the resolved visual properties applied to a node.
type Attributes struct {
	X       float64 `json:"x"` // percent of play field, node center
	Y       float64 `json:"y"`
	Width   float64 `json:"width"` // percent of play field
	Height  float64 `json:"height"`
	Image   string  `json:"image,omitempty"`
	Angle   float64 `json:"angle"` // radians
	Opacity float64 `json:"opacity"`
	Visible bool    `json:"visible"`
	ZIndex  int     `json:"zIndex"`
}

// Surface is the visual tree the reconciler drives. Implementations are not
// required to be safe for concurrent use; the session loop is the only caller.
type Surface interface {
	// Create makes a new node for the entity id and returns its handle.
	Create(id string) (Handle, error)
	// Apply replaces the node's attributes.
	Apply(h Handle, attrs Attributes) error
	// SetColliders replaces the node's collider debug overlay.
	SetColliders(h Handle, colliders []Collider) error
	// Destroy removes the node.
	Destroy(h Handle) error
	// Restack sets paint order back-to-front. Nodes not listed keep their
	// relative order beneath the listed ones.
	Restack(order []Handle) error
}
