package ring

import "cdnrouter/internal/dispersion"

// Hasher builds nodes and rings with a shared set of collaborators: the hash
// function, the searcher, the shuffler and the weight-to-points ratio.
type Hasher struct {
	opts options
}

// NewHasher returns a Hasher configured by opts.
func NewHasher(opts ...Option) *Hasher {
	return &Hasher{opts: buildOptions(opts)}
}

// NewHashable builds a node using the Hasher's hash function and ratio.
func (h *Hasher) NewHashable(id string, weight float64) (*Hashable, error) {
	return newHashable(id, weight, h.opts)
}

// Build merges nodes into a Ring. Nodes should have been created by the same
// Hasher, otherwise keys and points are hashed differently.
func (h *Hasher) Build(nodes []*Hashable) (*Ring, error) {
	return newRing(nodes, h.opts)
}

// SelectOne picks the primary node for key among nodes.
func (h *Hasher) SelectOne(nodes []*Hashable, d dispersion.Dispersion, key string) (*Hashable, error) {
	d.Limit = 1
	selected, err := h.SelectMany(nodes, d, key)
	if err != nil {
		return nil, err
	}
	return selected[0], nil
}

// SelectMany returns min(d.EffectiveLimit(), len(nodes)) distinct nodes for
// key. It builds a ring for this call only; callers routing many requests
// against the same nodes should Build once and select from the Ring.
func (h *Hasher) SelectMany(nodes []*Hashable, d dispersion.Dispersion, key string) ([]*Hashable, error) {
	r, err := h.Build(nodes)
	if err != nil {
		return nil, err
	}
	return r.SelectMany(d, key)
}

// MaxPointsPerNode returns the per-node point cap.
func (h *Hasher) MaxPointsPerNode() int {
	return h.opts.maxPoints
}

// PointsPerWeight returns the configured weight-to-points ratio.
func (h *Hasher) PointsPerWeight() float64 {
	return h.opts.pointsPerWeight
}
