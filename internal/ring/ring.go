package ring

import (
	"fmt"
	"sort"

	"cdnrouter/internal/dispersion"
	"cdnrouter/internal/hashing"
)

// Ring is an immutable merge of the ring points of a set of nodes, sorted
// ascending. Selections never modify it.
type Ring struct {
	nodes  []*Hashable // sorted by ID
	points []uint64
	owners []int32 // owners[i] indexes nodes for points[i]

	hashFn   hashing.Function
	searcher Searcher
	shuffler Shuffler
}

type entry struct {
	point uint64
	owner int32
}

func newRing(nodes []*Hashable, o options) (*Ring, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyPool
	}

	sorted := append([]*Hashable(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].id < sorted[j].id
	})

	total := 0
	for i, n := range sorted {
		if n == nil {
			return nil, fmt.Errorf("ring: nil node at position %d", i)
		}
		if i > 0 && sorted[i-1].id == n.id {
			return nil, fmt.Errorf("ring: duplicate node id %q", n.id)
		}
		mustBeSorted(n)
		total += len(n.points)
	}

	entries := make([]entry, 0, total)
	for i, n := range sorted {
		for _, p := range n.points {
			entries = append(entries, entry{point: p, owner: int32(i)})
		}
	}

	// Equal points from different nodes are ordered by node ID, which is the
	// owner index order.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].point != entries[j].point {
			return entries[i].point < entries[j].point
		}
		return entries[i].owner < entries[j].owner
	})

	r := &Ring{
		nodes:    sorted,
		points:   make([]uint64, len(entries)),
		owners:   make([]int32, len(entries)),
		hashFn:   o.hashFn,
		searcher: o.searcher,
		shuffler: o.shuffler,
	}
	for i, e := range entries {
		r.points[i] = e.point
		r.owners[i] = e.owner
	}
	return r, nil
}

// NewRing builds a Ring with the default collaborators.
func NewRing(nodes []*Hashable, opts ...Option) (*Ring, error) {
	return newRing(nodes, buildOptions(opts))
}

func mustBeSorted(n *Hashable) {
	if len(n.points) == 0 {
		panic(fmt.Sprintf("ring: node %q has no points", n.id))
	}
	for i := 1; i < len(n.points); i++ {
		if n.points[i-1] >= n.points[i] {
			panic(fmt.Sprintf("ring: points of node %q are not strictly ascending", n.id))
		}
	}
}

// SelectOne returns the owner of the first ring point at or after the key.
func (r *Ring) SelectOne(key string) (*Hashable, error) {
	selected, err := r.SelectMany(dispersion.Default(), key)
	if err != nil {
		return nil, err
	}
	return selected[0], nil
}

// SelectMany walks the ring clockwise from the key's position and returns
// up to d.EffectiveLimit() distinct nodes in encounter order. The set of
// nodes is fully determined by the ring and the key. When d.Shuffled is set,
// every node after the first is returned in random order; the first node is
// always the primary owner.
func (r *Ring) SelectMany(d dispersion.Dispersion, key string) ([]*Hashable, error) {
	if r == nil || len(r.nodes) == 0 {
		return nil, ErrEmptyPool
	}

	limit := d.EffectiveLimit()
	if limit > len(r.nodes) {
		limit = len(r.nodes)
	}

	idx, err := r.searcher.Search(r.points, r.hashFn.Hash(key))
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(r.points) {
		return nil, fmt.Errorf("ring: searcher returned index %d for %d points", idx, len(r.points))
	}

	if limit == 1 {
		return []*Hashable{r.nodes[r.owners[idx]]}, nil
	}

	seen := make([]bool, len(r.nodes))
	selected := make([]*Hashable, 0, limit)

	// Start from the primary owner and walk forward
	for i := 0; i < len(r.points) && len(selected) < limit; i++ {
		owner := r.owners[(idx+i)%len(r.points)]
		if seen[owner] {
			continue
		}
		seen[owner] = true
		selected = append(selected, r.nodes[owner])
	}

	if d.Shuffled && len(selected) > 2 {
		tail := selected[1:]
		r.shuffler.Shuffle(len(tail), func(i, j int) {
			tail[i], tail[j] = tail[j], tail[i]
		})
	}
	return selected, nil
}

// Owner returns the ID of the primary node for key, or "" on an empty ring.
func (r *Ring) Owner(key string) string {
	n, err := r.SelectOne(key)
	if err != nil {
		return ""
	}
	return n.id
}

// Nodes returns the ring's nodes sorted by ID.
func (r *Ring) Nodes() []*Hashable {
	if r == nil {
		return nil
	}
	return append([]*Hashable(nil), r.nodes...)
}

// Node returns the node with the given ID.
func (r *Ring) Node(id string) (*Hashable, bool) {
	if r == nil {
		return nil, false
	}
	i := sort.Search(len(r.nodes), func(i int) bool {
		return r.nodes[i].id >= id
	})
	if i < len(r.nodes) && r.nodes[i].id == id {
		return r.nodes[i], true
	}
	return nil, false
}

// Len returns the number of points on the ring.
func (r *Ring) Len() int {
	if r == nil {
		return 0
	}
	return len(r.points)
}
