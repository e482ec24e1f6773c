package ring

import (
	"errors"
	"math"
	"sort"
	"strconv"

	"cdnrouter/internal/hashing"
)

const replicaSeparator = "--"

// Hashable is a node placed on the ring: an identity, a weight and the ring
// points derived from them. It is immutable; a weight change means building a
// new Hashable for that node only.
type Hashable struct {
	id       string
	weight   float64
	points   []uint64
	searcher Searcher
}

// NewHashable builds the ring points for a node. The weight must be a
// positive finite number whose point count fits the per-node cap.
func NewHashable(id string, weight float64, opts ...Option) (*Hashable, error) {
	return newHashable(id, weight, buildOptions(opts))
}

func newHashable(id string, weight float64, o options) (*Hashable, error) {
	if id == "" {
		return nil, errors.New("ring: node id cannot be empty")
	}
	if !(weight > 0) || math.IsInf(weight, 0) {
		return nil, &InvalidWeightError{ID: id, Weight: weight}
	}

	count := PointCount(weight, o.pointsPerWeight)
	if count > o.maxPoints {
		return nil, &InvalidWeightError{ID: id, Weight: weight, MaxPoints: o.maxPoints}
	}
	return &Hashable{
		id:       id,
		weight:   weight,
		points:   GeneratePoints(o.hashFn, id, count),
		searcher: o.searcher,
	}, nil
}

// PointCount returns ceil(weight * pointsPerWeight), at least 1. It is
// monotonically non-decreasing in weight.
func PointCount(weight, pointsPerWeight float64) int {
	if pointsPerWeight <= 0 {
		pointsPerWeight = DefaultPointsPerWeight
	}
	n := math.Ceil(weight * pointsPerWeight)
	if n < 1 || math.IsNaN(n) {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// GeneratePoints hashes id+"--"+i for every replica index i in [0, count) and
// returns the distinct values in ascending order. The first k replicas are
// the same for every count >= k, so a larger count always yields a superset.
func GeneratePoints(fn hashing.Function, id string, count int) []uint64 {
	if count <= 0 {
		return []uint64{}
	}

	points := make([]uint64, count)
	for i := 0; i < count; i++ {
		points[i] = fn.Hash(id + replicaSeparator + strconv.Itoa(i))
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i] < points[j]
	})

	// Drop collisions between this node's own replicas.
	uniq := points[:1]
	for _, p := range points[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	return uniq
}

// ID returns the node identity.
func (h *Hashable) ID() string {
	return h.id
}

// Weight returns the weight the points were generated from.
func (h *Hashable) Weight() float64 {
	return h.weight
}

// Points returns a copy of the node's sorted ring points.
func (h *Hashable) Points() []uint64 {
	return append([]uint64(nil), h.points...)
}

// ClosestPoint returns the node's first point at or after q on the ring.
func (h *Hashable) ClosestPoint(q uint64) (uint64, error) {
	idx, err := h.searcher.Search(h.points, q)
	if err != nil {
		return 0, err
	}
	return h.points[idx], nil
}

func (h *Hashable) String() string {
	return h.id + "(" + strconv.FormatFloat(h.weight, 'f', -1, 64) + ")"
}
