package ring

import "sort"

// Searcher locates a query value on a sorted, circular sequence of points.
type Searcher interface {
	// Search returns the index of the first point >= q, or 0 when q is
	// greater than every point. Empty input returns ErrNoPoints.
	Search(points []uint64, q uint64) (int, error)
}

// BinarySearcher is the O(log n) Searcher used by default.
type BinarySearcher struct{}

// Search implements Searcher.
func (BinarySearcher) Search(points []uint64, q uint64) (int, error) {
	if len(points) == 0 {
		return 0, ErrNoPoints
	}

	idx := sort.Search(len(points), func(i int) bool {
		return points[i] >= q
	})

	// Wrap around if q is greater than all points
	if idx >= len(points) {
		idx = 0
	}
	return idx, nil
}
