package ring

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPool is returned when a selection is attempted without nodes.
	ErrEmptyPool = errors.New("ring: no nodes available for selection")
	// ErrNoPoints is returned by a Searcher given an empty point set.
	ErrNoPoints = errors.New("ring: search over empty point set")
)

// InvalidWeightError reports a node constructed with a weight that is not a
// positive finite number, or one that needs more than MaxPoints ring points.
type InvalidWeightError struct {
	ID     string
	Weight float64
	// MaxPoints is set when the weight was rejected for exceeding the
	// per-node point cap.
	MaxPoints int
}

func (e *InvalidWeightError) Error() string {
	if e.MaxPoints > 0 {
		return fmt.Sprintf("ring: invalid weight %v for node %q (exceeds %d points per node)", e.Weight, e.ID, e.MaxPoints)
	}
	return fmt.Sprintf("ring: invalid weight %v for node %q (must be > 0)", e.Weight, e.ID)
}
