package ring

import "cdnrouter/internal/hashing"

// DefaultPointsPerWeight is the number of ring points generated per unit of
// weight. With the default, a node of weight 100 owns 100 points.
const DefaultPointsPerWeight = 1.0

// DefaultMaxPointsPerNode caps the ring points of a single node. A weight
// needing more points than the cap is rejected.
const DefaultMaxPointsPerNode = 1 << 20

type options struct {
	hashFn          hashing.Function
	searcher        Searcher
	shuffler        Shuffler
	pointsPerWeight float64
	maxPoints       int
}

func defaultOptions() options {
	return options{
		hashFn:          hashing.Default,
		searcher:        BinarySearcher{},
		shuffler:        globalShuffler{},
		pointsPerWeight: DefaultPointsPerWeight,
		maxPoints:       DefaultMaxPointsPerNode,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Hasher or a Hashable.
type Option func(*options)

// WithHashFunction sets the function used for both ring points and keys.
func WithHashFunction(fn hashing.Function) Option {
	return func(o *options) {
		if fn != nil {
			o.hashFn = fn
		}
	}
}

// WithSearcher replaces the binary searcher.
func WithSearcher(s Searcher) Option {
	return func(o *options) {
		if s != nil {
			o.searcher = s
		}
	}
}

// WithShuffler sets the randomness source for shuffled dispersion.
func WithShuffler(s Shuffler) Option {
	return func(o *options) {
		if s != nil {
			o.shuffler = s
		}
	}
}

// WithPointsPerWeight sets how many ring points one unit of weight buys.
// Non-positive values are ignored.
func WithPointsPerWeight(k float64) Option {
	return func(o *options) {
		if k > 0 {
			o.pointsPerWeight = k
		}
	}
}

// WithMaxPointsPerNode sets the largest number of ring points one node may
// own. Non-positive values are ignored.
func WithMaxPointsPerNode(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPoints = n
		}
	}
}
