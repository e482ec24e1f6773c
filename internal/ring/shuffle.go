package ring

import (
	"math/rand/v2"
	"sync"
)

// Shuffler permutes the dispersion candidates that follow the primary node.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// RandShuffler is a seeded Shuffler, safe for concurrent use.
type RandShuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandShuffler returns a Shuffler whose sequence is fixed by seed.
func NewRandShuffler(seed uint64) *RandShuffler {
	return &RandShuffler{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Shuffle implements Shuffler.
func (s *RandShuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(n, swap)
}
