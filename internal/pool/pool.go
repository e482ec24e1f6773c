package pool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"cdnrouter/internal/dispersion"
	"cdnrouter/internal/ring"
)

// ErrUnknownNode is returned when updating a node that is not in the pool.
var ErrUnknownNode = errors.New("pool: unknown node")

// Member is a delivery node as known to the pool.
type Member struct {
	ID     string  `json:"id" yaml:"id"`
	Addr   string  `json:"addr" yaml:"addr"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Snapshot is one published version of the pool. It is never modified.
type Snapshot struct {
	Version uint64
	Ring    *ring.Ring // nil when the pool is empty
	members map[string]Member
}

// Select returns the members chosen for key under d, primary first.
func (s *Snapshot) Select(d dispersion.Dispersion, key string) ([]Member, error) {
	if s == nil || s.Ring == nil {
		return nil, ring.ErrEmptyPool
	}
	nodes, err := s.Ring.SelectMany(d, key)
	if err != nil {
		return nil, err
	}
	out := make([]Member, len(nodes))
	for i, n := range nodes {
		out[i] = s.members[n.ID()]
	}
	return out, nil
}

// Member looks up a member of this snapshot by ID.
func (s *Snapshot) Member(id string) (Member, bool) {
	if s == nil {
		return Member{}, false
	}
	m, ok := s.members[id]
	return m, ok
}

// Members returns the snapshot's members sorted by ID.
func (s *Snapshot) Members() []Member {
	if s == nil {
		return []Member{}
	}
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Pool manages members and the ring built from them.
type Pool struct {
	mu       sync.Mutex // serializes writers
	hasher   *ring.Hasher
	members  map[string]Member
	nodes    map[string]*ring.Hashable
	version  uint64
	onChange []func(*Snapshot)
	log      *logrus.Entry

	current atomic.Pointer[Snapshot]
}

// New creates an empty pool. A nil hasher uses ring defaults and a nil
// logger uses the logrus standard logger.
func New(hasher *ring.Hasher, logger *logrus.Logger) *Pool {
	if hasher == nil {
		hasher = ring.NewHasher()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Pool{
		hasher:  hasher,
		members: make(map[string]Member),
		nodes:   make(map[string]*ring.Hashable),
		log:     logger.WithField("component", "pool"),
	}
	p.current.Store(&Snapshot{members: map[string]Member{}})
	return p
}

// OnChange registers fn to run after every published change. Callbacks run
// synchronously in publish order and must not modify the pool.
func (p *Pool) OnChange(fn func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Snapshot returns the current published snapshot.
func (p *Pool) Snapshot() *Snapshot {
	return p.current.Load()
}

// Select routes key against the current snapshot.
func (p *Pool) Select(d dispersion.Dispersion, key string) ([]Member, error) {
	return p.Snapshot().Select(d, key)
}

// SelectOne returns the primary member for key.
func (p *Pool) SelectOne(key string) (Member, error) {
	selected, err := p.Select(dispersion.Default(), key)
	if err != nil {
		return Member{}, err
	}
	return selected[0], nil
}

// Members returns the current members sorted by ID.
func (p *Pool) Members() []Member {
	return p.Snapshot().Members()
}

// Set replaces the whole membership. Nodes whose ID and weight did not change
// keep their ring points.
func (p *Pool) Set(members []Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	nextMembers := make(map[string]Member, len(members))
	nextNodes := make(map[string]*ring.Hashable, len(members))
	for _, m := range members {
		if _, dup := nextMembers[m.ID]; dup {
			return fmt.Errorf("pool: duplicate node id %q", m.ID)
		}
		n, err := p.nodeFor(m)
		if err != nil {
			return err
		}
		nextMembers[m.ID] = m
		nextNodes[m.ID] = n
	}

	return p.publish(nextMembers, nextNodes)
}

// Upsert adds a member or replaces an existing one.
func (p *Pool) Upsert(m Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.nodeFor(m)
	if err != nil {
		return err
	}
	nextMembers, nextNodes := p.copyState()
	nextMembers[m.ID] = m
	nextNodes[m.ID] = n
	return p.publish(nextMembers, nextNodes)
}

// SetWeight changes the weight of an existing member. Only that member's
// ring points are regenerated.
func (p *Pool) SetWeight(id string, weight float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	m.Weight = weight
	n, err := p.nodeFor(m)
	if err != nil {
		return err
	}
	nextMembers, nextNodes := p.copyState()
	nextMembers[id] = m
	nextNodes[id] = n
	return p.publish(nextMembers, nextNodes)
}

// Remove drops a member. It reports whether the member existed.
func (p *Pool) Remove(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.members[id]; !ok {
		return false, nil
	}
	nextMembers, nextNodes := p.copyState()
	delete(nextMembers, id)
	delete(nextNodes, id)
	return true, p.publish(nextMembers, nextNodes)
}

// nodeFor reuses the existing Hashable when the weight is unchanged
// (must be called with lock held).
func (p *Pool) nodeFor(m Member) (*ring.Hashable, error) {
	if existing, ok := p.nodes[m.ID]; ok && existing.Weight() == m.Weight {
		return existing, nil
	}
	return p.hasher.NewHashable(m.ID, m.Weight)
}

// copyState returns copies of the writer-side maps (must be called with lock held).
func (p *Pool) copyState() (map[string]Member, map[string]*ring.Hashable) {
	members := make(map[string]Member, len(p.members)+1)
	nodes := make(map[string]*ring.Hashable, len(p.nodes)+1)
	for id, m := range p.members {
		members[id] = m
	}
	for id, n := range p.nodes {
		nodes[id] = n
	}
	return members, nodes
}

// publish builds and stores a new snapshot (must be called with lock held).
func (p *Pool) publish(members map[string]Member, nodes map[string]*ring.Hashable) error {
	var r *ring.Ring
	if len(nodes) > 0 {
		list := make([]*ring.Hashable, 0, len(nodes))
		for _, n := range nodes {
			list = append(list, n)
		}
		var err error
		r, err = p.hasher.Build(list)
		if err != nil {
			return fmt.Errorf("pool: building ring: %w", err)
		}
	}

	p.members = members
	p.nodes = nodes
	p.version++

	snap := &Snapshot{
		Version: p.version,
		Ring:    r,
		members: members,
	}
	p.current.Store(snap)

	p.log.WithFields(logrus.Fields{
		"version": snap.Version,
		"nodes":   len(members),
		"points":  r.Len(),
	}).Info("Ring updated")

	for _, fn := range p.onChange {
		fn(snap)
	}
	return nil
}
