package ddata

import (
	"context"
	"sync"
)

// FakeCluster simulates gossip replication for a set of in-process Maps
// sharing one address space, the way internal/adapter/fake stands in for
// Corrosion in the teacher's tests. It is not safe for use across OS
// processes — that role belongs to the gRPC transport.
type FakeCluster[V comparable] struct {
	mu      sync.Mutex
	members map[NodeID]*Map[V]
	cut     map[NodeID]bool // nodes currently simulated as unreachable
}

// NewFakeCluster returns an empty simulated cluster.
func NewFakeCluster[V comparable]() *FakeCluster[V] {
	return &FakeCluster[V]{
		members: make(map[NodeID]*Map[V]),
		cut:     make(map[NodeID]bool),
	}
}

// Join creates a Map for node backed by this cluster and registers it as a
// member so future writes from other members reach it.
func (c *FakeCluster[V]) Join(node NodeID) *Map[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &fakeReplicator[V]{cluster: c, self: node}
	m := New[V](node, r, 0)
	c.members[node] = m
	return m
}

// Leave removes node from the cluster and instructs every other member's
// Map to drop its entry, mirroring "Removed-by-cluster-on-departure".
func (c *FakeCluster[V]) Leave(node NodeID) {
	c.mu.Lock()
	delete(c.members, node)
	delete(c.cut, node)
	others := make([]*Map[V], 0, len(c.members))
	for _, m := range c.members {
		others = append(others, m)
	}
	c.mu.Unlock()

	for _, m := range others {
		m.RemoveNode(node)
	}
}

// Partition marks node as unreachable: its broadcasts fail with
// ErrClusterUnreachable and other members' broadcasts never reach it until
// Heal is called.
func (c *FakeCluster[V]) Partition(node NodeID) {
	c.mu.Lock()
	c.cut[node] = true
	c.mu.Unlock()
}

// Heal clears a prior Partition.
func (c *FakeCluster[V]) Heal(node NodeID) {
	c.mu.Lock()
	delete(c.cut, node)
	c.mu.Unlock()
}

type fakeReplicator[V comparable] struct {
	cluster *FakeCluster[V]
	self    NodeID
}

func (r *fakeReplicator[V]) Peers() []NodeID {
	r.cluster.mu.Lock()
	defer r.cluster.mu.Unlock()
	out := make([]NodeID, 0, len(r.cluster.members))
	for id := range r.cluster.members {
		if id == r.self {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (r *fakeReplicator[V]) Broadcast(ctx context.Context, self NodeID, gen uint64, values map[V]struct{}, consistency Consistency) error {
	r.cluster.mu.Lock()
	if r.cluster.cut[self] {
		r.cluster.mu.Unlock()
		return ErrClusterUnreachable
	}
	targets := make([]*Map[V], 0, len(r.cluster.members))
	for id, m := range r.cluster.members {
		if id == self || r.cluster.cut[id] {
			continue
		}
		targets = append(targets, m)
	}
	r.cluster.mu.Unlock()

	var errs []error
	delivered := 0
	for _, m := range targets {
		m.ApplyRemote(self, gen, values)
		delivered++
	}

	switch consistency {
	case All:
		if delivered < len(targets) {
			errs = append(errs, ErrReplicationTimeout)
		}
	case Majority:
		if delivered*2 < len(targets) {
			errs = append(errs, ErrReplicationTimeout)
		}
	case Local:
		// Already applied locally by Map.Write before Broadcast is called.
	}
	return aggregateErrors(errs)
}
