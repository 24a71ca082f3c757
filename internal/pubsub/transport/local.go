package transport

import (
	"context"
	"sync"

	"ddatapubsub/internal/pubsub/ddata"
)

// LocalSwitchboard routes Push/Read calls between in-process nodes without
// a network hop. It backs the single-process test harness for the
// end-to-end scenarios in spec.md §8; production wiring uses the gRPC
// replicators and node.Remote instead.
type LocalSwitchboard struct {
	mu    sync.RWMutex
	nodes map[ddata.NodeID]Server
}

// NewLocalSwitchboard returns an empty switchboard.
func NewLocalSwitchboard() *LocalSwitchboard {
	return &LocalSwitchboard{nodes: make(map[ddata.NodeID]Server)}
}

// Register makes node reachable on the switchboard.
func (sw *LocalSwitchboard) Register(node ddata.NodeID, srv Server) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.nodes[node] = srv
}

// Unregister removes node — it has left the cluster.
func (sw *LocalSwitchboard) Unregister(node ddata.NodeID) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	delete(sw.nodes, node)
}

// Peers returns every registered node except self.
func (sw *LocalSwitchboard) Peers(self ddata.NodeID) []ddata.NodeID {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	out := make([]ddata.NodeID, 0, len(sw.nodes))
	for id := range sw.nodes {
		if id == self {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (sw *LocalSwitchboard) push(node ddata.NodeID, req *PushRequest) (*PushResponse, error) {
	sw.mu.RLock()
	srv, ok := sw.nodes[node]
	sw.mu.RUnlock()
	if !ok {
		return nil, ddata.ErrClusterUnreachable
	}
	return srv.Push(context.Background(), req)
}

// Forward delivers a forwarded publication to node's local Subscriber.
func (sw *LocalSwitchboard) Forward(node ddata.NodeID, topics []string, payload []byte, replyTo string) error {
	_, err := sw.push(node, &PushRequest{Kind: KindForward, Topics: topics, Payload: payload, ReplyTo: replyTo})
	return err
}

// NewCompressedReplicator returns a ddata.Replicator[int32] that fans writes
// out over this switchboard on behalf of self.
func (sw *LocalSwitchboard) NewCompressedReplicator(self ddata.NodeID) ddata.Replicator[int32] {
	return &localReplicator[int32]{sw: sw, self: self, kind: KindCompressedWrite}
}

// NewLiteralReplicator returns a ddata.Replicator[string] that fans writes
// out over this switchboard on behalf of self.
func (sw *LocalSwitchboard) NewLiteralReplicator(self ddata.NodeID) ddata.Replicator[string] {
	return &localReplicator[string]{sw: sw, self: self, kind: KindLiteralWrite}
}

type localReplicator[V comparable] struct {
	sw   *LocalSwitchboard
	self ddata.NodeID
	kind Kind
}

func (r *localReplicator[V]) Peers() []ddata.NodeID {
	return r.sw.Peers(r.self)
}

func (r *localReplicator[V]) Broadcast(ctx context.Context, self ddata.NodeID, gen uint64, values map[V]struct{}, consistency ddata.Consistency) error {
	peers := r.sw.Peers(self)
	target := consistencyTarget(consistency, len(peers))

	req := &PushRequest{Kind: r.kind, From: string(self), Gen: gen}
	switch r.kind {
	case KindCompressedWrite:
		for v := range values {
			req.Int32Set = append(req.Int32Set, any(v).(int32))
		}
	case KindLiteralWrite:
		for v := range values {
			req.StringSet = append(req.StringSet, any(v).(string))
		}
	}

	acked := 0
	for _, p := range peers {
		if _, err := r.sw.push(p, req); err == nil {
			acked++
		}
	}
	if acked < target {
		return ddata.ErrReplicationTimeout
	}
	return nil
}
