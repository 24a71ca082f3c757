package transport

import (
	"context"
	"sync"

	"ddatapubsub/internal/pubsub/ddata"

	"google.golang.org/grpc"
)

// Dialer resolves a peer node ID to a live gRPC connection. Production code
// backs this with node.ConnDialer, a per-node connection cache that resolves
// addresses through a node.AddressBook.
type Dialer interface {
	Dial(node ddata.NodeID) (grpc.ClientConnInterface, error)
}

// consistencyTarget returns how many of n peers must acknowledge a write
// for the given consistency level to be satisfied.
func consistencyTarget(c ddata.Consistency, n int) int {
	switch c {
	case ddata.All:
		return n
	case ddata.Majority:
		return n/2 + 1
	default: // Local: the write is already durable locally before fan-out starts
		return 0
	}
}

func fanOut(ctx context.Context, dialer Dialer, peers []ddata.NodeID, call func(*Client) error) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	acked := 0
	for _, p := range peers {
		wg.Add(1)
		go func(p ddata.NodeID) {
			defer wg.Done()
			cc, err := dialer.Dial(p)
			if err != nil {
				return
			}
			if err := call(NewClient(cc)); err != nil {
				return
			}
			mu.Lock()
			acked++
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return acked
}

// CompressedReplicator fans Compressed DData writes out over gRPC.
type CompressedReplicator struct {
	Dialer Dialer
	Peers_ func() []ddata.NodeID
}

func (r *CompressedReplicator) Peers() []ddata.NodeID { return r.Peers_() }

func (r *CompressedReplicator) Broadcast(ctx context.Context, self ddata.NodeID, gen uint64, values map[int32]struct{}, consistency ddata.Consistency) error {
	peers := r.Peers_()
	target := consistencyTarget(consistency, len(peers))
	ints := make([]int32, 0, len(values))
	for v := range values {
		ints = append(ints, v)
	}
	acked := fanOut(ctx, r.Dialer, peers, func(c *Client) error {
		req := &PushRequest{Kind: KindCompressedWrite, From: string(self), Gen: gen, Int32Set: ints}
		_, err := c.Push(ctx, req)
		return fromGRPCStatus(err)
	})
	if acked < target {
		return ddata.ErrReplicationTimeout
	}
	return nil
}

// LiteralReplicator fans Literal DData writes out over gRPC.
type LiteralReplicator struct {
	Dialer Dialer
	Peers_ func() []ddata.NodeID
}

func (r *LiteralReplicator) Peers() []ddata.NodeID { return r.Peers_() }

func (r *LiteralReplicator) Broadcast(ctx context.Context, self ddata.NodeID, gen uint64, values map[string]struct{}, consistency ddata.Consistency) error {
	peers := r.Peers_()
	target := consistencyTarget(consistency, len(peers))
	labels := make([]string, 0, len(values))
	for v := range values {
		labels = append(labels, v)
	}
	acked := fanOut(ctx, r.Dialer, peers, func(c *Client) error {
		req := &PushRequest{Kind: KindLiteralWrite, From: string(self), Gen: gen, StringSet: labels}
		_, err := c.Push(ctx, req)
		return fromGRPCStatus(err)
	})
	if acked < target {
		return ddata.ErrReplicationTimeout
	}
	return nil
}
