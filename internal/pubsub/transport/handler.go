package transport

import (
	"context"

	"ddatapubsub/internal/pubsub/ddata"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CompressedStore is the narrow surface NodeServer needs from a node's
// Compressed DData to answer peer writes and anti-entropy pulls.
type CompressedStore interface {
	ApplyRemote(node ddata.NodeID, gen uint64, values map[int32]struct{})
	Snapshot() map[ddata.NodeID]ddata.Entry[int32]
}

// LiteralStore is the same surface for Literal DData.
type LiteralStore interface {
	ApplyRemote(node ddata.NodeID, gen uint64, values map[string]struct{})
	Snapshot() map[ddata.NodeID]ddata.Entry[string]
}

// Forwarder delivers a message forwarded by a remote Publisher to this
// node's local Subscriber and reports whether it was a false positive
// (spec.md §4.7).
type Forwarder interface {
	Forward(topics []string, payload []byte, replyTo string) (falsePositive bool)
}

// NodeServer answers peer RPCs by delegating to the node's own DData maps
// and Subscriber. It implements Server.
type NodeServer struct {
	Compressed CompressedStore
	Literal    LiteralStore
	Sub        Forwarder
}

func (s *NodeServer) Push(ctx context.Context, req *PushRequest) (*PushResponse, error) {
	switch req.Kind {
	case KindForward:
		fp := s.Sub.Forward(req.Topics, req.Payload, req.ReplyTo)
		return &PushResponse{FalsePositive: fp}, nil
	case KindCompressedWrite:
		set := make(map[int32]struct{}, len(req.Int32Set))
		for _, v := range req.Int32Set {
			set[v] = struct{}{}
		}
		s.Compressed.ApplyRemote(ddata.NodeID(req.From), req.Gen, set)
		return &PushResponse{}, nil
	case KindLiteralWrite:
		set := make(map[string]struct{}, len(req.StringSet))
		for _, v := range req.StringSet {
			set[v] = struct{}{}
		}
		s.Literal.ApplyRemote(ddata.NodeID(req.From), req.Gen, set)
		return &PushResponse{}, nil
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown push kind %q", req.Kind)
	}
}

func (s *NodeServer) ReadCompressed(ctx context.Context, req *ReadCompressedRequest) (*ReadCompressedResponse, error) {
	snap := s.Compressed.Snapshot()
	resp := &ReadCompressedResponse{Entries: make(map[string][]int32, len(snap)), Gens: make(map[string]uint64, len(snap))}
	for node, e := range snap {
		vals := make([]int32, 0, len(e.Values))
		for v := range e.Values {
			vals = append(vals, v)
		}
		resp.Entries[string(node)] = vals
		resp.Gens[string(node)] = e.Gen
	}
	return resp, nil
}

func (s *NodeServer) ReadLiteral(ctx context.Context, req *ReadLiteralRequest) (*ReadLiteralResponse, error) {
	snap := s.Literal.Snapshot()
	resp := &ReadLiteralResponse{Entries: make(map[string][]string, len(snap)), Gens: make(map[string]uint64, len(snap))}
	for node, e := range snap {
		vals := make([]string, 0, len(e.Values))
		for v := range e.Values {
			vals = append(vals, v)
		}
		resp.Entries[string(node)] = vals
		resp.Gens[string(node)] = e.Gen
	}
	return resp, nil
}
