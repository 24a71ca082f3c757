// Package pub implements the publish side of the topic pub-sub: computing a
// message's candidate node set from the Compressed DData and forwarding it,
// fire-and-forget, to every candidate.
package pub

import (
	"context"

	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/hashfamily"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ddatapubsub/pubsub")

// Remote forwards a publication to a node other than self. Production code
// backs this with node.Remote over gRPC; tests use transport.LocalSwitchboard
// or an in-process fake.
type Remote interface {
	Forward(ctx context.Context, node ddata.NodeID, topics []string, payload []byte, replyTo string) error
}

// Local short-circuits delivery to self, skipping the transport round trip
// when self is itself a candidate node.
type Local interface {
	Forward(topics []string, payload []byte, replyTo string) (falsePositive bool)
}

// Codec encodes a message of type T to bytes. Publisher defaults to
// encoding/json when Codec is left nil.
type Codec[T any] func(msg T) ([]byte, error)

// Publisher computes a message's topics, derives the candidate node set from
// Compressed, and forwards the encoded payload to every candidate. Publish
// never blocks on delivery acknowledgement (spec.md §5): it returns once
// forwarding has been dispatched, not once it has been received.
type Publisher[T any] struct {
	Self           ddata.NodeID
	HashFamily     hashfamily.Family
	TopicExtractor func(msg T) []string
	Compressed     *ddata.CompressedDData
	Remote         Remote
	LocalNode      Local
	Codec          Codec[T]
}

// Publish encodes msg, computes its topics' fingerprints, and forwards the
// encoded payload to every node whose advertised Compressed DData entry
// contains at least one of those fingerprints (spec.md §4.6). A message with
// no topics is a no-op: there is nothing to forward to.
func (p *Publisher[T]) Publish(ctx context.Context, msg T) error {
	ctx, span := tracer.Start(ctx, "Publisher.Publish")
	defer span.End()

	topics := p.TopicExtractor(msg)
	span.SetAttributes(attribute.Int("pubsub.topic_count", len(topics)))
	if len(topics) == 0 {
		return nil
	}

	payload, err := p.encode(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	candidates := p.candidateNodes(topics)
	span.SetAttributes(attribute.Int("pubsub.candidate_count", len(candidates)))
	if len(candidates) == 0 {
		return nil
	}

	replyTo := string(p.Self)
	for node := range candidates {
		if node == p.Self {
			if p.LocalNode != nil {
				p.LocalNode.Forward(topics, payload, replyTo)
			}
			continue
		}
		// Fire-and-forget: each forward runs on its own goroutine so a slow
		// or unreachable peer never delays Publish's return, and Publish
		// itself never waits on delivery acknowledgement.
		go func(node ddata.NodeID) {
			_ = p.Remote.Forward(context.Background(), node, topics, payload, replyTo)
		}(node)
	}
	return nil
}

func (p *Publisher[T]) encode(msg T) ([]byte, error) {
	if p.Codec != nil {
		return p.Codec(msg)
	}
	return defaultCodec(msg)
}

// candidateNodes returns every node whose Compressed DData entry intersects
// the topics' fingerprint set. A node appears once even if several
// fingerprints hash into its entry.
func (p *Publisher[T]) candidateNodes(topics []string) map[ddata.NodeID]struct{} {
	hashes := p.HashFamily.HashesAll(topics)
	wanted := make(map[int32]struct{}, len(hashes))
	for _, h := range hashes {
		wanted[h] = struct{}{}
	}

	out := make(map[ddata.NodeID]struct{})
	for node, values := range p.Compressed.Read() {
		for v := range values {
			if _, ok := wanted[v]; ok {
				out[node] = struct{}{}
				break
			}
		}
	}
	return out
}
