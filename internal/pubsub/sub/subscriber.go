// Package sub implements the subscribe side of the topic pub-sub: holding
// the local Subscriptions Registry's current Reader snapshot and delivering
// forwarded publications to matching handles.
package sub

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"ddatapubsub/internal/pubsub/metrics"
	"ddatapubsub/internal/pubsub/subscriptions"
)

// Decoder decodes a forwarded payload back into T. Subscriber defaults to
// encoding/json when Decoder is left nil.
type Decoder[T any] func(payload []byte) (T, error)

// Subscriber answers transport.Forwarder on behalf of one node: it holds the
// current Subscriptions Registry Reader and hands matching messages to their
// subscriber handles. A Subscriber's reader can be swapped concurrently with
// delivery, so the Update Loop's periodic re-export never blocks forwarding.
type Subscriber[T any, H subscriptions.Handle[T]] struct {
	reader  atomic.Pointer[subscriptions.Reader[T, H]]
	decoder Decoder[T]
	metrics *metrics.Counters
}

// New returns a Subscriber with an empty reader. Until SetReader is called
// every forwarded publication is reported as a false positive, since there
// is no local subscriber to match it against.
func New[T any, H subscriptions.Handle[T]](m *metrics.Counters) *Subscriber[T, H] {
	return &Subscriber[T, H]{metrics: m}
}

// SetReader atomically replaces the reader subsequent Forward calls match
// against. The Update Loop calls this after every successful export.
func (s *Subscriber[T, H]) SetReader(r *subscriptions.Reader[T, H]) {
	s.reader.Store(r)
}

// Forward decodes payload and delivers it to every subscriber handle
// registered for any of topics, reporting whether the forward was a false
// positive: the sending node's Compressed DData fingerprint matched, but no
// local subscriber actually wanted any of these topics (spec.md §4.7). A
// payload that fails to decode is also reported and counted as a false
// positive, and nothing is delivered.
func (s *Subscriber[T, H]) Forward(topics []string, payload []byte, replyTo string) (falsePositive bool) {
	reader := s.reader.Load()
	handles := reader.SubscribersFor(topics)
	if len(handles) == 0 {
		s.metrics.Inc(context.Background(), metrics.KindFalsePositive)
		return true
	}

	msg, err := s.decode(payload)
	if err != nil {
		s.metrics.Inc(context.Background(), metrics.KindFalsePositive)
		return true
	}

	for _, h := range handles {
		h.Deliver(msg, replyTo)
	}
	s.metrics.Inc(context.Background(), metrics.KindTruePositive)
	return false
}

func (s *Subscriber[T, H]) decode(payload []byte) (T, error) {
	if s.decoder != nil {
		return s.decoder(payload)
	}
	var out T
	err := json.Unmarshal(payload, &out)
	return out, err
}
