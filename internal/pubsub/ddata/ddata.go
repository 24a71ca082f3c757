// Package ddata implements the cluster-replicated, eventually-consistent
// map used both for compressed topic fingerprints (CompressedDData) and for
// declared acknowledgement labels (LiteralDData).
//
// The replication model follows the teacher's Corrosion adapter in spirit
// (internal/coordination/registry/corrosion.go in the retrieval pack): each
// node's entry is single-writer, writes carry a monotonic generation
// counter, and remote entries converge as "full replace" gossip messages
// (the writer's whole value set) arrive; no delta messages are sent. Unlike Corrosion, this package does not own a SQL store;
// it is a small bespoke OR-Map (see spec.md design note 9) driven by a
// pluggable Replicator that fans a write out to peers.
package ddata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ddatapubsub/internal/check"
	"ddatapubsub/internal/pubsub/indel"

	"github.com/hashicorp/go-multierror"
	"github.com/puzpuzpuz/xsync/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ddatapubsub/ddata")

// NodeID is the cluster-unique identity of a pub-sub participant.
type NodeID string

// Consistency selects how many replicas a write must reach before Write
// returns successfully.
type Consistency int

const (
	// Local requires no peer acknowledgement beyond the local replica;
	// the update loop uses this for ordinary ticks. Write still reports
	// ErrClusterUnreachable when the Replicator knows no peers at all.
	Local Consistency = iota
	// Majority requires acknowledgement from more than half of the known
	// peers.
	Majority
	// All requires acknowledgement from every known peer; forced resyncs
	// use this to guarantee convergence.
	All
)

func (c Consistency) String() string {
	switch c {
	case Local:
		return "local"
	case Majority:
		return "majority"
	case All:
		return "all"
	default:
		return "unknown"
	}
}

// MarshalYAML renders a Consistency as its lowercase name, matching
// spec.md §6's `writeConsistency` config key.
func (c Consistency) MarshalYAML() (any, error) {
	return c.String(), nil
}

// UnmarshalYAML parses a Consistency from its lowercase name. An empty value
// decodes as Local; an unrecognized name is an error.
func (c *Consistency) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "", "local":
		*c = Local
	case "majority":
		*c = Majority
	case "all":
		*c = All
	default:
		return fmt.Errorf("ddata: unknown consistency %q", s)
	}
	return nil
}

// ErrReplicationTimeout is returned when a write did not reach the
// requested consistency within Map's write timeout. Per spec.md §7 this is
// swallowed by the Update Loop, not surfaced to the pub-sub's caller.
var ErrReplicationTimeout = errors.New("ddata: replication timeout")

// ErrClusterUnreachable is returned when the replication subsystem reports
// no reachable peers.
var ErrClusterUnreachable = errors.New("ddata: cluster unreachable")

// entry is one node's advertised value set plus its generation counter.
type entry[V comparable] struct {
	gen    uint64
	values map[V]struct{}
}

// Replicator fans a local write out to the rest of the cluster and reports
// the cluster's current peer set. Production code wires this to the gRPC
// transport (internal/pubsub/transport); tests wire it to an in-memory fake
// (internal/pubsub/ddata.NewFakeCluster).
type Replicator[V comparable] interface {
	// Peers returns the currently known peer node IDs, excluding self.
	Peers() []NodeID
	// Broadcast pushes self's full replica (gen, values) to peers and
	// returns once the requested consistency is satisfied or ctx expires.
	Broadcast(ctx context.Context, self NodeID, gen uint64, values map[V]struct{}, consistency Consistency) error
}

// ChangeListener is notified whenever any entry in a Map changes. It is the
// listener's responsibility to deduplicate repeated notifications.
type ChangeListener func()

// Map is the replicated NodeID -> Set<V> structure described in spec.md
// §4.4/§4.5. One Map instance backs either the Compressed DData (V=int32)
// or the Literal DData (V=string) for a single node.
type Map[V comparable] struct {
	self         NodeID
	replicator   Replicator[V]
	writeTimeout time.Duration

	mu       sync.RWMutex
	entries  map[NodeID]entry[V]
	localGen uint64

	// listeners is a puzpuzpuz/xsync/v4 map, the same concurrent map
	// node/dialer.go uses for its connection cache, so SubscribeChanges's
	// unsubscribe and notify's fan-out never contend with entries' mutex
	// on the hot Write/ApplyRemote path.
	listeners *xsync.Map[int, ChangeListener]
	nextLisID atomic.Int64
}

// New constructs a Map owned by self, with repl used to fan writes out and
// writeTimeout bounding how long a single Write call waits for the
// requested consistency (spec.md §5 "Cancellation / timeout").
func New[V comparable](self NodeID, repl Replicator[V], writeTimeout time.Duration) *Map[V] {
	check.Assert(repl != nil, "ddata.New: repl must not be nil")
	check.Assertf(self != "", "ddata.New: self must not be empty, got %q", self)
	return &Map[V]{
		self:         self,
		replicator:   repl,
		writeTimeout: writeTimeout,
		entries:      make(map[NodeID]entry[V]),
		listeners:    xsync.NewMap[int, ChangeListener](),
	}
}

// Write applies update to self's entry and asks the Replicator to fan it
// out to the cluster at the requested consistency.
func (m *Map[V]) Write(ctx context.Context, update indel.Update[V], consistency Consistency) error {
	ctx, span := tracer.Start(ctx, "ddata.Map.Write", trace.WithAttributes(
		attribute.String("ddata.consistency", consistency.String()),
		attribute.Bool("ddata.replace_all", update.ReplaceAll),
	))
	defer span.End()

	m.mu.Lock()
	cur := m.entries[m.self]
	newValues := indel.Apply(cur.values, update)
	m.localGen++
	gen := m.localGen
	m.entries[m.self] = entry[V]{gen: gen, values: newValues}
	m.mu.Unlock()
	m.notify()

	if len(m.replicator.Peers()) == 0 {
		span.RecordError(ErrClusterUnreachable)
		span.SetStatus(codes.Error, ErrClusterUnreachable.Error())
		return ErrClusterUnreachable
	}

	writeCtx := ctx
	var cancel context.CancelFunc
	if m.writeTimeout > 0 {
		writeCtx, cancel = context.WithTimeout(ctx, m.writeTimeout)
		defer cancel()
	}

	if err := m.replicator.Broadcast(writeCtx, m.self, gen, cloneSet(newValues), consistency); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			span.RecordError(ErrReplicationTimeout)
			span.SetStatus(codes.Error, ErrReplicationTimeout.Error())
			return ErrReplicationTimeout
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// ApplyRemote merges a peer's advertised full replica into the local view.
// Stale generations (gen <= the currently recorded generation for that
// node) are dropped, so out-of-order gossip delivery cannot regress state.
func (m *Map[V]) ApplyRemote(node NodeID, gen uint64, values map[V]struct{}) {
	_, span := tracer.Start(context.Background(), "ddata.Map.ApplyRemote", trace.WithAttributes(
		attribute.String("ddata.node", string(node)),
		attribute.Int64("ddata.gen", int64(gen)),
	))
	defer span.End()

	m.mu.Lock()
	cur, ok := m.entries[node]
	if ok && gen <= cur.gen {
		m.mu.Unlock()
		span.SetAttributes(attribute.Bool("ddata.stale", true))
		return
	}
	m.entries[node] = entry[V]{gen: gen, values: cloneSet(values)}
	m.mu.Unlock()
	m.notify()
}

// RemoveNode drops node's entry entirely — called when the node leaves the
// cluster (spec.md §3 CompressedDData lifecycle).
func (m *Map[V]) RemoveNode(node NodeID) {
	m.mu.Lock()
	_, existed := m.entries[node]
	delete(m.entries, node)
	m.mu.Unlock()
	if existed {
		m.notify()
	}
}

// Entry is one node's generation-stamped value set, exposed read-only via
// Snapshot for anti-entropy pulls (a newly joined node has no gossip
// history to replay from, so it pulls a peer's full Snapshot once).
type Entry[V comparable] struct {
	Gen    uint64
	Values map[V]struct{}
}

// Snapshot returns every entry together with its generation counter.
func (m *Map[V]) Snapshot() map[NodeID]Entry[V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[NodeID]Entry[V], len(m.entries))
	for node, e := range m.entries {
		out[node] = Entry[V]{Gen: e.gen, Values: cloneSet(e.values)}
	}
	return out
}

// Read returns the latest locally observed replica state.
func (m *Map[V]) Read() map[NodeID]map[V]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[NodeID]map[V]struct{}, len(m.entries))
	for node, e := range m.entries {
		out[node] = cloneSet(e.values)
	}
	return out
}

// SubscribeChanges registers listener to be called whenever any entry
// changes. The returned func unregisters it.
func (m *Map[V]) SubscribeChanges(listener ChangeListener) (unsubscribe func()) {
	id := int(m.nextLisID.Add(1))
	m.listeners.Store(id, listener)

	return func() {
		m.listeners.Delete(id)
	}
}

func (m *Map[V]) notify() {
	ls := make([]ChangeListener, 0, m.listeners.Size())
	m.listeners.Range(func(_ int, l ChangeListener) bool {
		ls = append(ls, l)
		return true
	})
	for _, l := range ls {
		l()
	}
}

func cloneSet[V comparable](s map[V]struct{}) map[V]struct{} {
	out := make(map[V]struct{}, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// aggregateErrors folds per-peer broadcast failures into one error, in the
// style of the teacher's use of hashicorp/go-multierror for fanned-out
// operations.
func aggregateErrors(errs []error) error {
	var merr *multierror.Error
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	return merr.ErrorOrNil()
}
