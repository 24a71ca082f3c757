// Package node wires one cluster participant's pub-sub components together:
// Subscriptions Registry, Compressed/Literal DData, Publisher, Subscriber,
// Update Loop, Ack-Label Registry, and the gRPC transport that carries all
// of it between nodes (spec.md §6's public API surface).
package node

import (
	"context"
	"log/slog"
	"net"
	"time"

	"ddatapubsub/internal/pubsub/acklabel"
	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/hashfamily"
	"ddatapubsub/internal/pubsub/metrics"
	"ddatapubsub/internal/pubsub/pub"
	"ddatapubsub/internal/pubsub/sub"
	"ddatapubsub/internal/pubsub/subscriptions"
	"ddatapubsub/internal/pubsub/transport"
	"ddatapubsub/internal/pubsub/updateloop"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// NewNodeID generates a cluster-unique node identity.
func NewNodeID() ddata.NodeID {
	return ddata.NodeID(uuid.NewString())
}

// Config holds the tuning knobs spec.md §6 names.
type Config struct {
	HashFamilySize         int
	RestartDelay           time.Duration
	UpdateInterval         time.Duration
	ForceUpdateProbability float64
	Seed                   string
	WriteConsistency       ddata.Consistency
	WriteTimeout           time.Duration
}

// Remote is the node's gRPC-backed fan-out to other nodes, satisfying both
// pub.Remote and the Dialer the replicators need.
type Remote struct {
	Self   ddata.NodeID
	Dialer *ConnDialer
}

// Forward sends a publication to node's Subscriber over gRPC.
func (r *Remote) Forward(ctx context.Context, node ddata.NodeID, topics []string, payload []byte, replyTo string) error {
	cc, err := r.Dialer.Dial(node)
	if err != nil {
		return err
	}
	_, err = transport.NewClient(cc).Push(ctx, &transport.PushRequest{
		Kind: transport.KindForward, From: string(r.Self), Topics: topics, Payload: payload, ReplyTo: replyTo,
	})
	return err
}

// Node is a single cluster participant: its local Subscriptions Registry,
// its replicated DData views, and the Pub/Sub/Update Loop/Ack-Label
// components driven off them.
type Node[T any, H subscriptions.Handle[T]] struct {
	Self   ddata.NodeID
	Config Config

	Registry   *subscriptions.Registry[T, H]
	Compressed *ddata.CompressedDData
	Literal    *ddata.LiteralDData
	Publisher  *pub.Publisher[T]
	Subscriber *sub.Subscriber[T, H]
	AckLabels  *acklabel.Registry
	Metrics    *metrics.Counters
	loop       *updateloop.Loop[T, H]

	grpcServer *grpc.Server
}

// Listen starts the gRPC server that answers pub-sub RPCs addressed
// directly at this node: the address peers' ConnDialer resolves through
// AddressBook. This is the only listener transport.NodeServer is ever
// registered on.
func (n *Node[T, H]) Listen(lis net.Listener) error {
	server := &transport.NodeServer{
		Compressed: n.Compressed,
		Literal:    n.Literal,
		Sub:        localForwarder[T, H]{n.Subscriber},
	}
	n.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	transport.RegisterServer(n.grpcServer, server)
	return n.grpcServer.Serve(lis)
}

// ListenFrontDoor starts the transparent proxy listener (node.NewFrontDoor):
// a caller that only knows one front-door address can reach any node's
// pub-sub RPCs by naming it in "node-id" metadata, without tracking every
// peer's direct address itself. directAddr is this node's own Listen
// address, used when the front door routes a call back to itself.
func (n *Node[T, H]) ListenFrontDoor(lis net.Listener, directAddr string, peers AddressBook) error {
	director := NewDirector(n.Self, directAddr, peers)
	server := NewFrontDoor(director)
	return server.Serve(lis)
}

// Stop gracefully stops the node's direct gRPC listener, if one was
// started.
func (n *Node[T, H]) Stop() {
	if n.grpcServer != nil {
		n.grpcServer.GracefulStop()
	}
}

// New wires a Node from already-constructed replicators (a
// transport.LocalSwitchboard's, or transport.CompressedReplicator/
// LiteralReplicator over a transport.Dialer) and the caller's
// topicExtractor.
func New[T any, H subscriptions.Handle[T]](
	self ddata.NodeID,
	cfg Config,
	compressedRepl ddata.Replicator[int32],
	literalRepl ddata.Replicator[string],
	remote pub.Remote,
	topicExtractor func(T) []string,
	topicExtractorID string,
	meter metric.Meter,
) *Node[T, H] {
	hf := hashfamily.New(cfg.Seed, cfg.HashFamilySize)
	registry := subscriptions.New[T, H]()
	compressed := ddata.NewCompressed(self, compressedRepl, cfg.WriteTimeout)
	literal := ddata.NewLiteral(self, literalRepl, cfg.WriteTimeout)
	m := metrics.New(meter, topicExtractorID)

	subscriber := sub.New[T, H](m)
	publisher := &pub.Publisher[T]{
		Self: self, HashFamily: hf, TopicExtractor: topicExtractor,
		Compressed: compressed, Remote: remote,
		LocalNode: localForwarder[T, H]{subscriber},
	}

	n := &Node[T, H]{
		Self:       self,
		Config:     cfg,
		Registry:   registry,
		Compressed: compressed,
		Literal:    literal,
		Publisher:  publisher,
		Subscriber: subscriber,
		AckLabels:  &acklabel.Registry{Self: self, Literal: literal, Metrics: m},
		Metrics:    m,
		loop: &updateloop.Loop[T, H]{
			Registry: registry, HashFamily: hf, Compressed: compressed,
			Subscriber: subscriber, Metrics: m,
			Interval: cfg.UpdateInterval, ForceProbability: cfg.ForceUpdateProbability,
			NormalConsistency: cfg.WriteConsistency,
		},
	}
	return n
}

// Subscribe adds handle to topics in the local registry, matching spec.md §6's
// `subscribe(handle, topics) -> Future<Done>` surface (synchronous here:
// the registry mutation is immediate, propagation follows on the next
// Update Loop tick).
func (n *Node[T, H]) Subscribe(handle H, topics []string) {
	n.Registry.Subscribe(handle, topics)
}

// Unsubscribe removes handle from topics only.
func (n *Node[T, H]) Unsubscribe(handle H, topics []string) {
	n.Registry.Unsubscribe(handle, topics)
}

// RemoveSubscriber removes handle from every topic, for use on subscriber
// termination signals from the host runtime.
func (n *Node[T, H]) RemoveSubscriber(handle H) {
	n.Registry.RemoveSubscriber(handle)
}

// TickHistory returns the Update Loop's recent diagnostic tick history,
// oldest first (for pubsubctl topics --history).
func (n *Node[T, H]) TickHistory() []updateloop.ReplayEntry {
	return n.loop.History()
}

// DeclareAckLabels attempts to claim labels for this node.
func (n *Node[T, H]) DeclareAckLabels(ctx context.Context, labels []string) error {
	return n.AckLabels.Declare(ctx, labels)
}

// Publish forwards msg to every node whose advertised interest matches its
// topics (spec.md §4.6). It never blocks on delivery.
func (n *Node[T, H]) Publish(ctx context.Context, msg T) error {
	return n.Publisher.Publish(ctx, msg)
}

// Run starts the Update Loop as a supervised child, respawned after
// Config.RestartDelay if it returns (spec.md §4.8/§9 "supervisor hierarchy",
// §7 SupervisorCrash), and registers an ack-label reconciliation listener on
// the Literal DData; the listener is a change callback, not a supervised
// child. Run blocks until ctx is cancelled.
func (n *Node[T, H]) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		supervise(ctx, n.Config.RestartDelay, "update-loop", n.Metrics, func(ctx context.Context) error {
			n.loop.Run(ctx)
			return ctx.Err()
		})
		return nil
	})

	unsubscribe := n.Literal.SubscribeChanges(func() {
		if err := n.AckLabels.Reconcile(context.Background()); err != nil {
			slog.Warn("pubsub ack-label reconcile failed", "node", n.Self, "error", err)
		}
	})
	defer unsubscribe()

	<-ctx.Done()
	return g.Wait()
}

// supervise runs fn and, if it returns (crash or clean exit) before ctx is
// done, waits restartDelay and runs it again — the "supervisor hierarchy"
// of spec.md §9, collapsed to a single restart-on-return loop since the
// pub-sub tree has no child-specific recovery behavior to differentiate.
func supervise(ctx context.Context, restartDelay time.Duration, name string, m *metrics.Counters, fn func(context.Context) error) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			m.Inc(ctx, metrics.KindSupervisorRestart)
			slog.Warn("pubsub supervised task exited, restarting", "task", name, "error", err, "restart_delay", restartDelay)
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

type localForwarder[T any, H subscriptions.Handle[T]] struct {
	s *sub.Subscriber[T, H]
}

func (l localForwarder[T, H]) Forward(topics []string, payload []byte, replyTo string) bool {
	return l.s.Forward(topics, payload, replyTo)
}
