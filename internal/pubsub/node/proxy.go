package node

import (
	"context"
	"fmt"
	"sync"

	"ddatapubsub/internal/pubsub/ddata"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/siderolabs/grpc-proxy/proxy"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AddressBook resolves a peer node to a dialable "host:port" address.
// node.Node only reads it; the caller that supplies it decides its contents
// (pubsubd uses a fixed table parsed from its --peer flags).
type AddressBook interface {
	Addr(id ddata.NodeID) (string, bool)
}

// Director lets a client reach any pub-sub node by addressing a single
// front-door listener and naming the target in a "node-id" metadata key; it
// transparently proxies the RPC to the owning node (itself, or a peer
// resolved through Peers), without the client needing to track node
// addresses directly. It implements grpc-proxy's StreamDirector.
type Director struct {
	Self      ddata.NodeID
	LocalAddr string
	Peers     AddressBook

	backends *xsync.Map[ddata.NodeID, *backend]
}

// NewDirector returns a Director for self, proxying local-addressed calls to
// localAddr and peer-addressed calls resolved through peers.
func NewDirector(self ddata.NodeID, localAddr string, peers AddressBook) *Director {
	return &Director{
		Self:      self,
		LocalAddr: localAddr,
		Peers:     peers,
		backends:  xsync.NewMap[ddata.NodeID, *backend](),
	}
}

// Director implements proxy.StreamDirector: every pub-sub RPC is routed
// One2One to exactly the node named by the incoming "node-id" metadata.
func (d *Director) Director(ctx context.Context, fullMethodName string) (proxy.Mode, []proxy.Backend, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return proxy.One2One, nil, status.Error(codes.InvalidArgument, "pubsub proxy: missing node-id metadata")
	}
	ids := md.Get("node-id")
	if len(ids) == 0 {
		return proxy.One2One, nil, status.Error(codes.InvalidArgument, "pubsub proxy: missing node-id metadata")
	}
	target := ddata.NodeID(ids[0])

	addr := d.LocalAddr
	if target != d.Self {
		a, ok := d.Peers.Addr(target)
		if !ok {
			return proxy.One2One, nil, status.Errorf(codes.Unavailable, "pubsub proxy: unknown peer %q", target)
		}
		addr = a
	}

	b, err := d.backendFor(target, addr)
	if err != nil {
		return proxy.One2One, nil, status.Error(codes.Internal, err.Error())
	}
	return proxy.One2One, []proxy.Backend{b}, nil
}

func (d *Director) backendFor(target ddata.NodeID, addr string) (*backend, error) {
	existing, ok := d.backends.Load(target)
	if ok && existing.addr == addr {
		return existing, nil
	}
	b := &backend{addr: addr}
	d.backends.Store(target, b)
	return b, nil
}

// Close tears down every cached backend connection.
func (d *Director) Close() {
	d.backends.Range(func(_ ddata.NodeID, b *backend) bool {
		b.Close()
		return true
	})
}

// backend dials addr lazily and caches the connection, mirroring the
// teacher's RemoteBackend/LocalBackend pair collapsed into one type since
// the pub-sub front door treats "self" as just another dialable address.
type backend struct {
	addr string

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

var _ proxy.Backend = (*backend)(nil)

func (b *backend) String() string { return b.addr }

func (b *backend) GetConnection(ctx context.Context, _ string) (context.Context, *grpc.ClientConn, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	outCtx := metadata.NewOutgoingContext(ctx, md)

	b.mu.RLock()
	if b.conn != nil {
		defer b.mu.RUnlock()
		return outCtx, b.conn, nil
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return outCtx, b.conn, nil
	}

	conn, err := grpc.NewClient(
		b.addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodecV2(proxy.Codec())),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return outCtx, nil, fmt.Errorf("pubsub proxy: dial %s: %w", b.addr, err)
	}
	b.conn = conn
	return outCtx, b.conn, nil
}

func (b *backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// NewFrontDoor returns a gRPC server that transparently proxies every
// incoming pub-sub RPC per director's routing. Mirrors the teacher's
// daemon/server proxy listener wiring.
func NewFrontDoor(director *Director) *grpc.Server {
	return grpc.NewServer(
		grpc.ForceServerCodecV2(proxy.Codec()),
		grpc.UnknownServiceHandler(proxy.TransparentHandler(director.Director)),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
}
