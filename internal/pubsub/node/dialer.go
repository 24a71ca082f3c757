package node

import (
	"fmt"

	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/transport"

	"github.com/puzpuzpuz/xsync/v4"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ConnDialer dials a peer's pub-sub listener directly by address, caching
// connections per node. It implements transport.Dialer for the
// CompressedReplicator/LiteralReplicator fan-out.
type ConnDialer struct {
	Peers AddressBook

	conns *xsync.Map[ddata.NodeID, *grpc.ClientConn]
}

// NewConnDialer returns a ConnDialer resolving peer addresses through peers.
func NewConnDialer(peers AddressBook) *ConnDialer {
	return &ConnDialer{Peers: peers, conns: xsync.NewMap[ddata.NodeID, *grpc.ClientConn]()}
}

func (d *ConnDialer) Dial(node ddata.NodeID) (grpc.ClientConnInterface, error) {
	if cc, ok := d.conns.Load(node); ok {
		return cc, nil
	}
	addr, ok := d.Peers.Addr(node)
	if !ok {
		return nil, fmt.Errorf("pubsub dialer: unknown peer %q", node)
	}
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("pubsub dialer: dial %s: %w", addr, err)
	}
	existing, loaded := d.conns.LoadOrStore(node, cc)
	if loaded {
		cc.Close()
		return existing, nil
	}
	return cc, nil
}

// Close tears down every cached connection.
func (d *ConnDialer) Close() {
	d.conns.Range(func(_ ddata.NodeID, cc *grpc.ClientConn) bool {
		cc.Close()
		return true
	})
}

var _ transport.Dialer = (*ConnDialer)(nil)
