// Command pubsubd runs one cluster-wide topic pub-sub node: the Compressed
// and Literal DData replicas, the Update Loop, the Ack-Label Registry, and
// the gRPC listeners peers and pubsubctl reach it through.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"ddatapubsub/config"
	"ddatapubsub/internal/logging"
	"ddatapubsub/internal/pubsub/admin"
	"ddatapubsub/internal/pubsub/audit"
	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/node"
	"ddatapubsub/internal/pubsub/transport"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var logLevel string
	var nodeID string
	var listenAddr string
	var frontDoorAddr string
	var adminAddr string
	var peerFlags []string
	var auditDBPath string

	cmd := &cobra.Command{
		Use:     "pubsubd",
		Short:   "ddata pub-sub cluster node",
		Version: "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Configure(logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, runOptions{
				configPath:    configPath,
				nodeID:        nodeID,
				listenAddr:    listenAddr,
				frontDoorAddr: frontDoorAddr,
				adminAddr:     adminAddr,
				peers:         peerFlags,
				auditDBPath:   auditDBPath,
			})
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.LevelInfo, "Log level: debug|info|warn|error")
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (defaults to "+config.Path()+")")
	cmd.Flags().StringVar(&nodeID, "node-id", "", "This node's cluster identity (generated if empty)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Direct peer-transport listen address (overrides config listen-addr)")
	cmd.Flags().StringVar(&frontDoorAddr, "front-door", "", "Transparent-proxy front door listen address (overrides config front-door-addr)")
	cmd.Flags().StringVar(&adminAddr, "admin", "127.0.0.1:7782", "pubsubctl admin listen address")
	cmd.Flags().StringArrayVar(&peerFlags, "peer", nil, "Known peer as node-id=host:port (repeatable)")
	cmd.Flags().StringVar(&auditDBPath, "audit-db", "", "Optional sqlite path for the counter history log (disabled if empty)")
	return cmd
}

type runOptions struct {
	configPath    string
	nodeID        string
	listenAddr    string
	frontDoorAddr string
	adminAddr     string
	peers         []string
	auditDBPath   string
}

func run(ctx context.Context, opts runOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	self := node.NewNodeID()
	if opts.nodeID != "" {
		self = ddata.NodeID(opts.nodeID)
	}

	peers, err := parsePeers(opts.peers)
	if err != nil {
		return err
	}

	var auditLog *audit.Log
	if opts.auditDBPath != "" {
		auditLog, err = audit.Open(opts.auditDBPath)
		if err != nil {
			return err
		}
		defer auditLog.Close()
	}

	dialer := node.NewConnDialer(peers)
	defer dialer.Close()
	remote := &node.Remote{Self: self, Dialer: dialer}

	compressedRepl := &transport.CompressedReplicator{Dialer: dialer, Peers_: peers.ids}
	literalRepl := &transport.LiteralReplicator{Dialer: dialer, Peers_: peers.ids}

	n := node.New[message, logHandle](self, cfg.ToNodeConfig(), compressedRepl, literalRepl, remote, messageTopics, "pubsubd-demo", nil)

	directLis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	frontDoorLis, err := net.Listen("tcp", cfg.FrontDoorAddr)
	if err != nil {
		return err
	}
	adminLis, err := net.Listen("tcp", opts.adminAddr)
	if err != nil {
		return err
	}

	adminSrv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	admin.RegisterServer(adminSrv, &adminService{n: n, handle: logHandle{id: "pubsubd-demo"}})

	slog.Info("pubsubd starting",
		"node", self, "listen", cfg.ListenAddr, "front-door", cfg.FrontDoorAddr, "admin", opts.adminAddr, "peers", peers.ids())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Run(ctx) })
	g.Go(func() error { return n.Listen(directLis) })
	g.Go(func() error { return n.ListenFrontDoor(frontDoorLis, cfg.ListenAddr, peers) })
	g.Go(func() error { return adminSrv.Serve(adminLis) })
	if auditLog != nil {
		g.Go(func() error { return runAuditRecorder(ctx, n, auditLog) })
	}

	<-ctx.Done()
	n.Stop()
	adminSrv.GracefulStop()
	_ = directLis.Close()
	_ = frontDoorLis.Close()
	_ = adminLis.Close()
	return g.Wait()
}

func loadConfig(opts runOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	return applyOverrides(cfg, opts), nil
}

func applyOverrides(cfg *config.Config, opts runOptions) *config.Config {
	if opts.listenAddr != "" {
		cfg.ListenAddr = opts.listenAddr
	}
	if opts.frontDoorAddr != "" {
		cfg.FrontDoorAddr = opts.frontDoorAddr
	}
	return cfg
}
