// Command pubsubctl is an operator CLI for inspecting and driving a running
// pubsubd node over its admin gRPC surface.
package main

import (
	"fmt"
	"os"

	"ddatapubsub/internal/pubsub/admin"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "pubsubctl",
		Short: "Inspect and drive a pubsubd node",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7782", "pubsubd admin address")

	cmd.AddCommand(
		statusCmd(&addr),
		topicsCmd(&addr),
		publishCmd(&addr),
		subscribeCmd(&addr),
		unsubscribeCmd(&addr),
		declareAckLabelsCmd(&addr),
		historyCmd(),
	)
	return cmd
}

func dial(addr string) (*admin.Client, func(), error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return admin.NewClient(cc), func() { _ = cc.Close() }, nil
}
