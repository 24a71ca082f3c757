package main

import (
	"fmt"

	"ddatapubsub/cmd/pubsubctl/ui"

	"github.com/spf13/cobra"
)

func statusCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show delivery/replication counters for a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := dial(*addr)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Print(ui.KeyValues(
				ui.KV("topic-extractor", snap.TopicExtractorID),
				ui.KV("true-positives", fmt.Sprint(snap.TruePositives)),
				ui.KV("false-positives", fmt.Sprint(snap.FalsePositives)),
				ui.KV("replication-timeouts", fmt.Sprint(snap.ReplicationTimeouts)),
				ui.KV("cluster-unreachables", fmt.Sprint(snap.ClusterUnreachables)),
				ui.KV("forced-resyncs", fmt.Sprint(snap.ForcedResyncs)),
				ui.KV("label-conflicts", fmt.Sprint(snap.LabelConflicts)),
				ui.KV("supervisor-restarts", fmt.Sprint(snap.SupervisorRestarts)),
			))
			return nil
		},
	}
}
