package main

import (
	"fmt"

	"ddatapubsub/cmd/pubsubctl/ui"
	"ddatapubsub/internal/pubsub/audit"

	"github.com/spf13/cobra"
)

// historyCmd reads a pubsubd node's audit database directly — it is a
// local diagnostic file, not served over the admin RPC surface.
func historyCmd() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent counter snapshots from a node's audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := audit.Open(dbPath)
			if err != nil {
				return err
			}
			defer log.Close()

			records, err := log.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.RecordedAt.Format("2006-01-02 15:04:05"),
					r.TopicExtractorID,
					fmt.Sprint(r.TruePositives),
					fmt.Sprint(r.FalsePositives),
					fmt.Sprint(r.ReplicationTimeouts),
					fmt.Sprint(r.ClusterUnreachables),
					fmt.Sprint(r.ForcedResyncs),
				})
			}
			fmt.Println(ui.Table(
				[]string{"recorded-at", "extractor", "tp", "fp", "repl-timeout", "unreachable", "forced-resync"},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the pubsubd --audit-db file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max rows to show")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
