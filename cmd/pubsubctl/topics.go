package main

import (
	"fmt"
	"sort"
	"strings"

	"ddatapubsub/cmd/pubsubctl/ui"
	"ddatapubsub/internal/pubsub/admin"

	"github.com/spf13/cobra"
)

func topicsCmd(addr *string) *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List topics with at least one local subscriber",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := dial(*addr)
			if err != nil {
				return err
			}
			defer closeFn()

			if history {
				return printTickHistory(cmd, c)
			}

			topics, err := c.Topics(cmd.Context())
			if err != nil {
				return err
			}
			sort.Strings(topics)

			rows := make([][]string, 0, len(topics))
			for _, t := range topics {
				rows = append(rows, []string{t})
			}
			fmt.Println(ui.Table([]string{"topic"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show recent Update Loop ticks instead of current topics")
	return cmd
}

func printTickHistory(cmd *cobra.Command, c *admin.Client) error {
	entries, err := c.TickHistory(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		forced := "no"
		if e.Forced {
			forced = "yes"
		}
		rows = append(rows, []string{
			e.At.Format("2006-01-02 15:04:05"),
			strings.Join(e.Added, ","),
			strings.Join(e.Removed, ","),
			forced,
		})
	}
	fmt.Println(ui.Table([]string{"at", "added", "removed", "forced"}, rows))
	return nil
}
