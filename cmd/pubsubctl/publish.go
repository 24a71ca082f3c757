package main

import (
	"strings"

	"ddatapubsub/cmd/pubsubctl/ui"

	"github.com/spf13/cobra"
)

func publishCmd(addr *string) *cobra.Command {
	var topics string
	var body string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message to a node's Publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := dial(*addr)
			if err != nil {
				return err
			}
			defer closeFn()

			return c.Publish(cmd.Context(), splitTopics(topics), body)
		},
	}
	cmd.Flags().StringVar(&topics, "topics", "", "Comma-separated topic list")
	cmd.Flags().StringVar(&body, "body", "", "Message body")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func splitTopics(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func subscribeCmd(addr *string) *cobra.Command {
	var topics string
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe the node's built-in log handle to topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := dial(*addr)
			if err != nil {
				return err
			}
			defer closeFn()
			return c.Subscribe(cmd.Context(), splitTopics(topics))
		},
	}
	cmd.Flags().StringVar(&topics, "topics", "", "Comma-separated topic list")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func unsubscribeCmd(addr *string) *cobra.Command {
	var topics string
	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "Unsubscribe the node's built-in log handle from topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := dial(*addr)
			if err != nil {
				return err
			}
			defer closeFn()
			return c.Unsubscribe(cmd.Context(), splitTopics(topics))
		},
	}
	cmd.Flags().StringVar(&topics, "topics", "", "Comma-separated topic list")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func declareAckLabelsCmd(addr *string) *cobra.Command {
	var labels string
	cmd := &cobra.Command{
		Use:   "declare-ack-labels",
		Short: "Declare ack labels for this node, failing on conflict",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := dial(*addr)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := c.DeclareAckLabels(cmd.Context(), splitTopics(labels)); err != nil {
				cmd.PrintErrln(ui.ErrorMsg("%s", err.Error()))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&labels, "labels", "", "Comma-separated label list")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}
