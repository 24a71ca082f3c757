package main

import (
	"context"
	"log/slog"
	"time"

	"ddatapubsub/internal/pubsub/audit"
	"ddatapubsub/internal/pubsub/node"
)

// runAuditRecorder periodically appends a counters snapshot to log until
// ctx is cancelled. It is a diagnostic tee only — nothing in delivery or
// replication reads it back (spec.md §6 "Persisted state: none").
func runAuditRecorder(ctx context.Context, n *node.Node[message, logHandle], log *audit.Log) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := log.Record(ctx, n.Metrics.Snapshot()); err != nil {
				slog.Warn("pubsub audit record failed", "error", err)
			}
		}
	}
}
