// Package metrics exposes the pub-sub's observability surface: monotonic
// counters keyed by (topic_extractor_id, kind), as spec.md §9 requires.
package metrics

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func attrTopicExtractor(id string) attribute.KeyValue {
	return attribute.String("topic_extractor_id", id)
}

func attrKind(kind Kind) attribute.KeyValue {
	return attribute.String("kind", string(kind))
}

// Kind labels a counted event.
type Kind string

const (
	KindTruePositive       Kind = "true_positive"
	KindFalsePositive      Kind = "false_positive"
	KindReplicationTimeout Kind = "replication_timeout"
	KindClusterUnreachable Kind = "cluster_unreachable"
	KindForcedResync       Kind = "forced_resync"
	KindLabelConflict      Kind = "label_conflict"
	KindSupervisorRestart  Kind = "supervisor_restart"
)

// Counters wraps the otel instruments the pub-sub subsystem emits, plus a
// local running tally per kind so in-process consumers (pubsubctl, the
// audit log) can read current totals without standing up an otel reader. A
// Counters without an otel instrument is valid: increments still update the
// local tallies and are simply not exported, so components can be
// constructed without a meter in tests.
type Counters struct {
	delivery  metric.Int64Counter
	extractor string

	truePositive       atomic.Int64
	falsePositive      atomic.Int64
	replicationTimeout atomic.Int64
	clusterUnreachable atomic.Int64
	forcedResync       atomic.Int64
	labelConflict      atomic.Int64
	supervisorRestart  atomic.Int64
}

// New builds Counters from meter, scoped to topicExtractorID for the
// "keyed by (topic_extractor_id, kind)" requirement in spec.md §9. meter
// may be nil, in which case increments are counted in the local tallies
// only and nothing is exported.
func New(meter metric.Meter, topicExtractorID string) *Counters {
	c := &Counters{extractor: topicExtractorID}
	if meter == nil {
		return c
	}
	ctr, err := meter.Int64Counter(
		"pubsub_delivery_total",
		metric.WithDescription("pub-sub delivery outcomes by topic extractor and kind"),
	)
	if err != nil {
		return c
	}
	c.delivery = ctr
	return c
}

// Inc increments the counter for kind by 1.
func (c *Counters) Inc(ctx context.Context, kind Kind) {
	if c == nil {
		return
	}
	switch kind {
	case KindTruePositive:
		c.truePositive.Add(1)
	case KindFalsePositive:
		c.falsePositive.Add(1)
	case KindReplicationTimeout:
		c.replicationTimeout.Add(1)
	case KindClusterUnreachable:
		c.clusterUnreachable.Add(1)
	case KindForcedResync:
		c.forcedResync.Add(1)
	case KindLabelConflict:
		c.labelConflict.Add(1)
	case KindSupervisorRestart:
		c.supervisorRestart.Add(1)
	}
	if c.delivery == nil {
		return
	}
	c.delivery.Add(ctx, 1, metric.WithAttributes(
		attrTopicExtractor(c.extractor),
		attrKind(kind),
	))
}

// Snapshot is a point-in-time reading of every running tally, for
// pubsubctl's status output and the audit log.
type Snapshot struct {
	TopicExtractorID    string
	TruePositives       int64
	FalsePositives      int64
	ReplicationTimeouts int64
	ClusterUnreachables int64
	ForcedResyncs       int64
	LabelConflicts      int64
	SupervisorRestarts  int64
}

// Snapshot reads the current running totals. Safe for concurrent use with
// Inc.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		TopicExtractorID:    c.extractor,
		TruePositives:       c.truePositive.Load(),
		FalsePositives:      c.falsePositive.Load(),
		ReplicationTimeouts: c.replicationTimeout.Load(),
		ClusterUnreachables: c.clusterUnreachable.Load(),
		ForcedResyncs:       c.forcedResync.Load(),
		LabelConflicts:      c.labelConflict.Load(),
		SupervisorRestarts:  c.supervisorRestart.Load(),
	}
}
