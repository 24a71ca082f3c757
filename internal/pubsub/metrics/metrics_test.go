package metrics

import (
	"context"
	"testing"
)

func TestIncAccumulatesPerKind(t *testing.T) {
	c := New(nil, "inventory")
	ctx := context.Background()

	c.Inc(ctx, KindTruePositive)
	c.Inc(ctx, KindTruePositive)
	c.Inc(ctx, KindFalsePositive)
	c.Inc(ctx, KindForcedResync)

	snap := c.Snapshot()
	if snap.TopicExtractorID != "inventory" {
		t.Fatalf("extractor id = %q", snap.TopicExtractorID)
	}
	if snap.TruePositives != 2 {
		t.Fatalf("true positives = %d, want 2", snap.TruePositives)
	}
	if snap.FalsePositives != 1 {
		t.Fatalf("false positives = %d, want 1", snap.FalsePositives)
	}
	if snap.ForcedResyncs != 1 {
		t.Fatalf("forced resyncs = %d, want 1", snap.ForcedResyncs)
	}
	if snap.ReplicationTimeouts != 0 || snap.ClusterUnreachables != 0 || snap.LabelConflicts != 0 {
		t.Fatalf("unexpected non-zero counters in %+v", snap)
	}
}

func TestNilCountersIsNoop(t *testing.T) {
	var c *Counters
	c.Inc(context.Background(), KindTruePositive)
	if snap := c.Snapshot(); snap != (Snapshot{}) {
		t.Fatalf("nil Counters.Snapshot() = %+v, want zero value", snap)
	}
}
