package audit

import (
	"context"
	"path/filepath"
	"testing"

	"ddatapubsub/internal/pubsub/metrics"
)

func TestRecordAndHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		err := log.Record(ctx, metrics.Snapshot{
			TopicExtractorID:   "inventory",
			TruePositives:      i,
			FalsePositives:     i * 2,
			LabelConflicts:     i * 3,
			SupervisorRestarts: i * 4,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	history, err := log.History(ctx, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	// newest first
	if history[0].TruePositives != 3 || history[1].TruePositives != 2 {
		t.Fatalf("unexpected ordering: %+v", history)
	}
	if history[0].FalsePositives != 6 {
		t.Fatalf("false positives = %d, want 6", history[0].FalsePositives)
	}
	if history[0].LabelConflicts != 9 || history[0].SupervisorRestarts != 12 {
		t.Fatalf("unexpected label conflicts/supervisor restarts: %+v", history[0])
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()
}
