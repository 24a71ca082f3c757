package acklabel

import (
	"context"
	"errors"
	"testing"

	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/metrics"
)

func TestDeclareSucceedsWhenLabelUnclaimed(t *testing.T) {
	cluster := ddata.NewFakeCluster[string]()
	lit := cluster.Join("a")
	reg := &Registry{Self: "a", Literal: lit}

	if err := reg.Declare(context.Background(), []string{"lbl"}); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	owner, ok := reg.OwnerOf("lbl")
	if !ok || owner != "a" {
		t.Fatalf("expected a to own lbl, got %q ok=%v", owner, ok)
	}
}

func TestDeclareFailsOnConflict(t *testing.T) {
	cluster := ddata.NewFakeCluster[string]()
	litA := cluster.Join("a")
	litB := cluster.Join("b")

	regA := &Registry{Self: "a", Literal: litA}
	if err := regA.Declare(context.Background(), []string{"lbl"}); err != nil {
		t.Fatalf("Declare a: %v", err)
	}

	m := metrics.New(nil, "test")
	regB := &Registry{Self: "b", Literal: litB, Metrics: m}
	err := regB.Declare(context.Background(), []string{"lbl"})
	var conflict *LabelConflict
	if !errors.As(err, &conflict) || conflict.Label != "lbl" {
		t.Fatalf("expected LabelConflict(lbl), got %v", err)
	}
	if got := m.Snapshot().LabelConflicts; got != 1 {
		t.Fatalf("LabelConflicts = %d, want 1", got)
	}
}

func TestReconcileKeepsLexicographicallySmallestNodeId(t *testing.T) {
	cluster := ddata.NewFakeCluster[string]()
	litA := cluster.Join("a")
	litB := cluster.Join("b")

	// Simulate both nodes declaring the same label before either observes
	// the other's write: partition each off while the other declares, then
	// hand each node the peer's entry directly (standing in for the gossip
	// delivery the partition suppressed).
	cluster.Partition("b")
	if err := (&Registry{Self: "a", Literal: litA}).Declare(context.Background(), []string{"lbl"}); err != nil {
		t.Fatalf("declare a: %v", err)
	}
	cluster.Heal("b")
	cluster.Partition("a")
	if err := (&Registry{Self: "b", Literal: litB}).Declare(context.Background(), []string{"lbl"}); err != nil {
		t.Fatalf("declare b: %v", err)
	}
	cluster.Heal("a")

	litA.ApplyRemote("b", 1, map[string]struct{}{"lbl": {}})
	litB.ApplyRemote("a", 1, map[string]struct{}{"lbl": {}})

	regA := &Registry{Self: "a", Literal: litA}
	regB := &Registry{Self: "b", Literal: litB}

	if err := regA.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile a: %v", err)
	}
	if err := regB.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile b: %v", err)
	}

	ownerA, _ := regA.OwnerOf("lbl")
	ownerB, _ := regB.OwnerOf("lbl")
	if ownerA != "a" {
		t.Fatalf("expected a (lexicographically smallest) to survive, node a sees owner %q", ownerA)
	}
	if ownerB != "a" {
		t.Fatalf("expected a (lexicographically smallest) to survive, node b sees owner %q", ownerB)
	}
}

func TestReleaseRemovesLabel(t *testing.T) {
	cluster := ddata.NewFakeCluster[string]()
	lit := cluster.Join("a")
	reg := &Registry{Self: "a", Literal: lit}

	if err := reg.Declare(context.Background(), []string{"lbl"}); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if err := reg.Release(context.Background(), []string{"lbl"}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := reg.OwnerOf("lbl"); ok {
		t.Fatalf("expected lbl to have no owner after release")
	}
}
