package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/metrics"
	"ddatapubsub/internal/pubsub/transport"
)

type testHandle struct {
	id  string
	got *[]string
}

func (h testHandle) Deliver(msg string, replyTo string) {
	*h.got = append(*h.got, msg)
}

type swRemote struct {
	sw *transport.LocalSwitchboard
}

func (r swRemote) Forward(ctx context.Context, node ddata.NodeID, topics []string, payload []byte, replyTo string) error {
	return r.sw.Forward(node, topics, payload, replyTo)
}

func identity(msg string) []string { return []string{msg} }

func newTestNode(sw *transport.LocalSwitchboard, self ddata.NodeID) *Node[string, testHandle] {
	cfg := Config{HashFamilySize: 2, Seed: "test-seed", WriteConsistency: ddata.Local}
	n := New[string, testHandle](
		self, cfg,
		sw.NewCompressedReplicator(self),
		sw.NewLiteralReplicator(self),
		swRemote{sw},
		identity,
		"test",
		nil,
	)
	sw.Register(self, &transport.NodeServer{
		Compressed: n.Compressed,
		Literal:    n.Literal,
		Sub:        localForwarder[string, testHandle]{n.Subscriber},
	})
	return n
}

// TestScenarioS1TwoNodeDelivery matches spec.md §8 S1: N2 subscribes hA to
// "t", N1 publishes a message whose topics are {"t"} after one tick, and hA
// receives it exactly once.
func TestScenarioS1TwoNodeDelivery(t *testing.T) {
	sw := transport.NewLocalSwitchboard()
	n1 := newTestNode(sw, "n1")
	n2 := newTestNode(sw, "n2")

	var got []string
	n2.Subscribe(testHandle{id: "hA", got: &got}, []string{"t"})
	n2.loop.Tick(context.Background())

	if err := n1.Publish(context.Background(), "t"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitFor(t, func() bool { return len(got) == 1 })
	if got[0] != "t" {
		t.Fatalf("expected delivery of %q, got %+v", "t", got)
	}
}

// TestScenarioS2NoDuplicateCrossDelivery matches spec.md §8 S2.
func TestScenarioS2NoDuplicateCrossDelivery(t *testing.T) {
	sw := transport.NewLocalSwitchboard()
	n1 := newTestNode(sw, "n1")
	n2 := newTestNode(sw, "n2")

	var gotA, gotB []string
	n2.Subscribe(testHandle{id: "hA", got: &gotA}, []string{"t1"})
	n2.Subscribe(testHandle{id: "hB", got: &gotB}, []string{"t2"})
	n2.loop.Tick(context.Background())

	publisher := n1.Publisher
	publisher.TopicExtractor = func(msg string) []string { return []string{"t1", "t2"} }
	if err := n1.Publish(context.Background(), "m"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool { return len(gotA) == 1 && len(gotB) == 1 })
	if len(gotA) != 1 || len(gotB) != 1 {
		t.Fatalf("expected exactly one delivery each, got gotA=%+v gotB=%+v", gotA, gotB)
	}
}

// TestScenarioS4UnsubscribeBeforeTickNeverDelivers matches spec.md §8 S4:
// subscribing then unsubscribing before any tick elapses must leave hA
// untouched once the next publish arrives.
func TestScenarioS4UnsubscribeBeforeTickNeverDelivers(t *testing.T) {
	sw := transport.NewLocalSwitchboard()
	n1 := newTestNode(sw, "n1")
	n2 := newTestNode(sw, "n2")

	var got []string
	h := testHandle{id: "hA", got: &got}
	n2.Subscribe(h, []string{"t"})
	n2.Unsubscribe(h, []string{"t"})
	n2.loop.Tick(context.Background())

	if err := n1.Publish(context.Background(), "t"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitForSettled(t)
	if len(got) != 0 {
		t.Fatalf("expected no delivery, got %+v", got)
	}
}

// TestScenarioS6ForcedResyncRecoversAfterFailures matches spec.md §8 S6: a
// run of replication failures on N2 must not permanently wedge it — once
// the failures clear and a forced tick lands, N1's publish reaches hA.
func TestScenarioS6ForcedResyncRecoversAfterFailures(t *testing.T) {
	sw := transport.NewLocalSwitchboard()
	n1 := newTestNode(sw, "n1")
	n2 := newTestNode(sw, "n2")

	var got []string
	n2.Subscribe(testHandle{id: "hA", got: &got}, []string{"t"})

	// Unregistering n1 leaves n2 with no reachable peers, so its writes
	// fail with ClusterUnreachable for a run of ticks.
	sw.Unregister("n1")
	for i := 0; i < 5; i++ {
		n2.loop.Tick(context.Background())
	}

	sw.Register("n1", &transport.NodeServer{
		Compressed: n1.Compressed, Literal: n1.Literal,
		Sub: localForwarder[string, testHandle]{n1.Subscriber},
	})
	// lastWriteFailed forces replaceAll on the next tick regardless of the
	// random roll, guaranteeing convergence once n2 is reachable again.
	n2.loop.Tick(context.Background())

	if err := n1.Publish(context.Background(), "t"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitFor(t, func() bool { return len(got) == 1 })
}

// waitFor polls cond for up to a second — Publish forwards on its own
// goroutine, so delivery into the LocalSwitchboard is not synchronous with
// Publish's return.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met in time")
	}
}

func waitForSettled(t *testing.T) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
}

func TestSuperviseRestartsAndCountsEachRespawn(t *testing.T) {
	m := metrics.New(nil, "test")
	var calls int
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		supervise(ctx, time.Millisecond, "test-task", m, func(ctx context.Context) error {
			calls++
			if calls >= 3 {
				close(done)
				<-ctx.Done()
				return ctx.Err()
			}
			return errors.New("boom")
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("supervise did not reach 3 calls in time, got %d", calls)
	}
	cancel()

	if got := m.Snapshot().SupervisorRestarts; got < 2 {
		t.Fatalf("SupervisorRestarts = %d, want at least 2", got)
	}
}
