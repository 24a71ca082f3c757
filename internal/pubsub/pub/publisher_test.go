package pub

import (
	"context"
	"sync"
	"testing"
	"time"

	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/hashfamily"
)

type fakeRemote struct {
	mu  sync.Mutex
	got []forwardCall
}

type forwardCall struct {
	node   ddata.NodeID
	topics []string
}

func (f *fakeRemote) Forward(ctx context.Context, node ddata.NodeID, topics []string, payload []byte, replyTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, forwardCall{node: node, topics: topics})
	return nil
}

func (f *fakeRemote) calls() []forwardCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]forwardCall, len(f.got))
	copy(out, f.got)
	return out
}

type noopReplicator struct{}

func (noopReplicator) Peers() []ddata.NodeID { return nil }
func (noopReplicator) Broadcast(ctx context.Context, self ddata.NodeID, gen uint64, values map[int32]struct{}, c ddata.Consistency) error {
	return nil
}

func TestPublishForwardsToCandidateNodes(t *testing.T) {
	hf := hashfamily.New("seed", 2)
	self := ddata.NodeID("a")
	compressed := ddata.NewCompressed(self, noopReplicator{}, 0)

	// Node "b" advertises a fingerprint matching topic "orders".
	h := hf.Hashes("orders")
	set := map[int32]struct{}{h[0]: {}}
	compressed.ApplyRemote("b", 1, set)

	remote := &fakeRemote{}
	p := &Publisher[string]{
		Self:           self,
		HashFamily:     hf,
		TopicExtractor: func(msg string) []string { return []string{msg} },
		Compressed:     compressed,
		Remote:         remote,
	}

	if err := p.Publish(context.Background(), "orders"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(remote.calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	calls := remote.calls()
	if len(calls) != 1 || calls[0].node != "b" {
		t.Fatalf("expected one forward to node b, got %+v", calls)
	}
}

func TestPublishNoTopicsIsNoop(t *testing.T) {
	hf := hashfamily.New("seed", 2)
	self := ddata.NodeID("a")
	compressed := ddata.NewCompressed(self, noopReplicator{}, 0)
	remote := &fakeRemote{}
	p := &Publisher[string]{
		Self:           self,
		HashFamily:     hf,
		TopicExtractor: func(msg string) []string { return nil },
		Compressed:     compressed,
		Remote:         remote,
	}

	if err := p.Publish(context.Background(), "anything"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if len(remote.calls()) != 0 {
		t.Fatalf("expected no forwards, got %+v", remote.calls())
	}
}

func TestPublishNoCandidatesIsNoop(t *testing.T) {
	hf := hashfamily.New("seed", 2)
	self := ddata.NodeID("a")
	compressed := ddata.NewCompressed(self, noopReplicator{}, 0)
	remote := &fakeRemote{}
	p := &Publisher[string]{
		Self:           self,
		HashFamily:     hf,
		TopicExtractor: func(msg string) []string { return []string{msg} },
		Compressed:     compressed,
		Remote:         remote,
	}

	if err := p.Publish(context.Background(), "orders"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if len(remote.calls()) != 0 {
		t.Fatalf("expected no forwards, got %+v", remote.calls())
	}
}

func TestPublishSelfShortCircuitsThroughLocal(t *testing.T) {
	hf := hashfamily.New("seed", 2)
	self := ddata.NodeID("a")
	compressed := ddata.NewCompressed(self, noopReplicator{}, 0)
	h := hf.Hashes("orders")
	compressed.ApplyRemote(self, 1, map[int32]struct{}{h[0]: {}})

	local := &fakeLocal{}
	remote := &fakeRemote{}
	p := &Publisher[string]{
		Self:           self,
		HashFamily:     hf,
		TopicExtractor: func(msg string) []string { return []string{msg} },
		Compressed:     compressed,
		Remote:         remote,
		LocalNode:      local,
	}

	if err := p.Publish(context.Background(), "orders"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if local.calls != 1 {
		t.Fatalf("expected one local delivery, got %d", local.calls)
	}
	if len(remote.calls()) != 0 {
		t.Fatalf("expected no remote forwards for self, got %+v", remote.calls())
	}
}

type fakeLocal struct {
	calls int
}

func (f *fakeLocal) Forward(topics []string, payload []byte, replyTo string) bool {
	f.calls++
	return false
}
