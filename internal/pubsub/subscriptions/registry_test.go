package subscriptions

import "testing"

type fakeHandle struct {
	id  int
	got []string
}

func (h *fakeHandle) Deliver(msg string, replyTo string) {
	h.got = append(h.got, msg)
}

func TestSubscribeIdempotent(t *testing.T) {
	reg := New[string, *fakeHandle]()
	h := &fakeHandle{id: 1}
	reg.Subscribe(h, []string{"t"})
	reg.Subscribe(h, []string{"t"})
	reg.Subscribe(h, []string{"t"})

	snap := reg.Snapshot()
	got := snap.SubscribersFor([]string{"t"})
	if len(got) != 1 {
		t.Fatalf("expected exactly one subscriber after idempotent subscribe, got %d", len(got))
	}
}

func TestUnsubscribeOnlyRemovesListedTopics(t *testing.T) {
	reg := New[string, *fakeHandle]()
	h := &fakeHandle{id: 1}
	reg.Subscribe(h, []string{"a", "b"})
	reg.Unsubscribe(h, []string{"a"})

	snap := reg.Snapshot()
	if got := snap.SubscribersFor([]string{"a"}); len(got) != 0 {
		t.Fatalf("expected no subscribers for a, got %v", got)
	}
	if got := snap.SubscribersFor([]string{"b"}); len(got) != 1 {
		t.Fatalf("expected 1 subscriber for b, got %v", got)
	}
}

func TestRemoveSubscriberClearsAllTopics(t *testing.T) {
	reg := New[string, *fakeHandle]()
	h := &fakeHandle{id: 1}
	reg.Subscribe(h, []string{"a", "b", "c"})
	reg.RemoveSubscriber(h)

	snap := reg.Snapshot()
	for _, topic := range []string{"a", "b", "c"} {
		if got := snap.SubscribersFor([]string{topic}); len(got) != 0 {
			t.Fatalf("expected no subscribers for %s after removal, got %v", topic, got)
		}
	}
}

func TestSubscribersForUnion(t *testing.T) {
	reg := New[string, *fakeHandle]()
	hA := &fakeHandle{id: 1}
	hB := &fakeHandle{id: 2}
	reg.Subscribe(hA, []string{"t1"})
	reg.Subscribe(hB, []string{"t2"})

	snap := reg.Snapshot()
	got := snap.SubscribersFor([]string{"t1", "t2"})
	if len(got) != 2 {
		t.Fatalf("expected union of 2 handles, got %d", len(got))
	}
}

func TestSubscribersForDedupesSharedTopics(t *testing.T) {
	reg := New[string, *fakeHandle]()
	h := &fakeHandle{id: 1}
	reg.Subscribe(h, []string{"t1", "t2"})

	snap := reg.Snapshot()
	got := snap.SubscribersFor([]string{"t1", "t2"})
	if len(got) != 1 {
		t.Fatalf("expected handle to be deduped across topics, got %d", len(got))
	}
}

func TestDiffSinceSymmetricDifference(t *testing.T) {
	reg := New[string, *fakeHandle]()
	h := &fakeHandle{id: 1}
	reg.Subscribe(h, []string{"a", "b"})

	last := map[string]struct{}{"b": {}, "c": {}}
	added, removed := reg.DiffSince(last)

	if len(added) != 1 || added[0] != "a" {
		t.Fatalf("expected added=[a], got %v", added)
	}
	if len(removed) != 1 || removed[0] != "c" {
		t.Fatalf("expected removed=[c], got %v", removed)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	reg := New[string, *fakeHandle]()
	h := &fakeHandle{id: 1}
	reg.Subscribe(h, []string{"t"})
	snap := reg.Snapshot()

	reg.Subscribe(&fakeHandle{id: 2}, []string{"t"})

	if got := snap.SubscribersFor([]string{"t"}); len(got) != 1 {
		t.Fatalf("prior snapshot must not observe later mutation, got %d", len(got))
	}
}
