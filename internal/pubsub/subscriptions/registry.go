// Package subscriptions holds the local, authoritative registry mapping
// topics to subscriber handles, and the immutable reader snapshots the
// Subscriber component filters against.
package subscriptions

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// Handle identifies a local subscriber. Implementations must have identity
// equality (a pointer or an interface wrapping one works); the registry
// holds a non-owning reference and never assumes the subscriber is alive.
// replyTo carries the publishing node's identity (spec.md §4.7), so a
// subscriber handle can address a reply back to the original sender
// without the pub-sub layer inventing a second request/response protocol.
type Handle[T any] interface {
	comparable
	Deliver(msg T, replyTo string)
}

// Registry is the mapping Topic -> Set<Handle> plus its inverse
// Handle -> Set<Topic>, used for O(degree) removal. Both directions are
// backed by `puzpuzpuz/xsync/v4` maps, the same concurrent map
// `node/dialer.go`/`node/proxy.go` use for their connection caches, so
// Subscribe/Unsubscribe/CurrentTopicSet never take a registry-wide lock on
// the hot publish path.
type Registry[T any, H Handle[T]] struct {
	byTopic  *xsync.Map[string, *xsync.Map[H, struct{}]]
	byHandle *xsync.Map[H, *xsync.Map[string, struct{}]]
}

// New returns an empty Registry.
func New[T any, H Handle[T]]() *Registry[T, H] {
	return &Registry[T, H]{
		byTopic:  xsync.NewMap[string, *xsync.Map[H, struct{}]](),
		byHandle: xsync.NewMap[H, *xsync.Map[string, struct{}]](),
	}
}

// Subscribe adds sub to each of topics. Idempotent: subscribing the same
// handle to the same topic more than once is a no-op on the second call.
func (r *Registry[T, H]) Subscribe(sub H, topics []string) {
	handleTopics, _ := r.byHandle.LoadOrStore(sub, xsync.NewMap[string, struct{}]())
	for _, t := range topics {
		if t == "" {
			continue
		}
		handleTopics.Store(t, struct{}{})
		subs, _ := r.byTopic.LoadOrStore(t, xsync.NewMap[H, struct{}]())
		subs.Store(sub, struct{}{})
	}
}

// Unsubscribe removes sub from each of topics only; other topics sub is
// registered for are untouched.
func (r *Registry[T, H]) Unsubscribe(sub H, topics []string) {
	handleTopics, ok := r.byHandle.Load(sub)
	if !ok {
		return
	}
	for _, t := range topics {
		handleTopics.Delete(t)
		if subs, ok := r.byTopic.Load(t); ok {
			subs.Delete(sub)
			if subs.Size() == 0 {
				r.byTopic.Delete(t)
			}
		}
	}
	if handleTopics.Size() == 0 {
		r.byHandle.Delete(sub)
	}
}

// RemoveSubscriber removes sub from every topic it was registered for. Used
// when the host runtime reports the subscriber's termination.
func (r *Registry[T, H]) RemoveSubscriber(sub H) {
	topics, ok := r.byHandle.Load(sub)
	if !ok {
		return
	}
	topics.Range(func(t string, _ struct{}) bool {
		if subs, ok := r.byTopic.Load(t); ok {
			subs.Delete(sub)
			if subs.Size() == 0 {
				r.byTopic.Delete(t)
			}
		}
		return true
	})
	r.byHandle.Delete(sub)
}

// Topics returns the current set of topics with at least one subscriber.
func (r *Registry[T, H]) Topics() []string {
	out := make([]string, 0, r.byTopic.Size())
	r.byTopic.Range(func(t string, _ *xsync.Map[H, struct{}]) bool {
		out = append(out, t)
		return true
	})
	return out
}

// Snapshot returns an immutable Reader over the current registry state.
// O(topics) copy, handed off freely between goroutines.
func (r *Registry[T, H]) Snapshot() *Reader[T, H] {
	byTopic := make(map[string][]H, r.byTopic.Size())
	r.byTopic.Range(func(t string, subs *xsync.Map[H, struct{}]) bool {
		handles := make([]H, 0, subs.Size())
		subs.Range(func(h H, _ struct{}) bool {
			handles = append(handles, h)
			return true
		})
		byTopic[t] = handles
		return true
	})
	return &Reader[T, H]{byTopic: byTopic}
}

// DiffSince returns the symmetric difference of the current topic set
// against lastExported, without mutating registry state. Callers keep
// their own baseline: the Update Loop stores CurrentTopicSet as its next
// lastExported after a successful write.
func (r *Registry[T, H]) DiffSince(lastExported map[string]struct{}) (added, removed []string) {
	r.byTopic.Range(func(t string, _ *xsync.Map[H, struct{}]) bool {
		if _, ok := lastExported[t]; !ok {
			added = append(added, t)
		}
		return true
	})
	for t := range lastExported {
		if _, ok := r.byTopic.Load(t); !ok {
			removed = append(removed, t)
		}
	}
	return added, removed
}

// CurrentTopicSet returns a defensive copy of the current topic set, for use
// as the next "lastExported" baseline.
func (r *Registry[T, H]) CurrentTopicSet() map[string]struct{} {
	out := make(map[string]struct{}, r.byTopic.Size())
	r.byTopic.Range(func(t string, _ *xsync.Map[H, struct{}]) bool {
		out[t] = struct{}{}
		return true
	})
	return out
}

// Reader is an immutable snapshot of a Registry. Readers are freely
// shareable across goroutines; mutating the Registry never affects a Reader
// already handed out.
type Reader[T any, H Handle[T]] struct {
	byTopic map[string][]H
}

// SubscribersFor returns the union of subscriber handles across topics, with
// no duplicate handle even if it is registered under more than one topic.
func (r *Reader[T, H]) SubscribersFor(topics []string) []H {
	if r == nil {
		return nil
	}
	seen := make(map[H]struct{})
	var out []H
	for _, t := range topics {
		for _, h := range r.byTopic[t] {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// Empty reports whether the reader has no topics registered at all — used
// by callers that want to distinguish "never populated" from "populated but
// no match" without guessing from SubscribersFor's nil return.
func (r *Reader[T, H]) Empty() bool {
	return r == nil || len(r.byTopic) == 0
}
