// Package indel implements the buffered insert/delete/replace-all mutation
// that the Update Loop hands to the replicator.
package indel

// Update is a batched mutation over a set of comparable values. Applying it
// to a set S yields S' = (replaceAll ? empty : S) ∪ Inserts \ Deletes.
type Update[S comparable] struct {
	Inserts    map[S]struct{}
	Deletes    map[S]struct{}
	ReplaceAll bool
}

// Reset returns the empty, non-replacing update.
func Reset[S comparable]() Update[S] {
	return Update[S]{Inserts: map[S]struct{}{}, Deletes: map[S]struct{}{}}
}

// Builder accumulates inserts and deletes between flushes. It is confined to
// a single owner (the Update Loop task); ExportAndReset hands a by-value
// snapshot to the replicator.
type Builder[S comparable] struct {
	inserts map[S]struct{}
	deletes map[S]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder[S comparable]() *Builder[S] {
	return &Builder[S]{inserts: map[S]struct{}{}, deletes: map[S]struct{}{}}
}

// Insert records x for insertion, stripping it from the pending delete set.
func (b *Builder[S]) Insert(x S) {
	delete(b.deletes, x)
	b.inserts[x] = struct{}{}
}

// InsertAll inserts every element of xs.
func (b *Builder[S]) InsertAll(xs []S) {
	for _, x := range xs {
		b.Insert(x)
	}
}

// Delete records x for deletion, stripping it from the pending insert set.
func (b *Builder[S]) Delete(x S) {
	delete(b.inserts, x)
	b.deletes[x] = struct{}{}
}

// DeleteAll deletes every element of xs.
func (b *Builder[S]) DeleteAll(xs []S) {
	for _, x := range xs {
		b.Delete(x)
	}
}

// ExportAndReset returns the accumulated update and clears the builder for
// the next interval.
func (b *Builder[S]) ExportAndReset() Update[S] {
	u := Update[S]{Inserts: b.inserts, Deletes: b.deletes}
	b.inserts = map[S]struct{}{}
	b.deletes = map[S]struct{}{}
	return u
}

// ReplaceAll discards any pending insert/delete and returns a full
// replacement update carrying set as the new Inserts.
func ReplaceAll[S comparable](set map[S]struct{}) Update[S] {
	inserts := make(map[S]struct{}, len(set))
	for x := range set {
		inserts[x] = struct{}{}
	}
	return Update[S]{Inserts: inserts, Deletes: map[S]struct{}{}, ReplaceAll: true}
}

// Apply computes S' = (replaceAll ? ∅ : s) ∪ Inserts \ Deletes.
func Apply[S comparable](s map[S]struct{}, u Update[S]) map[S]struct{} {
	out := make(map[S]struct{}, len(s)+len(u.Inserts))
	if !u.ReplaceAll {
		for x := range s {
			out[x] = struct{}{}
		}
	}
	for x := range u.Inserts {
		out[x] = struct{}{}
	}
	for x := range u.Deletes {
		delete(out, x)
	}
	return out
}

// Wire is the stable, serializable shape of Update used across versions:
// {inserts: [S], deletes: [S], replaceAll: bool}.
type Wire[S any] struct {
	Inserts    []S  `json:"inserts"`
	Deletes    []S  `json:"deletes"`
	ReplaceAll bool `json:"replaceAll"`
}

// ToWire flattens Update into its serializable form.
func ToWire[S comparable](u Update[S]) Wire[S] {
	w := Wire[S]{ReplaceAll: u.ReplaceAll}
	for x := range u.Inserts {
		w.Inserts = append(w.Inserts, x)
	}
	for x := range u.Deletes {
		w.Deletes = append(w.Deletes, x)
	}
	return w
}

// FromWire reconstitutes an Update from its wire form.
func FromWire[S comparable](w Wire[S]) Update[S] {
	u := Update[S]{Inserts: make(map[S]struct{}, len(w.Inserts)), Deletes: make(map[S]struct{}, len(w.Deletes)), ReplaceAll: w.ReplaceAll}
	for _, x := range w.Inserts {
		u.Inserts[x] = struct{}{}
	}
	for _, x := range w.Deletes {
		u.Deletes[x] = struct{}{}
	}
	return u
}
