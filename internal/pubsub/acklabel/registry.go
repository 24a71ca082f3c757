// Package acklabel implements the declared-acknowledgement-label pipeline
// described in spec.md §4.9, layered on top of Literal DData.
package acklabel

import (
	"context"
	"fmt"
	"sort"

	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/indel"
	"ddatapubsub/internal/pubsub/metrics"
)

// LabelConflict is returned synchronously from Declare when a label is
// already advertised by another node at declaration time.
type LabelConflict struct {
	Label string
}

func (e *LabelConflict) Error() string {
	return fmt.Sprintf("acklabel: %q already declared by another node", e.Label)
}

// Registry declares and releases ack labels on behalf of one node, backed by
// that node's Literal DData entry.
type Registry struct {
	Self    ddata.NodeID
	Literal *ddata.LiteralDData
	Metrics *metrics.Counters
}

// Declare attempts to insert labels into self's Literal DData entry. Before
// writing, it checks the latest snapshot for any label already advertised by
// another node; if one is found, the whole declaration fails and nothing is
// written (spec.md §4.9).
func (r *Registry) Declare(ctx context.Context, labels []string) error {
	snap := r.Literal.Read()
	for node, values := range snap {
		if node == r.Self {
			continue
		}
		for _, l := range labels {
			if _, ok := values[l]; ok {
				r.Metrics.Inc(ctx, metrics.KindLabelConflict)
				return &LabelConflict{Label: l}
			}
		}
	}

	update := indel.Update[string]{Inserts: toSet(labels)}
	return r.Literal.Write(ctx, update, ddata.Local)
}

// Release removes labels from self's entry.
func (r *Registry) Release(ctx context.Context, labels []string) error {
	update := indel.Update[string]{Deletes: toSet(labels)}
	return r.Literal.Write(ctx, update, ddata.Local)
}

// OwnerOf linearly scans the current snapshot for label's owner.
func (r *Registry) OwnerOf(label string) (ddata.NodeID, bool) {
	for node, values := range r.Literal.Read() {
		if _, ok := values[label]; ok {
			return node, true
		}
	}
	return "", false
}

// Reconcile resolves concurrent declarations of the same label that both
// became visible before either node observed the other's write: for each
// label held by more than one node, every holder except the one with the
// lexicographically smallest NodeId releases it. Callers wire this as a
// ddata.ChangeListener on the Literal DData so it runs whenever the
// replica view changes.
func (r *Registry) Reconcile(ctx context.Context) error {
	holders := make(map[string][]ddata.NodeID)
	for node, values := range r.Literal.Read() {
		for label := range values {
			holders[label] = append(holders[label], node)
		}
	}

	var toRelease []string
	for label, nodes := range holders {
		if len(nodes) < 2 {
			continue
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
		survivor := nodes[0]
		if survivor == r.Self {
			continue
		}
		for _, n := range nodes {
			if n == r.Self {
				toRelease = append(toRelease, label)
				break
			}
		}
	}
	if len(toRelease) == 0 {
		return nil
	}
	return r.Release(ctx, toRelease)
}

func toSet(xs []string) map[string]struct{} {
	out := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}
