package main

import (
	"context"

	"ddatapubsub/internal/pubsub/metrics"
	"ddatapubsub/internal/pubsub/node"
	"ddatapubsub/internal/pubsub/updateloop"
)

// adminService adapts a running node.Node to admin.Service, fulfilling
// spec.md §6's public API surface (publish/subscribe/unsubscribe/
// declareAckLabels) plus the status/topics inspection pubsubctl needs.
type adminService struct {
	n      *node.Node[message, logHandle]
	handle logHandle
}

func (a *adminService) Publish(ctx context.Context, topics []string, body string) error {
	return a.n.Publish(ctx, message{Topics: topics, Body: body})
}

func (a *adminService) Subscribe(_ context.Context, topics []string) error {
	a.n.Subscribe(a.handle, topics)
	return nil
}

func (a *adminService) Unsubscribe(_ context.Context, topics []string) error {
	a.n.Unsubscribe(a.handle, topics)
	return nil
}

func (a *adminService) DeclareAckLabels(ctx context.Context, labels []string) error {
	return a.n.DeclareAckLabels(ctx, labels)
}

func (a *adminService) Status(context.Context) (metrics.Snapshot, error) {
	return a.n.Metrics.Snapshot(), nil
}

func (a *adminService) Topics(context.Context) ([]string, error) {
	return a.n.Registry.Topics(), nil
}

func (a *adminService) TickHistory(context.Context) ([]updateloop.ReplayEntry, error) {
	return a.n.TickHistory(), nil
}
