// Package admin exposes a pubsubd node's public API surface (spec.md §6:
// publish/subscribe/unsubscribe/declareAckLabels) plus status/topics
// inspection over gRPC, for pubsubctl. It is the thin external-collaborator
// seam spec.md §1 calls out — pubsubd hosts one demo message type; a real
// embedding runtime would call node.Node directly instead.
package admin

import (
	"context"
	"errors"
	"time"

	"ddatapubsub/internal/pubsub/acklabel"
	"ddatapubsub/internal/pubsub/metrics"
	// Registers the JSON codec under "proto" so the plain-struct admin
	// messages can be marshaled by any binary that links this package.
	_ "ddatapubsub/internal/pubsub/transport"
	"ddatapubsub/internal/pubsub/updateloop"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "pubsub.Admin"

// Service is the operation set a pubsubd node answers admin calls with.
type Service interface {
	Publish(ctx context.Context, topics []string, body string) error
	Subscribe(ctx context.Context, topics []string) error
	Unsubscribe(ctx context.Context, topics []string) error
	DeclareAckLabels(ctx context.Context, labels []string) error
	Status(ctx context.Context) (metrics.Snapshot, error)
	Topics(ctx context.Context) ([]string, error)
	TickHistory(ctx context.Context) ([]updateloop.ReplayEntry, error)
}

// RegisterServer attaches svc's handlers to s under the admin service name.
func RegisterServer(s *grpc.Server, svc Service) {
	s.RegisterService(&serviceDesc, svc)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
		{MethodName: "Subscribe", Handler: subscribeHandler},
		{MethodName: "Unsubscribe", Handler: unsubscribeHandler},
		{MethodName: "DeclareAckLabels", Handler: declareAckLabelsHandler},
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "Topics", Handler: topicsHandler},
		{MethodName: "TickHistory", Handler: tickHistoryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pubsub/admin.proto",
}

// PublishRequest carries a demo message's topics and body (spec.md's
// topicExtractor is fixed to "Topics" for this CLI-facing surface).
type PublishRequest struct {
	Topics []string
	Body   string
}

// PublishResponse is empty; Publish never blocks on delivery (spec.md §4.6).
type PublishResponse struct{}

// TopicsRequest carries the topic set for Subscribe/Unsubscribe.
type TopicsRequest struct {
	Topics []string
}

// TopicsResponse is empty.
type TopicsResponse struct{}

// LabelsRequest carries the label set for DeclareAckLabels.
type LabelsRequest struct {
	Labels []string
}

// LabelsResponse is empty on success; a LabelConflict surfaces as a gRPC
// error (codes.AlreadyExists) instead.
type LabelsResponse struct{}

// StatusRequest is empty.
type StatusRequest struct{}

// StatusResponse mirrors metrics.Snapshot.
type StatusResponse struct {
	Snapshot metrics.Snapshot
}

// CurrentTopicsRequest is empty.
type CurrentTopicsRequest struct{}

// CurrentTopicsResponse lists the topics with at least one local
// subscriber, whether or not an Update Loop tick has advertised them yet.
type CurrentTopicsResponse struct {
	Topics []string
}

// TickHistoryRequest is empty.
type TickHistoryRequest struct{}

// TickHistoryEntry mirrors updateloop.ReplayEntry for the wire.
type TickHistoryEntry struct {
	At      time.Time
	Added   []string
	Removed []string
	Forced  bool
}

// TickHistoryResponse lists the Update Loop's recent diagnostic ticks,
// oldest first.
type TickHistoryResponse struct {
	Entries []TickHistoryEntry
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*PublishRequest)
		if err := srv.(Service).Publish(ctx, r.Topics, r.Body); err != nil {
			return nil, toGRPCStatus(err)
		}
		return &PublishResponse{}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Publish"}
	return interceptor(ctx, in, info, run)
}

func subscribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TopicsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*TopicsRequest)
		if err := srv.(Service).Subscribe(ctx, r.Topics); err != nil {
			return nil, toGRPCStatus(err)
		}
		return &TopicsResponse{}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Subscribe"}
	return interceptor(ctx, in, info, run)
}

func unsubscribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TopicsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*TopicsRequest)
		if err := srv.(Service).Unsubscribe(ctx, r.Topics); err != nil {
			return nil, toGRPCStatus(err)
		}
		return &TopicsResponse{}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Unsubscribe"}
	return interceptor(ctx, in, info, run)
}

func declareAckLabelsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LabelsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*LabelsRequest)
		if err := srv.(Service).DeclareAckLabels(ctx, r.Labels); err != nil {
			return nil, toGRPCStatus(err)
		}
		return &LabelsResponse{}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/DeclareAckLabels"}
	return interceptor(ctx, in, info, run)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		snap, err := srv.(Service).Status(ctx)
		if err != nil {
			return nil, toGRPCStatus(err)
		}
		return &StatusResponse{Snapshot: snap}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Status"}
	return interceptor(ctx, in, info, run)
}

func topicsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CurrentTopicsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		topics, err := srv.(Service).Topics(ctx)
		if err != nil {
			return nil, toGRPCStatus(err)
		}
		return &CurrentTopicsResponse{Topics: topics}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Topics"}
	return interceptor(ctx, in, info, run)
}

func tickHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TickHistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		hist, err := srv.(Service).TickHistory(ctx)
		if err != nil {
			return nil, toGRPCStatus(err)
		}
		entries := make([]TickHistoryEntry, len(hist))
		for i, e := range hist {
			entries[i] = TickHistoryEntry{At: e.At, Added: e.Added, Removed: e.Removed, Forced: e.Forced}
		}
		return &TickHistoryResponse{Entries: entries}, nil
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/TickHistory"}
	return interceptor(ctx, in, info, run)
}

// Client calls a pubsubd node's admin service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection to a node's admin listener.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Publish(ctx context.Context, topics []string, body string, opts ...grpc.CallOption) error {
	out := new(PublishResponse)
	return c.cc.Invoke(ctx, "/"+serviceName+"/Publish", &PublishRequest{Topics: topics, Body: body}, out, opts...)
}

func (c *Client) Subscribe(ctx context.Context, topics []string, opts ...grpc.CallOption) error {
	out := new(TopicsResponse)
	return c.cc.Invoke(ctx, "/"+serviceName+"/Subscribe", &TopicsRequest{Topics: topics}, out, opts...)
}

func (c *Client) Unsubscribe(ctx context.Context, topics []string, opts ...grpc.CallOption) error {
	out := new(TopicsResponse)
	return c.cc.Invoke(ctx, "/"+serviceName+"/Unsubscribe", &TopicsRequest{Topics: topics}, out, opts...)
}

func (c *Client) DeclareAckLabels(ctx context.Context, labels []string, opts ...grpc.CallOption) error {
	out := new(LabelsResponse)
	return c.cc.Invoke(ctx, "/"+serviceName+"/DeclareAckLabels", &LabelsRequest{Labels: labels}, out, opts...)
}

func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (metrics.Snapshot, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Status", &StatusRequest{}, out, opts...); err != nil {
		return metrics.Snapshot{}, err
	}
	return out.Snapshot, nil
}

func (c *Client) Topics(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	out := new(CurrentTopicsResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Topics", &CurrentTopicsRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out.Topics, nil
}

func (c *Client) TickHistory(ctx context.Context, opts ...grpc.CallOption) ([]TickHistoryEntry, error) {
	out := new(TickHistoryResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/TickHistory", &TickHistoryRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// toGRPCStatus maps sentinel errors onto gRPC status codes the way
// transport.toGRPCStatus does for the peer transport service: a
// LabelConflict (spec.md §7) is distinguishable on the wire as
// codes.AlreadyExists so pubsubctl can report it without inspecting text.
func toGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var conflict *acklabel.LabelConflict
	if errors.As(err, &conflict) {
		return status.Error(codes.AlreadyExists, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
