package transport

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "pubsub.Transport"

// Server is implemented by the node-local handler that answers Push and
// Read calls from peers.
type Server interface {
	Push(ctx context.Context, req *PushRequest) (*PushResponse, error)
	ReadCompressed(ctx context.Context, req *ReadCompressedRequest) (*ReadCompressedResponse, error)
	ReadLiteral(ctx context.Context, req *ReadLiteralRequest) (*ReadLiteralResponse, error)
}

// RegisterServer attaches srv's handlers to a *grpc.Server under the
// pub-sub transport service name.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
		{MethodName: "ReadCompressed", Handler: readCompressedHandler},
		{MethodName: "ReadLiteral", Handler: readLiteralHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pubsub/transport.proto",
}

func pushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PushRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Push"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Push(ctx, req.(*PushRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func readCompressedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadCompressedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ReadCompressed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ReadCompressed"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).ReadCompressed(ctx, req.(*ReadCompressedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func readLiteralHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadLiteralRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ReadLiteral(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ReadLiteral"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).ReadLiteral(ctx, req.(*ReadLiteralRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls a peer's pub-sub Transport service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection to a peer.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Push(ctx context.Context, req *PushRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	out := new(PushResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Push", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReadCompressed(ctx context.Context, req *ReadCompressedRequest, opts ...grpc.CallOption) (*ReadCompressedResponse, error) {
	out := new(ReadCompressedResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ReadCompressed", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReadLiteral(ctx context.Context, req *ReadLiteralRequest, opts ...grpc.CallOption) (*ReadLiteralResponse, error) {
	out := new(ReadLiteralResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ReadLiteral", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
