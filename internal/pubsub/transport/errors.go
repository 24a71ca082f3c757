package transport

import (
	"context"
	"errors"

	"ddatapubsub/internal/pubsub/ddata"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toGRPCStatus maps the pub-sub's sentinel errors onto gRPC status codes,
// the way the teacher's daemon/server.toGRPCError maps mesh errors —
// ReplicationTimeout and ClusterUnreachable (spec.md §7) must be
// distinguishable on the wire so a caller can tell "retry later" apart from
// "no peers at all".
func toGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ddata.ErrReplicationTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ddata.ErrClusterUnreachable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromGRPCStatus is the client-side inverse, recovering the sentinel so
// callers can keep using errors.Is against ddata's error values.
func fromGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return ddata.ErrReplicationTimeout
	case codes.Unavailable:
		return ddata.ErrClusterUnreachable
	default:
		return err
	}
}
