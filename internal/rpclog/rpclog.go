// Package rpclog logs every scheduler RPC with a per-call request id.
package rpclog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is echoed back in response headers so clients can quote it.
const RequestIDHeader = "x-request-id"

type ctxKey struct{}

// RequestID returns the id assigned to the RPC carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// requestID reuses a caller-supplied id, otherwise mints one.
func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" && len(v[0]) <= 128 {
			return v[0]
		}
	}
	return uuid.NewString()
}

func fields(ctx context.Context, method, id string) []zap.Field {
	fs := []zap.Field{zap.String("method", method), zap.String("request_id", id)}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		fs = append(fs, zap.String("peer", p.Addr.String()))
	}
	return fs
}

func level(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK, codes.Canceled:
		return zap.DebugLevel
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return zap.WarnLevel
	default:
		return zap.InfoLevel
	}
}

func UnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))
		start := time.Now()
		resp, err := handler(context.WithValue(ctx, ctxKey{}, id), req)
		code := status.Code(err)
		if ce := logger.Check(level(code), "rpc"); ce != nil {
			ce.Write(append(fields(ctx, info.FullMethod, id),
				zap.Stringer("code", code),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)...)
		}
		return resp, err
	}
}

type idStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *idStream) Context() context.Context { return s.ctx }

func StreamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		id := requestID(ctx)
		_ = ss.SetHeader(metadata.Pairs(RequestIDHeader, id))
		logger.Debug("stream opened", fields(ctx, info.FullMethod, id)...)
		start := time.Now()
		err := handler(srv, &idStream{ServerStream: ss, ctx: context.WithValue(ctx, ctxKey{}, id)})
		code := status.Code(err)
		if ce := logger.Check(level(code), "stream closed"); ce != nil {
			ce.Write(append(fields(ctx, info.FullMethod, id),
				zap.Stringer("code", code),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)...)
		}
		return err
	}
}
