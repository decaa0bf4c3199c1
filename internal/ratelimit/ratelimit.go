// Package ratelimit bounds how fast clients may issue scheduler RPCs.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Limiter rejects RPCs beyond a shared token bucket with RESOURCE_EXHAUSTED.
// A nil *Limiter admits everything.
type Limiter struct {
	l *rate.Limiter
}

// New returns a limiter admitting perSecond calls with the given burst.
// A non-positive perSecond disables limiting.
func New(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *Limiter) allow(method string) error {
	if l == nil || l.l.Allow() {
		return nil
	}
	return status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", method)
}

func (l *Limiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := l.allow(info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor charges one token per stream opened.
func (l *Limiter) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := l.allow(info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}
