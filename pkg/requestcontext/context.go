// Package requestcontext carries request-scoped values (request id, client
// metadata, request time) from the HTTP middleware into the service layer
// without the service importing net/http.
//
// Tests and background workers set the same values directly:
//
//	ctx = requestcontext.WithTime(ctx, sweepStart)
//	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "Mozilla/5.0 ...")
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	clientIPKey key = iota
	userAgentKey
	requestIDKey
	requestTimeKey
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// ClientIP is the caller address recorded on activity entries.
func ClientIP(ctx context.Context) string {
	ip, _ := value[string](ctx, clientIPKey)
	return ip
}

// UserAgent is the caller's User-Agent recorded on activity entries.
func UserAgent(ctx context.Context) string {
	ua, _ := value[string](ctx, userAgentKey)
	return ua
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string {
	id, _ := value[string](ctx, requestIDKey)
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the time the request (or sweep) started. Without one it falls
// back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, requestTimeKey); ok {
		return t
	}
	return time.Now()
}

// WithTime pins Now for everything downstream, so every transition in one
// expiry batch is stamped with the same instant.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
