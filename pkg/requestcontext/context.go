// Package requestcontext provides HTTP-independent accessors for
// request-scoped values.
//
// Middleware sets values; services and stores read them without importing
// net/http. Tests inject fixed values (notably WithTime) to keep time-based
// behavior deterministic.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	actorIDKey     struct{}
	requestTimeKey struct{}
)

// RequestID retrieves the correlation ID assigned to the current request.
// Returns the empty string if not set.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// ActorID retrieves the identity of the caller performing the operation,
// as reported by the provisioning client. Empty when anonymous.
func ActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActorID injects an actor identity into the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// Now returns the request time if one was injected, else time.Now().
// Tests use WithTime to pin timestamps.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithTime injects a fixed request time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
