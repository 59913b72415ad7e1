package app

import (
	"context"
	"strings"
)

// Caller carries normalized caller identity for log attribution.
type Caller struct {
	Actor  string
	Source string
}

// callerContextKey stores context keys for caller metadata.
type callerContextKey struct{}

// WithCaller attaches normalized caller metadata to context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, normalizeCaller(caller))
}

// CallerFromContext returns caller metadata when an actor is present.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	if !ok {
		return Caller{}, false
	}
	caller = normalizeCaller(caller)
	if caller.Actor == "" {
		return Caller{}, false
	}
	return caller, true
}

// normalizeCaller trims caller fields and lowercases the source.
func normalizeCaller(caller Caller) Caller {
	caller.Actor = strings.TrimSpace(caller.Actor)
	caller.Source = strings.ToLower(strings.TrimSpace(caller.Source))
	return caller
}
