package auditry

import (
	"context"
)

// context keys are unexported key types.
type principalKey struct{}
type requestKey struct{}
type skipKey struct{}

// Principal is the acting user attached to a context.
type Principal struct {
	ID        string
	Anonymous bool
}

// WithActor attaches the acting principal to the context.
func WithActor(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// WithOperator attaches a registered, non-anonymous principal identified by id.
func WithOperator(ctx context.Context, id string) context.Context {
	return WithActor(ctx, Principal{ID: id})
}

// WithRequest attaches request origin info to the context.
func WithRequest(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, info)
}

// WithSkip marks the context so the recorder bypasses subsequent mutations.
func WithSkip(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

// PrincipalFrom extracts the principal from context.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequestFrom extracts request origin info from context.
func RequestFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestKey{}).(RequestInfo)
	return info, ok
}

func extractSkip(ctx context.Context) bool {
	if v, ok := ctx.Value(skipKey{}).(bool); ok {
		return v
	}
	return false
}

// ActorResolver resolves the acting principal for an audit entry.
type ActorResolver interface {
	// CurrentActor returns the actor reference, or false for anonymous and unattended work.
	CurrentActor(ctx context.Context) (string, bool)
}

// ActorResolverFunc adapts a function to ActorResolver.
type ActorResolverFunc func(ctx context.Context) (string, bool)

func (f ActorResolverFunc) CurrentActor(ctx context.Context) (string, bool) { return f(ctx) }

// ContextActorResolver reads the principal attached with WithActor.
type ContextActorResolver struct{}

func (ContextActorResolver) CurrentActor(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.Anonymous || p.ID == "" {
		return "", false
	}
	return p.ID, true
}
