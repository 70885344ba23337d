package identity

import "context"

// unexported, collision-proof context key
type resolverContextKeyType struct{}

var resolverKey = resolverContextKeyType{}

// WithResolver attaches the request's resolver to ctx.
func WithResolver(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, resolverKey, r)
}

// ResolverFromContext extracts the resolver attached by WithResolver.
func ResolverFromContext(ctx context.Context) (*Resolver, bool) {
	r, ok := ctx.Value(resolverKey).(*Resolver)
	return r, ok && r != nil
}

// SnapshotFromContext returns the request's identity. A request without
// a resolver carries no session and reads as signed out.
func SnapshotFromContext(ctx context.Context) Snapshot {
	if r, ok := ResolverFromContext(ctx); ok {
		return r.Snapshot()
	}
	return SignedOut()
}
