package domain

import "context"

// Identity is the authenticated principal behind a connection or request.
// It is resolved once at authentication time and immutable afterwards.
type Identity struct {
	ID          string
	DisplayName string
	IsAdmin     bool
}

// Member returns the identity's embeddable document summary.
func (i Identity) Member() Member {
	return Member{ID: i.ID, DisplayName: i.DisplayName}
}

type identityCtxKey struct{}

// WithIdentity returns a context carrying the acting identity. Handlers bind
// it once per dispatched event; everything downstream reads it with
// IdentityFrom instead of threading the identity through every signature.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFrom returns the acting identity bound to the context, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}
