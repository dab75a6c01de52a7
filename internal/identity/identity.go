// Package identity carries the authenticated shopper through a request.
// Sign-in itself is handled elsewhere; this service only consumes the result.
package identity

import (
	"context"
	"errors"
)

var ErrUnauthenticated = errors.New("sign in required")

type Identity struct {
	UserID int64
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID > 0
}

// Require returns the caller's identity or ErrUnauthenticated.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}
