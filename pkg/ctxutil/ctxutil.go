// Package ctxutil carries per-request values through context.Context.
package ctxutil

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type (
	identityKey  struct{}
	requestIDKey struct{}
)

// Identity is the hashed caller identity attached to a request.
type Identity struct {
	// ID is an opaque digest prefixed with its kind, e.g. "device:3f9a...".
	// It is stable for the same user, device or address.
	ID string
	// Authenticated is true when the identity came from a valid bearer token.
	Authenticated bool
	// Subject is the token's user id; uuid.Nil for anonymous identities.
	Subject uuid.UUID
}

// Kind returns the ID prefix: "user", "device" or "ip". It never exposes
// the digest and is safe to log.
func (id Identity) Kind() string {
	kind, _, ok := strings.Cut(id.ID, ":")
	if !ok {
		return "unknown"
	}
	return kind
}

// WithIdentity stores the caller identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromCtx returns the caller identity. ok is false when none or an
// empty one is stored.
func IdentityFromCtx(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.ID == "" {
		return Identity{}, false
	}
	return id, true
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromCtx returns the request id, or "" if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
