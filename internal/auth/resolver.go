package auth

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

const maxDeviceHashLen = 128

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// Resolver maps the credentials a caller presents to a hashed identity.
// Precedence is bearer token, then device hash, then network address.
type Resolver struct {
	tokens tokenValidator
	hasher *IdentityHasher
}

// NewResolver creates a Resolver. A nil validator rejects every bearer token.
func NewResolver(tokens tokenValidator, hasher *IdentityHasher) *Resolver {
	return &Resolver{tokens: tokens, hasher: hasher}
}

// FromToken validates a bearer token and returns the user's identity.
func (r *Resolver) FromToken(ctx context.Context, token string) (ctxutil.Identity, error) {
	if r.tokens == nil {
		return ctxutil.Identity{}, fmt.Errorf("bearer tokens disabled: %w", domain.ErrUnauthorized)
	}
	userID, err := r.tokens.ValidateToken(ctx, token)
	if err != nil {
		return ctxutil.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return ctxutil.Identity{
		ID:            r.hasher.Hash(IdentityUser, userID.String()),
		Authenticated: true,
		Subject:       userID,
	}, nil
}

// FromDevice returns the identity for a client-generated device hash.
func (r *Resolver) FromDevice(hash string) (ctxutil.Identity, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" || len(hash) > maxDeviceHashLen {
		return ctxutil.Identity{}, domain.NewValidationError("device_hash", fmt.Sprintf("must be 1-%d characters", maxDeviceHashLen))
	}
	return ctxutil.Identity{ID: r.hasher.Hash(IdentityDevice, hash)}, nil
}

// FromAddr returns the identity for a remote address, ignoring the port.
func (r *Resolver) FromAddr(remoteAddr string) ctxutil.Identity {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return ctxutil.Identity{ID: r.hasher.Hash(IdentityIP, host)}
}
