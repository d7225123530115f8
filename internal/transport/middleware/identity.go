package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/heartmarshall/safety-pulse/pkg/api"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

// DeviceHashHeader carries the client-generated device identifier.
const DeviceHashHeader = "X-Device-Hash"

type identityResolver interface {
	FromToken(ctx context.Context, token string) (ctxutil.Identity, error)
	FromDevice(hash string) (ctxutil.Identity, error)
	FromAddr(remoteAddr string) ctxutil.Identity
}

// Identity attaches a hashed caller identity to every request. A bearer
// token wins over the device header, which wins over the remote address.
// An invalid token or device hash is rejected rather than downgraded.
func Identity(resolver identityResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token := extractBearerToken(r); token != "" {
				id, err := resolver.FromToken(ctx, token)
				if err != nil {
					writeError(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
					return
				}
				next.ServeHTTP(w, r.WithContext(ctxutil.WithIdentity(ctx, id)))
				return
			}

			if device := r.Header.Get(DeviceHashHeader); device != "" {
				id, err := resolver.FromDevice(device)
				if err != nil {
					writeError(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid device hash", Code: "validation"})
					return
				}
				next.ServeHTTP(w, r.WithContext(ctxutil.WithIdentity(ctx, id)))
				return
			}

			id := resolver.FromAddr(r.RemoteAddr)
			next.ServeHTTP(w, r.WithContext(ctxutil.WithIdentity(ctx, id)))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
