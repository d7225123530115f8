package middleware

import (
	"net/http"
	"slices"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain composes mws so that the first one runs outermost. Nil entries are
// skipped, so optional middleware can be left out by configuration.
func Chain(mws ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for _, mw := range slices.Backward(mws) {
			if mw != nil {
				final = mw(final)
			}
		}
		return final
	}
}
