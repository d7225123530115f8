package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/heartmarshall/safety-pulse/pkg/api"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

// Recovery turns a handler panic into a JSON 500. http.ErrAbortHandler is
// re-raised so the server can drop the connection as the handler asked.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("error", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", ctxutil.RequestIDFromCtx(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error", Code: "internal"})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
