package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/wire"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}

// decodeBody decodes a JSON body into v. With optional set, an empty body
// leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case optional && errors.Is(err, io.EOF):
		return nil
	default:
		return domain.NewValidationError("body", "invalid request body")
	}
}

// handleError maps domain errors to HTTP responses.
func handleError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		rejection  *domain.AbuseRejection
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error:  validation.Error(),
			Code:   "validation",
			Fields: wire.FieldErrors(validation.Errors),
		})
	case errors.As(err, &conflict):
		status := http.StatusConflict
		if conflict.Code == domain.ConflictNotOwner {
			status = http.StatusForbidden
		}
		writeJSON(w, status, api.ErrorResponse{Error: conflict.Message, Code: string(conflict.Code)})
	case errors.As(err, &rejection):
		secs := int((rejection.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		writeJSON(w, http.StatusTooManyRequests, api.ErrorResponse{
			Error:             rejection.Reason,
			Code:              "rate_limited",
			RetryAfterSeconds: max(secs, 1),
		})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "not found", Code: "not_found"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, api.ErrorResponse{Error: "rate limited", Code: "rate_limited"})
	default:
		log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
