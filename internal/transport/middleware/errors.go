package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// writeError sends the same error body the REST handlers use.
func writeError(w http.ResponseWriter, status int, body api.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
