package query

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/snapshot"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("query: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, []string{message})
}

// statusFor maps a service error onto an HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ErrInvalidSource), errors.Is(err, snapshot.ErrInvalidObservation):
		return http.StatusBadRequest, "bad request"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
