package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"Driftline/internal/backend"
	"Driftline/internal/core/feeds"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(errorResponse{
		Error:   errorType,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case feeds.IsValidationError(err):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())

	case backend.IsAuth(err):
		writeError(w, http.StatusUnauthorized, "AuthRequired", backend.UserMessage(err))

	case backend.IsValidation(err):
		writeError(w, http.StatusBadRequest, "InvalidRequest", backend.UserMessage(err))

	default:
		logger.Error("feed query failed", "error", err)
		writeError(w, http.StatusBadGateway, "UpstreamError", backend.UserMessage(err))
	}
}
