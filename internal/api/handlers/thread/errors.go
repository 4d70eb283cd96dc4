package thread

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"Driftline/internal/backend"
	"Driftline/internal/core/comments"
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
	case errors.Is(err, comments.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "PostNotFound", "Post not found")

	case comments.IsValidationError(err):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())

	case backend.IsAuth(err):
		writeError(w, http.StatusUnauthorized, "AuthRequired", backend.UserMessage(err))

	case backend.IsValidation(err):
		writeError(w, http.StatusBadRequest, "InvalidRequest", backend.UserMessage(err))

	default:
		logger.Error("thread query failed", "error", err)
		writeError(w, http.StatusBadGateway, "UpstreamError", backend.UserMessage(err))
	}
}
