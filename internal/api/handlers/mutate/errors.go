package mutate

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"Driftline/internal/backend"
	"Driftline/internal/core/mutations"
)

// maxBodySize bounds mutation request bodies. 1MB allows maximal content
// while preventing abuse.
const maxBodySize = 1 * 1024 * 1024

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

// writeJSON writes a success payload.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeBody parses a bounded JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "RequestTooLarge",
				"Request body too large (max 1MB)")
			return false
		}
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return false
	}
	return true
}

// handleServiceError maps mutation errors to HTTP responses. A failed
// mutation has already rolled back; the status communicates why.
func handleServiceError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case mutations.IsValidationError(err):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())

	case backend.IsValidation(err):
		// Server rejection message is surfaced verbatim.
		writeError(w, http.StatusBadRequest, "Rejected", backend.UserMessage(err))

	case backend.IsAuth(err):
		writeError(w, http.StatusUnauthorized, "AuthRequired", backend.UserMessage(err))

	default:
		logger.Error("mutation failed", "error", err)
		writeError(w, http.StatusBadGateway, "UpstreamError", backend.UserMessage(err))
	}
}
