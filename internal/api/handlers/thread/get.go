package thread

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Driftline/internal/api/middleware"
	"Driftline/internal/core/comments"
)

// GetHandler handles comment thread query requests
type GetHandler struct {
	service comments.Service
	logger  *slog.Logger
}

// NewGetHandler creates a new thread query handler
func NewGetHandler(service comments.Service, logger *slog.Logger) *GetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGet handles GET /posts/{postID}/comments
// Query params: refresh (true forces a refetch past a fresh cache entry)
func (h *GetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req := &comments.GetThreadRequest{
		PostID:   chi.URLParam(r, "postID"),
		ViewerID: middleware.GetViewerID(r),
		Refresh:  r.URL.Query().Get("refresh") == "true",
	}

	resp, err := h.service.GetThread(r.Context(), req)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode thread response", "error", err)
	}
}
