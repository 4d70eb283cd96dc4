package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"Driftline/internal/api/middleware"
	"Driftline/internal/core/feeds"
)

// GetHandler handles feed query requests
type GetHandler struct {
	service feeds.Service
	logger  *slog.Logger
}

// NewGetHandler creates a new feed query handler
func NewGetHandler(service feeds.Service, logger *slog.Logger) *GetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGet handles GET /feeds
// Query params: filter (new|top|hot, default hot), page (default 0)
// Anonymous requests are allowed; viewer identity adds vote/save state and
// blocklist filtering.
func (h *GetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req := feeds.GetFeedRequest{
		ViewerID: middleware.GetViewerID(r),
		Filter:   feeds.Filter(r.URL.Query().Get("filter")),
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "page must be a non-negative integer")
			return
		}
		req.Page = page
	}

	resp, err := h.service.GetFeed(r.Context(), req)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode feed response", "error", err)
	}
}
