package mutations

import (
	"log/slog"
	"strings"

	"github.com/rivo/uniseg"

	"Driftline/internal/backend"
	"Driftline/internal/core/cache"
)

// maxContentGraphemes is the maximum length for post and comment content in
// graphemes.
const maxContentGraphemes = 10000

// feedFilters enumerates the cached feed filters a mutation's optimistic
// aggregate edits must reach.
var feedFilters = []string{"new", "top", "hot"}

// Service exposes every optimistic write the UI can issue. Each operation
// builds a Mutation and hands it to the Pipeline; all remote failures roll
// back and surface as backend taxonomy errors.
type Service struct {
	pipeline *Pipeline
	store    *cache.Store
	backend  backend.RemoteService
	logger   *slog.Logger
}

// NewService creates the mutation service.
func NewService(pipeline *Pipeline, store *cache.Store, svc backend.RemoteService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pipeline: pipeline,
		store:    store,
		backend:  svc,
		logger:   logger,
	}
}

// feedKeys returns the viewer's cached feed keys across all filters.
func feedKeys(viewerID string) []cache.Key {
	keys := make([]cache.Key, 0, len(feedFilters))
	for _, f := range feedFilters {
		keys = append(keys, cache.FeedKey(f, viewerID))
	}
	return keys
}

// validateContent trims and bounds user-entered content.
func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrContentEmpty
	}
	if uniseg.GraphemeClusterCount(content) > maxContentGraphemes {
		return "", ErrContentTooLong
	}
	return content, nil
}
