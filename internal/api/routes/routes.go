package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"Driftline/internal/api/handlers/feed"
	"Driftline/internal/api/handlers/mutate"
	"Driftline/internal/api/handlers/thread"
	"Driftline/internal/core/comments"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/mutations"
)

// RegisterQueryRoutes registers the read surfaces. Both allow anonymous
// access; a viewer identity adds vote/save state and blocklist filtering.
func RegisterQueryRoutes(
	r chi.Router,
	feedService feeds.Service,
	commentService comments.Service,
	logger *slog.Logger,
) {
	feedHandler := feed.NewGetHandler(feedService, logger)
	threadHandler := thread.NewGetHandler(commentService, logger)

	// GET /feeds?filter=hot&page=0
	r.Get("/feeds", feedHandler.HandleGet)

	// GET /posts/{postID}/comments
	r.Get("/posts/{postID}/comments", threadHandler.HandleGet)
}

// RegisterMutationRoutes registers the optimistic write surfaces. Every
// endpoint requires a viewer identity.
func RegisterMutationRoutes(
	r chi.Router,
	mutationService *mutations.Service,
	logger *slog.Logger,
) {
	h := mutate.NewHandler(mutationService, logger)

	r.Post("/posts", h.HandleCreatePost)
	r.Post("/posts/repost", h.HandleRepost)
	r.Delete("/posts", h.HandleDeletePost)

	r.Post("/comments", h.HandleCreateComment)
	r.Delete("/comments", h.HandleDeleteComment)

	r.Post("/votes/toggle", h.HandleToggleVote)
	r.Post("/bookmarks/toggle", h.HandleToggleBookmark)
	r.Post("/polls/vote", h.HandleVotePoll)

	r.Post("/blocks", h.HandleBlockUser)
	r.Delete("/blocks", h.HandleUnblockUser)
}
