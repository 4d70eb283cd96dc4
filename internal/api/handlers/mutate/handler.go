package mutate

import (
	"log/slog"
	"net/http"

	"Driftline/internal/api/middleware"
	"Driftline/internal/core/mutations"
	"Driftline/internal/core/records"
)

// Handler exposes every optimistic mutation as an HTTP endpoint. Each
// endpoint requires a viewer identity; the mutation service validates the
// rest and applies its own optimistic cache writes before dispatching.
type Handler struct {
	service *mutations.Service
	logger  *slog.Logger
}

// NewHandler creates a mutation handler
func NewHandler(service *mutations.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// requireViewer extracts the viewer identity or writes the auth error.
func requireViewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	viewerID := middleware.GetViewerID(r)
	if viewerID == "" {
		writeError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return "", false
	}
	return viewerID, true
}

// HandleToggleVote handles POST /votes/toggle
func (h *Handler) HandleToggleVote(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		TargetID  string `json:"targetId"`
		Direction string `json:"direction"`
		PostID    string `json:"postId,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.service.ToggleVote(r.Context(), mutations.ToggleVoteRequest{
		ViewerID:  viewerID,
		TargetID:  body.TargetID,
		Direction: records.VoteDirection(body.Direction),
		PostID:    body.PostID,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, resp)
}

// HandleCreateComment handles POST /comments
func (h *Handler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		PostID   string  `json:"postId"`
		ParentID *string `json:"parentId,omitempty"`
		Content  string  `json:"content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.service.CreateComment(r.Context(), mutations.CreateCommentRequest{
		ViewerID: viewerID,
		PostID:   body.PostID,
		ParentID: body.ParentID,
		Content:  body.Content,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, resp)
}

// HandleDeleteComment handles DELETE /comments/{commentID}
func (h *Handler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		PostID    string `json:"postId"`
		CommentID string `json:"commentId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	err := h.service.DeleteComment(r.Context(), mutations.DeleteCommentRequest{
		ViewerID:  viewerID,
		PostID:    body.PostID,
		CommentID: body.CommentID,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreatePost handles POST /posts
func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		Title       string   `json:"title"`
		Content     string   `json:"content"`
		IsAnonymous bool     `json:"isAnonymous"`
		PollOptions []string `json:"pollOptions,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.service.CreatePost(r.Context(), mutations.CreatePostRequest{
		ViewerID:    viewerID,
		Title:       body.Title,
		Content:     body.Content,
		IsAnonymous: body.IsAnonymous,
		PollOptions: body.PollOptions,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, resp)
}

// HandleDeletePost handles DELETE /posts
func (h *Handler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		PostID string `json:"postId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	err := h.service.DeletePost(r.Context(), mutations.DeletePostRequest{
		ViewerID: viewerID,
		PostID:   body.PostID,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRepost handles POST /posts/repost
func (h *Handler) HandleRepost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		PostID      string `json:"postId"`
		IsAnonymous bool   `json:"isAnonymous"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.service.Repost(r.Context(), mutations.RepostRequest{
		ViewerID:    viewerID,
		PostID:      body.PostID,
		IsAnonymous: body.IsAnonymous,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, resp)
}

// HandleToggleBookmark handles POST /bookmarks/toggle
func (h *Handler) HandleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		PostID string `json:"postId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.service.ToggleBookmark(r.Context(), mutations.ToggleBookmarkRequest{
		ViewerID: viewerID,
		PostID:   body.PostID,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, resp)
}

// HandleBlockUser handles POST /blocks
func (h *Handler) HandleBlockUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		BlockedID string `json:"blockedId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	err := h.service.BlockUser(r.Context(), mutations.BlockUserRequest{
		ViewerID:  viewerID,
		BlockedID: body.BlockedID,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnblockUser handles DELETE /blocks
func (h *Handler) HandleUnblockUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		BlockedID string `json:"blockedId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	err := h.service.UnblockUser(r.Context(), mutations.UnblockUserRequest{
		ViewerID:  viewerID,
		BlockedID: body.BlockedID,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVotePoll handles POST /polls/vote
func (h *Handler) HandleVotePoll(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body struct {
		PostID      string `json:"postId"`
		OptionIndex int    `json:"optionIndex"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.service.VotePoll(r.Context(), mutations.VotePollRequest{
		ViewerID:    viewerID,
		PostID:      body.PostID,
		OptionIndex: body.OptionIndex,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, resp)
}
