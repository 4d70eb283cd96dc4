package comments

import (
	"time"

	"Driftline/internal/core/records"
)

// CommentView is the UI-facing shape of one comment.
type CommentView struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId,omitempty"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"createdAt"`
	Score     int     `json:"score"`
	IsDeleted bool    `json:"isDeleted,omitempty"`
	IsPending bool    `json:"isPending,omitempty"`
	DeletedAt *string `json:"deletedAt,omitempty"`
}

// ThreadViewComment is a comment view with its nested replies.
type ThreadViewComment struct {
	Comment *CommentView         `json:"comment"`
	Replies []*ThreadViewComment `json:"replies"`
}

// buildThreadViews converts a comment forest into view models.
// Deleted comments become blanked placeholders so threading survives;
// temp-id comments are flagged pending for distinct rendering.
func buildThreadViews(roots []*Node) []*ThreadViewComment {
	// Always return an empty slice, never nil (important for JSON serialization)
	views := make([]*ThreadViewComment, 0, len(roots))
	for _, node := range roots {
		views = append(views, buildThreadView(node))
	}
	return views
}

func buildThreadView(node *Node) *ThreadViewComment {
	c := node.Comment

	view := &CommentView{
		ID:        c.ID,
		UserID:    c.RecordOwner(),
		Content:   c.Content,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		Score:     c.VoteScore,
		IsPending: records.IsTempID(c.ID),
	}

	if c.DeletedAt != nil {
		// Placeholder view: content blanked, structure preserved.
		view.Content = ""
		view.UserID = ""
		view.IsDeleted = true
		ts := c.DeletedAt.Format(time.RFC3339)
		view.DeletedAt = &ts
	}

	tv := &ThreadViewComment{
		Comment: view,
		Replies: make([]*ThreadViewComment, 0, len(node.Replies)),
	}
	for _, reply := range node.Replies {
		tv.Replies = append(tv.Replies, buildThreadView(reply))
	}
	return tv
}
