package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collection names used across the backend interface.
// Every record belongs to exactly one collection.
const (
	CollectionPosts     = "posts"
	CollectionComments  = "comments"
	CollectionVotes     = "votes"
	CollectionBlocks    = "blocks"
	CollectionBookmarks = "bookmarks"
	CollectionPollVotes = "pollVotes"
)

// TempIDPrefix is the reserved namespace for client-only placeholder ids.
// Server-assigned ids never carry this prefix, so the two namespaces are
// disjoint and a temp entity can always be recognized.
const TempIDPrefix = "temp:"

// NewTempID returns a fresh id in the reserved temp namespace.
// Temp ids identify optimistic placeholders and are never persisted remotely.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id belongs to the reserved temp namespace.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Record is implemented by every server-identified entity the sync layer
// handles. Clone must return a deep copy: the entity cache relies on it for
// copy-on-write semantics, so shared slices and pointers must be duplicated.
type Record interface {
	RecordID() string
	RecordOwner() string
	RecordCreatedAt() time.Time
	Clone() Record
}

// VoteDirection is the closed set of vote types.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Post is a feed item. A repost carries RepostOfID plus enough original-author
// context to apply the repost-aware blocklist rule without an extra fetch.
type Post struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Title        string     `json:"title,omitempty"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
	IsAnonymous  bool       `json:"isAnonymous"`
	VoteScore    int        `json:"voteScore"`
	CommentCount int        `json:"commentCount"`
	RepostCount  int        `json:"repostCount"`
	RepostOfID   *string    `json:"repostOfId,omitempty"`
	RepostOwner  *string    `json:"repostOwner,omitempty"`
	RepostAnon   bool       `json:"repostAnon,omitempty"`
	PollOptions  []PollOpt  `json:"pollOptions,omitempty"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// PollOpt is one choice of a post's poll with its running count.
type PollOpt struct {
	Text      string `json:"text"`
	VoteCount int    `json:"voteCount"`
}

func (p *Post) RecordID() string           { return p.ID }
func (p *Post) RecordOwner() string        { return p.OwnerID }
func (p *Post) RecordCreatedAt() time.Time { return p.CreatedAt }

func (p *Post) Clone() Record {
	c := *p
	c.RepostOfID = clonePtr(p.RepostOfID)
	c.RepostOwner = clonePtr(p.RepostOwner)
	c.DeletedAt = clonePtr(p.DeletedAt)
	if p.PollOptions != nil {
		c.PollOptions = make([]PollOpt, len(p.PollOptions))
		copy(c.PollOptions, p.PollOptions)
	}
	return &c
}

// IsRepost reports whether the post is a repost of another post.
func (p *Post) IsRepost() bool {
	return p.RepostOfID != nil && *p.RepostOfID != ""
}

// Comment is one entry of a post's reply forest. UserID is nullable: a null
// owner is a data defect sentinel and such comments are never shown.
// ParentID is null for top-level comments.
type Comment struct {
	ID         string     `json:"id"`
	PostID     string     `json:"postId"`
	ParentID   *string    `json:"parentId,omitempty"`
	UserID     *string    `json:"userId,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	VoteScore  int        `json:"voteScore"`
	ReplyCount int        `json:"replyCount"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
}

func (c *Comment) RecordID() string { return c.ID }

// RecordOwner returns the empty string for the null-owner defect case.
func (c *Comment) RecordOwner() string {
	if c.UserID == nil {
		return ""
	}
	return *c.UserID
}

func (c *Comment) RecordCreatedAt() time.Time { return c.CreatedAt }

func (c *Comment) Clone() Record {
	cp := *c
	cp.ParentID = clonePtr(c.ParentID)
	cp.UserID = clonePtr(c.UserID)
	cp.DeletedAt = clonePtr(c.DeletedAt)
	return &cp
}

// Vote is a raw vote event on a post or comment. At most one vote exists per
// (TargetID, UserID) pair; the mutation layer's toggle logic maintains that.
type Vote struct {
	ID        string        `json:"id"`
	TargetID  string        `json:"targetId"`
	UserID    string        `json:"userId"`
	Direction VoteDirection `json:"direction"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (v *Vote) RecordID() string           { return v.ID }
func (v *Vote) RecordOwner() string        { return v.UserID }
func (v *Vote) RecordCreatedAt() time.Time { return v.CreatedAt }

func (v *Vote) Clone() Record {
	c := *v
	return &c
}

// Block is a directed blocking edge. Visibility treats the edge as symmetric:
// the effective hidden set for a viewer is the union of both directions.
type Block struct {
	ID        string    `json:"id"`
	BlockerID string    `json:"blockerId"`
	BlockedID string    `json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b *Block) RecordID() string           { return b.ID }
func (b *Block) RecordOwner() string        { return b.BlockerID }
func (b *Block) RecordCreatedAt() time.Time { return b.CreatedAt }

func (b *Block) Clone() Record {
	c := *b
	return &c
}

// Bookmark marks a post saved by a user.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b *Bookmark) RecordID() string           { return b.ID }
func (b *Bookmark) RecordOwner() string        { return b.UserID }
func (b *Bookmark) RecordCreatedAt() time.Time { return b.CreatedAt }

func (b *Bookmark) Clone() Record {
	c := *b
	return &c
}

// PollVote is a single-choice vote on a post's poll. One per (PollID, UserID).
type PollVote struct {
	ID          string    `json:"id"`
	PollID      string    `json:"pollId"` // post id carrying the poll
	UserID      string    `json:"userId"`
	OptionIndex int       `json:"optionIndex"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *PollVote) RecordID() string           { return p.ID }
func (p *PollVote) RecordOwner() string        { return p.UserID }
func (p *PollVote) RecordCreatedAt() time.Time { return p.CreatedAt }

func (p *PollVote) Clone() Record {
	c := *p
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
