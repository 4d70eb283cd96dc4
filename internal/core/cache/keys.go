package cache

import "strings"

// Key is the canonical rendering of a structured cache key tuple, e.g.
// "feed/hot/did:user:42" or "comments/post-7/did:user:42". Distinct tuples
// render to distinct keys because segments never contain '/'.
type Key string

// NewKey joins key tuple segments into a canonical Key.
func NewKey(parts ...string) Key {
	return Key(strings.Join(parts, "/"))
}

// Prefix reports whether the key's first segment matches surface. Used to
// route invalidations for a whole surface (e.g. every feed filter).
func (k Key) Prefix(surface string) bool {
	s := string(k)
	return strings.HasPrefix(s, surface+"/") || s == surface
}

// Well-known key constructors. One constructor per cached surface keeps the
// tuple shapes in a single place.

// FeedKey identifies the merged feed state for one (viewer, filter) pair.
func FeedKey(filter, viewerID string) Key {
	return NewKey("feed", filter, viewerID)
}

// CommentsKey identifies a post's comment thread as seen by a viewer.
func CommentsKey(postID, viewerID string) Key {
	return NewKey("comments", postID, viewerID)
}

// BlocklistKey identifies a viewer's resolved hidden set.
func BlocklistKey(viewerID string) Key {
	return NewKey("blocklist", viewerID)
}

// VoteStateKey identifies a viewer's own votes keyed by target.
func VoteStateKey(viewerID string) Key {
	return NewKey("votes", viewerID)
}

// BookmarksKey identifies a viewer's saved posts.
func BookmarksKey(viewerID string) Key {
	return NewKey("bookmarks", viewerID)
}

// ProfileKey identifies a user's profile aggregates (post/comment counts).
func ProfileKey(userID string) Key {
	return NewKey("profile", userID)
}

// PollKey identifies a viewer's view of a post's poll state.
func PollKey(postID, viewerID string) Key {
	return NewKey("poll", postID, viewerID)
}
