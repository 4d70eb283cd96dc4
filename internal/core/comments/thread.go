package comments

import (
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

// Thread is the cached value for a post's comment surface: the flat record
// set as fetched (plus any optimistic inserts), before tree building. The
// tree is derived per read so filtering always reflects the viewer's current
// blocklist.
type Thread struct {
	Comments []*records.Comment
}

// CloneValue implements cache.Value with a deep copy.
func (t *Thread) CloneValue() cache.Value {
	c := make([]*records.Comment, len(t.Comments))
	for i, cm := range t.Comments {
		c[i] = cm.Clone().(*records.Comment)
	}
	return &Thread{Comments: c}
}

// Append adds a comment to the end of the working set.
func (t *Thread) Append(c *records.Comment) {
	t.Comments = append(t.Comments, c)
}

// ReplaceByID swaps the comment with the given id for its server-confirmed
// counterpart, keeping the logical slot. Returns false if no such comment
// exists (it may have been evicted or rolled back).
func (t *Thread) ReplaceByID(id string, confirmed *records.Comment) bool {
	for i, c := range t.Comments {
		if c.ID == id {
			t.Comments[i] = confirmed
			return true
		}
	}
	return false
}
