package comments

import (
	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/records"
)

// Node is one comment with its resolved replies. BuildTree links nodes into
// a forest; Replies preserves input order among siblings.
type Node struct {
	Comment records.Comment
	Replies []*Node
}

// BuildTree reconstructs a comment forest from a flat, possibly-inconsistent
// record set. Pure and deterministic: identical input yields structurally
// identical output.
//
// Algorithm:
//  1. Drop comments with a null user (data defect sentinel) or a blocked
//     author.
//  2. Build an id → node map in input order; a duplicate id overwrites the
//     earlier map entry (last-write-wins) but occupies its first position.
//  3. Link each comment to its parent when the parent exists in the map;
//     otherwise promote it to a root (orphan promotion) — a missing,
//     filtered, or never-indexed parent demotes nobody.
//  4. Roots and sibling reply lists preserve input order.
//
// Parent references that would form a cycle are broken by promoting the
// offending comment to a root, so the result is always a forest and
// consumers never need their own depth guard.
func BuildTree(comments []*records.Comment, blocked blocklist.Set) []*Node {
	filtered := make([]*records.Comment, 0, len(comments))
	for _, c := range comments {
		if c.UserID == nil {
			continue
		}
		if blocked.Has(*c.UserID) {
			continue
		}
		filtered = append(filtered, c)
	}

	// Last occurrence wins for duplicate ids.
	byID := make(map[string]*Node, len(filtered))
	for _, c := range filtered {
		byID[c.ID] = &Node{Comment: *c}
	}

	roots := make([]*Node, 0, len(filtered))
	placed := make(map[string]bool, len(filtered))
	parentOf := make(map[string]*Node, len(filtered))

	for _, c := range filtered {
		if placed[c.ID] {
			continue
		}
		placed[c.ID] = true

		node := byID[c.ID]
		if c.ParentID != nil {
			parent, ok := byID[*c.ParentID]
			if ok && parent != node && !wouldCycle(parentOf, parent, node) {
				parent.Replies = append(parent.Replies, node)
				parentOf[c.ID] = parent
				continue
			}
		}
		roots = append(roots, node)
	}

	return roots
}

// wouldCycle reports whether attaching child under parent closes a loop of
// parent references. Walks the ancestor chain of parent; the step bound
// guards against corrupt parentOf state.
func wouldCycle(parentOf map[string]*Node, parent, child *Node) bool {
	steps := len(parentOf) + 1
	for cur := parent; cur != nil && steps > 0; steps-- {
		if cur == child {
			return true
		}
		cur = parentOf[cur.Comment.ID]
	}
	return false
}

// Flatten returns the forest's comments in depth-first order. Useful for
// counting and for tests; the result is a fresh slice.
func Flatten(roots []*Node) []records.Comment {
	var out []records.Comment
	var walk func(n *Node)
	walk = func(n *Node) {
		out = append(out, n.Comment)
		for _, r := range n.Replies {
			walk(r)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return out
}
