// Package commenttree rebuilds reply threads from the flat comment rows stored in
// PostgreSQL.
package commenttree

import (
	"fmt"
	"strings"

	"github.com/anonto42/quill/backend/internal/models"
)

// DefaultMaxDepth is the deepest nesting level. Comments at it take no replies.
const DefaultMaxDepth = 3

// OrphanPolicy decides what happens to a comment whose parent is not in the loaded set.
type OrphanPolicy int

const (
	// PromoteOrphans places the comment at root level.
	PromoteOrphans OrphanPolicy = iota
	// DropOrphans leaves the comment, and anything replying to it, out of the forest.
	DropOrphans
	// RejectOrphans fails the build with an *OrphanError.
	RejectOrphans
)

// ParseOrphanPolicy reads a policy name; an empty string means promote.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "promote":
		return PromoteOrphans, nil
	case "drop":
		return DropOrphans, nil
	case "reject":
		return RejectOrphans, nil
	}
	return PromoteOrphans, fmt.Errorf("unknown orphan policy %q", s)
}

func (p OrphanPolicy) String() string {
	switch p {
	case DropOrphans:
		return "drop"
	case RejectOrphans:
		return "reject"
	}
	return "promote"
}

// OrphanError lists the comments whose parent could not be resolved.
type OrphanError struct {
	CommentIDs []uint
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("%d comment(s) reference a missing parent: %v", len(e.CommentIDs), e.CommentIDs)
}

// Node is a comment together with its replies, in input order.
type Node struct {
	models.Comment
	Level    int     `json:"level"`
	CanReply bool    `json:"can_reply"`
	Replies  []*Node `json:"replies"`
	// Author is filled in by callers that enrich the forest.
	Author *models.UserCompact `json:"author,omitempty"`
}

// Options configures Build.
type Options struct {
	MaxDepth int
	Orphans  OrphanPolicy
	// OnOrphan is called once per comment whose parent is missing, before the policy applies.
	OnOrphan func(c models.Comment)
}

// Build turns a flat list of comments into a forest. Replies keep the order in which
// they appear in comments; callers sort beforehand.
func Build(comments []models.Comment, opts Options) ([]*Node, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	index := make(map[uint]*Node, len(comments))
	nodes := make([]*Node, 0, len(comments))
	for _, c := range comments {
		n := &Node{Comment: c, Replies: []*Node{}}
		index[c.ID] = n
		nodes = append(nodes, n)
	}

	roots := make([]*Node, 0)
	var orphans []uint
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		// a self-reference would make the node unreachable from any root
		if parent, ok := index[*n.ParentID]; ok && parent != n {
			parent.Replies = append(parent.Replies, n)
			continue
		}

		if opts.OnOrphan != nil {
			opts.OnOrphan(n.Comment)
		}
		switch opts.Orphans {
		case PromoteOrphans:
			roots = append(roots, n)
		case RejectOrphans:
			orphans = append(orphans, n.ID)
		}
	}
	if len(orphans) > 0 {
		return nil, &OrphanError{CommentIDs: orphans}
	}

	for _, r := range roots {
		annotate(r, 1, opts.MaxDepth)
	}
	return roots, nil
}

func annotate(n *Node, level, maxDepth int) {
	n.Level = level
	n.CanReply = level < maxDepth
	for _, r := range n.Replies {
		annotate(r, level+1, maxDepth)
	}
}

// Flatten walks the forest in pre-order.
func Flatten(forest []*Node) []*Node {
	out := make([]*Node, 0, len(forest))
	var walk func([]*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			out = append(out, n)
			walk(n.Replies)
		}
	}
	walk(forest)
	return out
}

// Count returns the number of nodes in the forest.
func Count(forest []*Node) int {
	total := 0
	for _, n := range forest {
		total += 1 + Count(n.Replies)
	}
	return total
}

// LevelOf follows parent links upwards from id and returns its nesting level, roots
// being level 1. parentOf returns nil for a root.
func LevelOf(id uint, parentOf func(id uint) (*uint, error)) (int, error) {
	level := 1
	seen := map[uint]bool{id: true}
	for cur := id; ; level++ {
		parent, err := parentOf(cur)
		if err != nil {
			return 0, err
		}
		if parent == nil {
			return level, nil
		}
		if seen[*parent] {
			return 0, fmt.Errorf("comment %d has a cyclic parent chain", id)
		}
		seen[*parent] = true
		cur = *parent
	}
}
