package models

import (
	"fmt"
	"io"
	"strings"
)

// Node is a category with its children attached, built from a flat
// depth-annotated sequence by BuildForest.
type Node struct {
	TreeEntry
	Children []*Node `json:"children,omitempty"`
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *Node) Size() int {
	size := 1
	for _, c := range n.Children {
		size += c.Size()
	}
	return size
}

// BuildForest nests a flat sequence in a single pass using a parent-to-node
// index. Ancestors must precede their descendants in entries, which holds
// for any (depth, id) ordering. An entry whose parent is not in the input
// becomes a root of the result, so a subtree nests under its own root.
// Duplicate ids after the first occurrence are ignored.
func BuildForest(entries []TreeEntry) []*Node {
	index := make(map[int64]*Node, len(entries))
	var roots []*Node
	for _, e := range entries {
		if _, seen := index[e.ID]; seen {
			continue
		}
		n := &Node{TreeEntry: e}
		index[e.ID] = n
		if e.ParentID != nil {
			if parent, ok := index[*e.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// RenderTree writes an indented outline of the forest, two spaces per level.
func RenderTree(w io.Writer, roots []*Node) error {
	for _, n := range roots {
		if err := renderNode(w, n, 0); err != nil {
			return err
		}
	}
	return nil
}

func renderNode(w io.Writer, n *Node, level int) error {
	if _, err := fmt.Fprintf(w, "%s- %s #%d\n", strings.Repeat("  ", level), n.Label, n.ID); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := renderNode(w, c, level+1); err != nil {
			return err
		}
	}
	return nil
}
