// Package catalog folds page metadata into a tree mirroring the source
// directory layout and orders it deterministically for the index page.
package catalog

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/wikibuilder/internal/page"
)

// Node is a branch (directory) or a leaf (page) of the catalog.
type Node struct {
	Name     string         // directory name, or source file name for leaves
	Path     string         // slash-separated path relative to the source root
	Meta     *page.Metadata // set for leaves only
	Children []*Node
}

// IsLeaf reports whether n is a page.
func (n *Node) IsLeaf() bool { return n.Meta != nil }

// Title returns the page title for leaves and the directory name for branches.
func (n *Node) Title() string {
	if n.Meta != nil {
		return n.Meta.Title
	}
	return n.Name
}

// URL returns the output path of a leaf, relative to the destination root.
func (n *Node) URL() string {
	if n.Meta == nil {
		return ""
	}
	return n.Meta.OutputPath()
}

// Build creates an unsorted tree from pages keyed by relative source path.
// Keys with another extension, absolute keys and keys escaping the root are
// ignored. Directories without pages never appear.
func Build(pages map[string]page.Metadata, ext string) *Node {
	ext = "." + strings.TrimPrefix(ext, ".")
	root := &Node{}
	for rel, meta := range pages {
		rel = strings.ReplaceAll(rel, "\\", "/")
		if path.Ext(rel) != ext || path.IsAbs(rel) {
			continue
		}
		clean := path.Clean(rel)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			continue
		}

		segments := strings.Split(clean, "/")
		parent := root
		for i, seg := range segments[:len(segments)-1] {
			parent = parent.branch(seg, strings.Join(segments[:i+1], "/"))
		}
		m := meta
		parent.Children = append(parent.Children, &Node{
			Name: segments[len(segments)-1],
			Path: clean,
			Meta: &m,
		})
	}
	return root
}

func (n *Node) branch(name, p string) *Node {
	for _, c := range n.Children {
		if !c.IsLeaf() && c.Name == name {
			return c
		}
	}
	child := &Node{Name: name, Path: p}
	n.Children = append(n.Children, child)
	return child
}

// key returns the comparison key before lower-casing.
func (n *Node) key() string {
	if n.Meta != nil {
		return n.Meta.Title
	}
	return n.Name
}

type sortEntry struct {
	node  *Node
	key   string
	lower string
}

func compare(a, b sortEntry) int {
	if c := cmp.Compare(a.lower, b.lower); c != 0 {
		return c
	}
	if c := cmp.Compare(a.key, b.key); c != 0 {
		return c
	}
	return cmp.Compare(a.node.Path, b.node.Path)
}

// Sort orders every branch's children recursively: case-insensitively by
// title for pages and by name for directories, then by the original key,
// then by source path. The result does not depend on the input order.
func Sort(n *Node) {
	// A Caser carries state and is not shared across calls.
	sortNode(n, cases.Lower(language.Und))
}

func sortNode(n *Node, lower cases.Caser) {
	if n == nil || n.IsLeaf() {
		return
	}
	entries := make([]sortEntry, len(n.Children))
	for i, c := range n.Children {
		sortNode(c, lower)
		k := c.key()
		entries[i] = sortEntry{node: c, key: k, lower: lower.String(k)}
	}
	slices.SortFunc(entries, compare)
	for i, e := range entries {
		n.Children[i] = e.node
	}
}

// Leaves returns the pages of the tree in depth-first order.
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}
	if n.IsLeaf() {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Count returns the number of pages in the tree.
func (n *Node) Count() int {
	return len(n.Leaves())
}
