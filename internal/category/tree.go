// Package category implements the materialized-path category tree.
//
// Every node stores its full ancestry as a path of fixed-width segments, one
// per level. A segment is the node's 1-based rank among its siblings ordered
// by name, so plain string comparison of paths yields depth-first,
// name-ascending tree order, and descendant tests are prefix tests.
package category

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ticker/internal/models"
)

const (
	// StepLen is the width of one path segment.
	StepLen  = 4
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrUnknownParent = errors.New("category: unknown parent")
	ErrCycle         = errors.New("category: cycle in parent links")
	ErrNotFound      = errors.New("category: not found")
	ErrTooManyNodes  = errors.New("category: too many siblings for path step")
)

type node struct {
	cat      models.Category
	parent   int // -1 for roots
	children []int
}

// Tree is an arena of categories indexed by ID. Parent and child links are
// slice indices, never pointers.
type Tree struct {
	nodes  []node
	byID   map[int64]int
	byPath map[string]int
	roots  []int
	stored map[int64]models.Category
}

// Build constructs a tree from a flat category list and computes every
// node's path and depth. The stored Path/Depth of the input are remembered
// so Changed can report what needs persisting.
func Build(cats []models.Category) (*Tree, error) {
	t := &Tree{stored: make(map[int64]models.Category, len(cats))}
	for _, c := range cats {
		t.stored[c.ID] = c
	}
	if err := t.rebuild(cats); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) rebuild(cats []models.Category) error {
	nodes := make([]node, len(cats))
	byID := make(map[int64]int, len(cats))
	for i, c := range cats {
		if _, dup := byID[c.ID]; dup {
			return fmt.Errorf("category: duplicate id %d", c.ID)
		}
		nodes[i] = node{cat: c, parent: -1}
		byID[c.ID] = i
	}

	var roots []int
	for i := range nodes {
		pid := nodes[i].cat.ParentID
		if pid == nil {
			roots = append(roots, i)
			continue
		}
		p, ok := byID[*pid]
		if !ok {
			return fmt.Errorf("%w: %d (child %d)", ErrUnknownParent, *pid, nodes[i].cat.ID)
		}
		nodes[i].parent = p
		nodes[p].children = append(nodes[p].children, i)
	}

	less := func(a, b int) bool {
		if nodes[a].cat.Name != nodes[b].cat.Name {
			return nodes[a].cat.Name < nodes[b].cat.Name
		}
		return nodes[a].cat.ID < nodes[b].cat.ID
	}
	sortIdx := func(s []int) { sort.Slice(s, func(i, j int) bool { return less(s[i], s[j]) }) }

	sortIdx(roots)
	byPath := make(map[string]int, len(nodes))
	visited := 0

	var assign func(siblings []int, prefix string, depth int) error
	assign = func(siblings []int, prefix string, depth int) error {
		for rank, idx := range siblings {
			seg, err := segment(rank + 1)
			if err != nil {
				return err
			}
			n := &nodes[idx]
			n.cat.Path = prefix + seg
			n.cat.Depth = depth
			byPath[n.cat.Path] = idx
			visited++
			sortIdx(n.children)
			if err := assign(n.children, n.cat.Path, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := assign(roots, "", 1); err != nil {
		return err
	}
	// Nodes unreachable from a root sit on a parent cycle.
	if visited != len(nodes) {
		return ErrCycle
	}

	t.nodes, t.byID, t.byPath, t.roots = nodes, byID, byPath, roots
	return nil
}

func segment(rank int) (string, error) {
	var b [StepLen]byte
	for i := StepLen - 1; i >= 0; i-- {
		b[i] = alphabet[rank%len(alphabet)]
		rank /= len(alphabet)
	}
	if rank != 0 {
		return "", ErrTooManyNodes
	}
	return string(b[:]), nil
}

// Len returns the number of categories in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Get returns the category with the given ID.
func (t *Tree) Get(id int64) (models.Category, bool) {
	i, ok := t.byID[id]
	if !ok {
		return models.Category{}, false
	}
	return t.nodes[i].cat, true
}

// PathKey returns the materialized path of id, or "" if unknown.
func (t *Tree) PathKey(id int64) string {
	if i, ok := t.byID[id]; ok {
		return t.nodes[i].cat.Path
	}
	return ""
}

// Roots returns the top-level categories ordered by name.
func (t *Tree) Roots() []models.Category {
	return t.collect(t.roots)
}

// ChildrenOf returns the direct children of id ordered by name.
func (t *Tree) ChildrenOf(id int64) []models.Category {
	i, ok := t.byID[id]
	if !ok {
		return nil
	}
	return t.collect(t.nodes[i].children)
}

// Ancestors returns the ancestors of id from the root down, excluding id.
// The lookup walks path prefixes, so it costs one map hit per level.
func (t *Tree) Ancestors(id int64) []models.Category {
	i, ok := t.byID[id]
	if !ok {
		return nil
	}
	path := t.nodes[i].cat.Path
	var out []models.Category
	for end := StepLen; end < len(path); end += StepLen {
		if j, ok := t.byPath[path[:end]]; ok {
			out = append(out, t.nodes[j].cat)
		}
	}
	return out
}

// IsDescendantOrSelf reports whether id lies in the subtree rooted at ancestor.
func (t *Tree) IsDescendantOrSelf(id, ancestor int64) bool {
	p, a := t.PathKey(id), t.PathKey(ancestor)
	if p == "" || a == "" {
		return false
	}
	return strings.HasPrefix(p, a)
}

// SubtreeFilter returns a predicate matching any category that is one of
// roots or a descendant of one. Unknown roots match nothing.
func (t *Tree) SubtreeFilter(roots []int64) func(categoryID int64) bool {
	prefixes := make([]string, 0, len(roots))
	for _, r := range roots {
		if p := t.PathKey(r); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return func(categoryID int64) bool {
		p := t.PathKey(categoryID)
		if p == "" {
			return false
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(p, prefix) {
				return true
			}
		}
		return false
	}
}

// Ordered returns every category in tree order (depth first, by name).
func (t *Tree) Ordered() []models.Category {
	out := make([]models.Category, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = n.cat
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (t *Tree) collect(idx []int) []models.Category {
	out := make([]models.Category, len(idx))
	for i, j := range idx {
		out[i] = t.nodes[j].cat
	}
	return out
}
