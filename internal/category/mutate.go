package category

import (
	"fmt"

	"github.com/starford/ticker/internal/models"
)

func (t *Tree) categories() []models.Category {
	out := make([]models.Category, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = n.cat
	}
	return out
}

// apply rebuilds from cats and leaves the tree untouched on failure.
func (t *Tree) apply(cats []models.Category) error {
	next := &Tree{}
	if err := next.rebuild(cats); err != nil {
		return err
	}
	t.nodes, t.byID, t.byPath, t.roots = next.nodes, next.byID, next.byPath, next.roots
	return nil
}

// Add inserts cat under cat.ParentID (or as a root) and recomputes paths.
func (t *Tree) Add(cat models.Category) error {
	if _, ok := t.byID[cat.ID]; ok {
		return fmt.Errorf("category: duplicate id %d", cat.ID)
	}
	if cat.ParentID != nil {
		if _, ok := t.byID[*cat.ParentID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownParent, *cat.ParentID)
		}
	}
	return t.apply(append(t.categories(), cat))
}

// Move re-parents id under newParent; nil makes it a root. Moving a node
// into its own subtree is rejected.
func (t *Tree) Move(id int64, newParent *int64) error {
	i, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if newParent != nil {
		if _, ok := t.byID[*newParent]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownParent, *newParent)
		}
		if t.IsDescendantOrSelf(*newParent, id) {
			return fmt.Errorf("%w: %d under %d", ErrCycle, id, *newParent)
		}
	}
	cats := t.categories()
	cats[i].ParentID = newParent
	return t.apply(cats)
}

// Rename changes the name of id, which may reorder its siblings.
func (t *Tree) Rename(id int64, name string) error {
	i, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	cats := t.categories()
	cats[i].Name = name
	return t.apply(cats)
}

// Remove deletes id together with its whole subtree and returns the IDs
// that were removed.
func (t *Tree) Remove(id int64) ([]int64, error) {
	if _, ok := t.byID[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	var keep []models.Category
	var removed []int64
	for _, n := range t.nodes {
		if t.IsDescendantOrSelf(n.cat.ID, id) {
			removed = append(removed, n.cat.ID)
			continue
		}
		keep = append(keep, n.cat)
	}
	if err := t.apply(keep); err != nil {
		return nil, err
	}
	for _, r := range removed {
		delete(t.stored, r)
	}
	return removed, nil
}

// Changed returns the categories that differ from what was last marked as
// stored (name, parent, path or depth), including newly added ones.
func (t *Tree) Changed() []models.Category {
	var out []models.Category
	for _, c := range t.Ordered() {
		s, ok := t.stored[c.ID]
		if !ok || s.Path != c.Path || s.Depth != c.Depth || s.Name != c.Name || !sameParent(s.ParentID, c.ParentID) {
			out = append(out, c)
		}
	}
	return out
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// MarkStored records the current paths as persisted.
func (t *Tree) MarkStored() {
	if t.stored == nil {
		t.stored = make(map[int64]models.Category, len(t.nodes))
	}
	for _, n := range t.nodes {
		t.stored[n.cat.ID] = n.cat
	}
}
