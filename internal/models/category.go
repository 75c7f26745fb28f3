// Package models defines the domain types of the ticker feed.
package models

// Category is a node of the hierarchical category tree. Path and Depth are
// derived from the tree structure and recomputed on structural change.
type Category struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	ParentID *int64 `db:"parent_id" json:"parent_id,omitempty"`
	Path     string `db:"path" json:"path"`
	Depth    int    `db:"depth" json:"depth"`
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool { return c.ParentID == nil }

// Publication is the outlet an item was published in.
type Publication struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	URL  string `db:"url" json:"url,omitempty"`
}

// ItemType classifies items (e.g. "Meldung", "Kommentar"). Color is a hex
// triplet without the leading '#'.
type ItemType struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Color string `db:"color" json:"color,omitempty"`
}
