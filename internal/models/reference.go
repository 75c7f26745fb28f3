package models

import (
	"fmt"
	"time"
)

// Kind is the closed set of reference kinds.
type Kind string

const (
	KindWebsite      Kind = "website"
	KindPDF          Kind = "pdf"
	KindVideo        Kind = "video"
	KindImage        Kind = "image"
	KindItemLink     Kind = "item-link"
	KindAbbreviation Kind = "abbreviation"
)

// Kinds lists every valid Kind.
var Kinds = []Kind{KindWebsite, KindPDF, KindVideo, KindImage, KindItemLink, KindAbbreviation}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("models: unknown reference kind %q", s)
}

// Reference points from an item's summary marker to its resolution target.
// Exactly one of URL, UploadPath and LinkedItemID is used, in that
// precedence order for the href (upload first). Abbreviations carry Text.
type Reference struct {
	ID           int64  `db:"id" json:"id"`
	ItemID       int64  `db:"item_id" json:"item_id"`
	Kind         Kind   `db:"kind" json:"kind"`
	Index        int    `db:"idx" json:"index"`
	URL          string `db:"url" json:"url,omitempty"`
	UploadPath   string `db:"upload_path" json:"upload_path,omitempty"`
	LinkedItemID *int64 `db:"linked_item_id" json:"linked_item_id,omitempty"`
	// LinkPath is the source path an item link was written against. It
	// outlives LinkedItemID so the link can be restored when the target
	// document returns.
	LinkPath    string    `db:"link_path" json:"link_path,omitempty"`
	Text        string    `db:"text" json:"text,omitempty"`
	Title       string    `db:"title" json:"title,omitempty"`
	IsInSummary bool      `db:"is_in_summary" json:"is_in_summary"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
