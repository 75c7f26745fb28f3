package api

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ticker/internal/feedservice"
	"github.com/starford/ticker/internal/parser"
)

// RefRequest is one reference of a new item.
type RefRequest struct {
	Kind  string `json:"kind" example:"website" validate:"required"`
	Index int    `json:"index,omitempty" example:"1"`
	URL   string `json:"url,omitempty" example:"https://example.org/bericht"`
	File  string `json:"file,omitempty" example:"haushalt.pdf"`
	Link  string `json:"link,omitempty" example:"2025/04/haushalt.md"`
	Text  string `json:"text,omitempty" example:"Bundesministerium der Finanzen"`
	Title string `json:"title,omitempty" example:"Bericht"`
}

// CreateItemRequest is the request body for creating an item.
type CreateItemRequest struct {
	Headline       string       `json:"headline" example:"Haushalt beschlossen" validate:"required"`
	Category       string       `json:"category" example:"Politik/Bund" validate:"required"`
	Publication    string       `json:"publication" example:"Tagesblatt" validate:"required"`
	PublicationURL string       `json:"publication_url,omitempty" example:"https://tagesblatt.example"`
	ItemType       string       `json:"item_type" example:"Meldung" validate:"required"`
	ItemTypeColor  string       `json:"item_type_color,omitempty" example:"#c00"`
	PublishAt      string       `json:"publish_at,omitempty" example:"2025-04-03 09:30"`
	Summary        string       `json:"summary,omitempty" example:"<p>Der Bundestag hat ^1 ...</p>"`
	Refs           []RefRequest `json:"refs,omitempty"`
}

// Document converts the request into a source document.
func (r *CreateItemRequest) Document() *parser.Document {
	doc := &parser.Document{
		Headline:       r.Headline,
		Category:       r.Category,
		Publication:    r.Publication,
		PublicationURL: r.PublicationURL,
		ItemType:       r.ItemType,
		ItemTypeColor:  r.ItemTypeColor,
		PublishAt:      r.PublishAt,
		Summary:        r.Summary,
	}
	for _, ref := range r.Refs {
		doc.Refs = append(doc.Refs, parser.Ref(ref))
	}
	return doc
}

// PatchCategoryRequest renames and/or moves a category. Root moves it to
// the top level and excludes ParentID.
type PatchCategoryRequest struct {
	Name     *string `json:"name,omitempty" example:"Zoll"`
	ParentID *int64  `json:"parent_id,omitempty" example:"1"`
	Root     bool    `json:"root,omitempty"`
}

// Validate validates the request.
func (r PatchCategoryRequest) Validate() error {
	if r.Name == nil && r.ParentID == nil && !r.Root {
		return errors.New("one of name, parent_id or root is required")
	}
	if r.ParentID != nil && r.Root {
		return errors.New("parent_id and root are mutually exclusive")
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.ParentID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// ShareLinkRequest is the request body for issuing a share link.
type ShareLinkRequest struct {
	Date      string `json:"date" example:"2025-04-03" validate:"required"`
	Days      int    `json:"days" example:"7"`
	ValidDays int    `json:"valid_days" example:"30" validate:"required"`
}

// Validate validates the request.
func (r ShareLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Date, validation.Required, validation.Date(time.DateOnly)),
		validation.Field(&r.Days, validation.Min(0), validation.Max(366)),
		validation.Field(&r.ValidDays, validation.Required, validation.Min(1), validation.Max(3650)),
	)
}

// FeedResponse is the grouped feed (aliased from the service layer).
type FeedResponse = feedservice.FeedView

// ItemDetail is a rendered item (aliased from the service layer).
type ItemDetail = feedservice.ItemView

// ShareLinkResponse is an issued share link (aliased from the service layer).
type ShareLinkResponse = feedservice.ShareLinkView

// CategoryListResponse wraps the category tree.
type CategoryListResponse struct {
	Categories []feedservice.CategoryNode `json:"categories" validate:"required"`
}

// SyncResponse reports a sync pass.
type SyncResponse struct {
	Created int `json:"created" example:"3"`
	Updated int `json:"updated" example:"1"`
	Deleted int `json:"deleted" example:"0"`
	Failed  int `json:"failed" example:"0"`
	// Relinked counts items whose item links were restored.
	Relinked int `json:"relinked" example:"0"`
}
