package feedservice

import (
	"time"

	"github.com/starford/ticker/internal/models"
)

// ItemView is one rendered item.
type ItemView struct {
	ID                 int64               `json:"id"`
	Headline           string              `json:"headline"`
	PublishAt          time.Time           `json:"publish_at"`
	Category           models.Category     `json:"category"`
	Publication        *models.Publication `json:"publication,omitempty"`
	ItemType           *models.ItemType    `json:"item_type,omitempty"`
	HasSummary         bool                `json:"has_summary"`
	SummaryHTML        string              `json:"summary_html"`
	RefsInSummaryCount int                 `json:"refs_in_summary_count"`
	Anchor             string              `json:"anchor"`
	OverviewURL        string              `json:"overview_url"`
	RenderError        string              `json:"render_error,omitempty"`
	References         []models.Reference  `json:"references,omitempty"`
	SourcePath         string              `json:"source_path,omitempty"`
}

// CategoryGroupView is the items of one category on one day.
type CategoryGroupView struct {
	Category models.Category `json:"category"`
	Items    []ItemView      `json:"items"`
}

// DateGroupView is one day of the feed.
type DateGroupView struct {
	Date       string              `json:"date"`
	Categories []CategoryGroupView `json:"categories"`
}

// FeedView is a rendered feed window.
type FeedView struct {
	Date  string          `json:"date"`
	Days  int             `json:"days"`
	Code  string          `json:"code,omitempty"`
	Items int             `json:"items"`
	Dates []DateGroupView `json:"dates"`
}

// CategoryNode is a category with its subcategories in tree order.
type CategoryNode struct {
	models.Category
	Children []CategoryNode `json:"children"`
}

// ShareLinkView is an issued share link with its URLs.
type ShareLinkView struct {
	models.ShareLink
	ShortURL   string `json:"short_url"`
	ResolveURL string `json:"resolve_url"`
	Expired    bool   `json:"expired"`
}
