package models

import (
	"time"
	"unicode/utf8"
)

// emptySummaryShell is what the editor stores for a cleared summary.
const emptySummaryShell = "<p></p>"

// Item is a single ticker entry.
type Item struct {
	ID                 int64     `db:"id" json:"id"`
	CategoryID         int64     `db:"category_id" json:"category_id"`
	PublicationID      int64     `db:"publication_id" json:"publication_id"`
	ItemTypeID         int64     `db:"item_type_id" json:"item_type_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	PublishAt          time.Time `db:"publish_at" json:"publish_at"`
	Headline           string    `db:"headline" json:"headline"`
	Summary            *string   `db:"summary" json:"summary,omitempty"`
	HasSummary         bool      `db:"has_summary" json:"has_summary"`
	RefsInSummaryCount int       `db:"refs_in_summary_count" json:"refs_in_summary_count"`
	SourcePath         *string   `db:"source_path" json:"source_path,omitempty"`
	SourceChecksum     string    `db:"source_checksum" json:"-"`
}

// SummaryText returns the raw summary or "" when none is set.
func (i *Item) SummaryText() string {
	if i.Summary == nil {
		return ""
	}
	return *i.Summary
}

// SummaryPresent is the has_summary rule: the raw summary must be longer
// than an empty paragraph shell. It deliberately does not look at markup.
func SummaryPresent(summary *string) bool {
	if summary == nil || *summary == "" {
		return false
	}
	return utf8.RuneCountInString(*summary) > utf8.RuneCountInString(emptySummaryShell)
}

// PublishDate returns the calendar date of PublishAt in loc, as midnight in loc.
func (i *Item) PublishDate(loc *time.Location) time.Time {
	return DateOf(i.PublishAt, loc)
}

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// ItemOrder selects the publish-time ordering of item listings.
type ItemOrder int

const (
	OrderPublishAsc ItemOrder = iota
	OrderPublishDesc
)

// ItemFilter restricts item listings. Zero values mean "no restriction".
// PublishedBefore is exclusive.
type ItemFilter struct {
	PublishedFrom   time.Time
	PublishedBefore time.Time
	CategoryIDs     []int64
}
