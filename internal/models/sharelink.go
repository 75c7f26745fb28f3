package models

import "time"

// ShareLink grants an unauthenticated, time-boxed view of a date window of
// the feed. Code is assigned once; ClickCount and ClickLog only grow.
type ShareLink struct {
	ID         int64     `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	ValidUntil time.Time `db:"valid_until" json:"valid_until"`
	AnchorDate time.Time `db:"anchor_date" json:"anchor_date"`
	WindowDays int       `db:"window_days" json:"window_days"`
	ClickCount int       `db:"click_count" json:"click_count"`
	ClickLog   string    `db:"click_log" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Valid reports whether the link may still be used at now.
func (l *ShareLink) Valid(now time.Time) bool {
	return !now.After(l.ValidUntil)
}
