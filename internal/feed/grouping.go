// Package feed selects the items of a date window and groups them by day
// and category for rendering.
package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/starford/ticker/internal/category"
	"github.com/starford/ticker/internal/models"
)

// ItemLister is the item query the selector needs.
type ItemLister interface {
	ListItems(ctx context.Context, filter models.ItemFilter, order models.ItemOrder) ([]models.Item, error)
}

// Selector picks the items of a feed window.
type Selector struct {
	items ItemLister
	loc   *time.Location
}

// NewSelector creates a Selector whose calendar dates are taken in loc.
func NewSelector(items ItemLister, loc *time.Location) *Selector {
	if loc == nil {
		loc = time.Local
	}
	return &Selector{items: items, loc: loc}
}

// Window returns the [from, before) instants covering the calendar days
// refDate-lookbackDays through refDate in the selector's time zone.
func (s *Selector) Window(refDate time.Time, lookbackDays int) (from, before time.Time) {
	day := models.DateOf(refDate, s.loc)
	return day.AddDate(0, 0, -lookbackDays), day.AddDate(0, 0, 1)
}

// Current returns the items published within lookbackDays before refDate
// (inclusive on both ends), optionally restricted to the subtrees of roots,
// sorted newest day first, then by category tree order, then by publish
// time ascending.
func (s *Selector) Current(ctx context.Context, tree *category.Tree, refDate time.Time, lookbackDays int, roots []int64) ([]models.Item, error) {
	if lookbackDays < 0 {
		return nil, fmt.Errorf("feed: negative lookback %d", lookbackDays)
	}
	from, before := s.Window(refDate, lookbackDays)
	items, err := s.items.ListItems(ctx, models.ItemFilter{
		PublishedFrom:   from,
		PublishedBefore: before,
	}, models.OrderPublishAsc)
	if err != nil {
		return nil, err
	}

	if len(roots) > 0 {
		match := tree.SubtreeFilter(roots)
		kept := items[:0]
		for _, it := range items {
			if match(it.CategoryID) {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	s.Sort(tree, items)
	return items, nil
}

// Sort orders items by (publish date desc, category path asc, publish time
// asc, id asc).
func (s *Selector) Sort(tree *category.Tree, items []models.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		da, db := a.PublishDate(s.loc), b.PublishDate(s.loc)
		if !da.Equal(db) {
			return da.After(db)
		}
		pa, pb := tree.PathKey(a.CategoryID), tree.PathKey(b.CategoryID)
		if pa != pb {
			return pa < pb
		}
		if !a.PublishAt.Equal(b.PublishAt) {
			return a.PublishAt.Before(b.PublishAt)
		}
		return a.ID < b.ID
	})
}

// CategoryGroup is the items of one category on one day.
type CategoryGroup struct {
	Category models.Category
	Items    []models.Item
}

// DateGroup is one day of the feed.
type DateGroup struct {
	Date       time.Time
	Categories []CategoryGroup
}

// GroupByDate partitions items into days and, within a day, categories.
// Groups appear in first-seen order, so sorted input yields sorted groups.
func GroupByDate(items []models.Item, tree *category.Tree, loc *time.Location) []DateGroup {
	var out []DateGroup
	dateIdx := make(map[string]int)
	catIdx := make([]map[int64]int, 0)

	for _, it := range items {
		d := it.PublishDate(loc)
		key := d.Format(time.DateOnly)
		di, ok := dateIdx[key]
		if !ok {
			di = len(out)
			dateIdx[key] = di
			out = append(out, DateGroup{Date: d})
			catIdx = append(catIdx, make(map[int64]int))
		}

		ci, ok := catIdx[di][it.CategoryID]
		if !ok {
			cat, found := tree.Get(it.CategoryID)
			if !found {
				cat = models.Category{ID: it.CategoryID}
			}
			ci = len(out[di].Categories)
			catIdx[di][it.CategoryID] = ci
			out[di].Categories = append(out[di].Categories, CategoryGroup{Category: cat})
		}
		out[di].Categories[ci].Items = append(out[di].Categories[ci].Items, it)
	}
	return out
}
