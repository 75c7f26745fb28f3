package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/ticker/internal/category"
	"github.com/starford/ticker/internal/models"
)

var cest = time.FixedZone("CEST", 2*60*60)

type fakeLister struct {
	items   []models.Item
	err     error
	filters []models.ItemFilter
}

func (f *fakeLister) ListItems(_ context.Context, filter models.ItemFilter, _ models.ItemOrder) ([]models.Item, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Item
	for _, it := range f.items {
		if !filter.PublishedFrom.IsZero() && it.PublishAt.Before(filter.PublishedFrom) {
			continue
		}
		if !filter.PublishedBefore.IsZero() && !it.PublishAt.Before(filter.PublishedBefore) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func pid(v int64) *int64 { return &v }

// Kultur(4) 0001, Politik(1) 0002, Bund(2) 00020001, Haushalt(5)
// 000200010001, Land(3) 00020002.
func sampleTree(t *testing.T) *category.Tree {
	t.Helper()
	tree, err := category.Build([]models.Category{
		{ID: 1, Name: "Politik"},
		{ID: 2, Name: "Bund", ParentID: pid(1)},
		{ID: 3, Name: "Land", ParentID: pid(1)},
		{ID: 4, Name: "Kultur"},
		{ID: 5, Name: "Haushalt", ParentID: pid(2)},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

func at(day, hour, min, sec int) time.Time {
	return time.Date(2025, time.April, day, hour, min, sec, 0, cest)
}

func sampleItems() []models.Item {
	return []models.Item{
		{ID: 1, CategoryID: 3, PublishAt: at(3, 9, 0, 0)},
		{ID: 2, CategoryID: 4, PublishAt: at(3, 10, 0, 0)},
		{ID: 3, CategoryID: 2, PublishAt: at(3, 8, 0, 0)},
		{ID: 4, CategoryID: 2, PublishAt: at(2, 15, 0, 0)},
		{ID: 5, CategoryID: 5, PublishAt: at(2, 7, 0, 0)},
		{ID: 6, CategoryID: 4, PublishAt: at(1, 12, 0, 0)},
		{ID: 7, CategoryID: 3, PublishAt: at(3, 9, 0, 0)},
		{ID: 8, CategoryID: 4, PublishAt: at(3, 23, 59, 59)},
		{ID: 9, CategoryID: 4, PublishAt: at(4, 0, 0, 0)},
		{ID: 10, CategoryID: 4, PublishAt: at(2, 0, 0, 0)},
	}
}

func ids(items []models.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestCurrent_WindowAndOrder(t *testing.T) {
	lister := &fakeLister{items: sampleItems()}
	sel := NewSelector(lister, cest)

	got, err := sel.Current(context.Background(), sampleTree(t), at(3, 12, 0, 0), 1, nil)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	want := []int64{2, 8, 3, 1, 7, 10, 4, 5}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Errorf("Current() mismatch (-want +got):\n%s", diff)
	}

	f := lister.filters[0]
	if !f.PublishedFrom.Equal(at(2, 0, 0, 0)) || !f.PublishedBefore.Equal(at(4, 0, 0, 0)) {
		t.Errorf("window = [%v, %v)", f.PublishedFrom, f.PublishedBefore)
	}
}

func TestCurrent_ZeroLookbackIsSingleDay(t *testing.T) {
	sel := NewSelector(&fakeLister{items: sampleItems()}, cest)
	got, err := sel.Current(context.Background(), sampleTree(t), at(2, 18, 0, 0), 0, nil)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 4, 5}, ids(got)); diff != "" {
		t.Errorf("Current() mismatch (-want +got):\n%s", diff)
	}
}

func TestCurrent_CategoryRoots(t *testing.T) {
	sel := NewSelector(&fakeLister{items: sampleItems()}, cest)
	tree := sampleTree(t)

	got, err := sel.Current(context.Background(), tree, at(3, 12, 0, 0), 1, []int64{2})
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if diff := cmp.Diff([]int64{3, 4, 5}, ids(got)); diff != "" {
		t.Errorf("roots [Bund] mismatch (-want +got):\n%s", diff)
	}

	got, err = sel.Current(context.Background(), tree, at(3, 12, 0, 0), 1, []int64{4, 3})
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if diff := cmp.Diff([]int64{2, 8, 1, 7, 10}, ids(got)); diff != "" {
		t.Errorf("roots [Kultur Land] mismatch (-want +got):\n%s", diff)
	}
}

func TestCurrent_Errors(t *testing.T) {
	boom := errors.New("boom")
	sel := NewSelector(&fakeLister{err: boom}, cest)
	if _, err := sel.Current(context.Background(), sampleTree(t), at(3, 0, 0, 0), 1, nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, err := sel.Current(context.Background(), sampleTree(t), at(3, 0, 0, 0), -1, nil); err == nil {
		t.Error("negative lookback accepted")
	}
}

type groupShape struct {
	Date       string
	Categories []catShape
}

type catShape struct {
	Name  string
	Items []int64
}

func shape(groups []DateGroup) []groupShape {
	out := make([]groupShape, len(groups))
	for i, g := range groups {
		out[i].Date = g.Date.Format(time.DateOnly)
		for _, c := range g.Categories {
			out[i].Categories = append(out[i].Categories, catShape{Name: c.Category.Name, Items: ids(c.Items)})
		}
	}
	return out
}

func TestGroupByDate(t *testing.T) {
	tree := sampleTree(t)
	sel := NewSelector(&fakeLister{items: sampleItems()}, cest)
	items, err := sel.Current(context.Background(), tree, at(3, 12, 0, 0), 1, nil)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	want := []groupShape{
		{Date: "2025-04-03", Categories: []catShape{
			{Name: "Kultur", Items: []int64{2, 8}},
			{Name: "Bund", Items: []int64{3}},
			{Name: "Land", Items: []int64{1, 7}},
		}},
		{Date: "2025-04-02", Categories: []catShape{
			{Name: "Kultur", Items: []int64{10}},
			{Name: "Bund", Items: []int64{4}},
			{Name: "Haushalt", Items: []int64{5}},
		}},
	}
	if diff := cmp.Diff(want, shape(GroupByDate(items, tree, cest))); diff != "" {
		t.Errorf("GroupByDate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByDate_UnknownCategoryAndEmpty(t *testing.T) {
	tree := sampleTree(t)
	if got := GroupByDate(nil, tree, cest); len(got) != 0 {
		t.Errorf("GroupByDate(nil) = %v, want empty", got)
	}

	groups := GroupByDate([]models.Item{{ID: 1, CategoryID: 99, PublishAt: at(3, 1, 0, 0)}}, tree, cest)
	if len(groups) != 1 || groups[0].Categories[0].Category.ID != 99 {
		t.Errorf("unknown category not grouped: %+v", groups)
	}
}
