package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ticker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	cat, sub int64
	pub, typ int64
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()
	root := models.Category{Name: "Politik", Path: "0001", Depth: 1}
	if err := db.InsertCategory(ctx, &root); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	sub := models.Category{Name: "Bund", ParentID: &root.ID, Path: "00010001", Depth: 2}
	if err := db.InsertCategory(ctx, &sub); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	pub, err := db.EnsurePublication(ctx, "Tagesblatt", "https://tagesblatt.example")
	if err != nil {
		t.Fatalf("EnsurePublication: %v", err)
	}
	typ, err := db.EnsureItemType(ctx, "Meldung", "336699")
	if err != nil {
		t.Fatalf("EnsureItemType: %v", err)
	}
	return fixture{cat: root.ID, sub: sub.ID, pub: pub.ID, typ: typ.ID}
}

func str(s string) *string { return &s }

func newItem(fx fixture, cat int64, headline string, publish time.Time) *models.Item {
	return &models.Item{
		CategoryID:    cat,
		PublicationID: fx.pub,
		ItemTypeID:    fx.typ,
		Headline:      headline,
		PublishAt:     publish,
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"categories", "publications", "item_types", "items", "refs", "share_links"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestCategories_SaveAndDeleteCascade(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	cats, err := db.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 || cats[1].ParentID == nil || *cats[1].ParentID != fx.cat {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	cats[1].ParentID = nil
	cats[1].Path = "0001"
	cats[1].Depth = 1
	cats[0].Path = "0002"
	if err := db.SaveCategories(ctx, cats); err != nil {
		t.Fatalf("SaveCategories: %v", err)
	}
	got, err := db.GetCategory(ctx, fx.sub)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if got.ParentID != nil || got.Path != "0001" || got.Depth != 1 {
		t.Errorf("category not saved: %+v", got)
	}

	it := newItem(fx, fx.sub, "Haushalt", time.Now())
	if err := db.SaveItem(ctx, it); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if err := db.DeleteCategory(ctx, fx.sub); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, err := db.GetItem(ctx, it.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("item survived category delete: err = %v", err)
	}
	if err := db.DeleteCategory(ctx, fx.sub); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestEnsurePublication_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a, err := db.EnsurePublication(ctx, "Abendpost", "https://a.example")
	if err != nil {
		t.Fatalf("EnsurePublication: %v", err)
	}
	b, err := db.EnsurePublication(ctx, "Abendpost", "")
	if err != nil {
		t.Fatalf("EnsurePublication: %v", err)
	}
	if a.ID != b.ID || b.URL != "https://a.example" {
		t.Errorf("second ensure = %+v, want id %d with url kept", b, a.ID)
	}
	c, err := db.EnsurePublication(ctx, "Abendpost", "https://b.example")
	if err != nil {
		t.Fatalf("EnsurePublication: %v", err)
	}
	if c.ID != a.ID || c.URL != "https://b.example" {
		t.Errorf("url not updated: %+v", c)
	}
}

func TestSaveItem_DerivedFields(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	it := newItem(fx, fx.cat, "Leer", time.Time{})
	it.Summary = str("<p></p>")
	if err := db.SaveItem(ctx, it); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if it.ID == 0 || it.CreatedAt.IsZero() {
		t.Fatalf("insert did not set id/created_at: %+v", it)
	}
	if !it.PublishAt.Equal(it.CreatedAt) {
		t.Errorf("publish_at = %v, want created_at %v", it.PublishAt, it.CreatedAt)
	}
	if it.HasSummary {
		t.Error("empty paragraph counted as summary")
	}

	created := it.CreatedAt
	it.Summary = str("<p>x</p>")
	it.CreatedAt = created.Add(time.Hour)
	if err := db.SaveItem(ctx, it); err != nil {
		t.Fatalf("SaveItem update: %v", err)
	}
	got, err := db.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if !got.HasSummary {
		t.Error("has_summary not recomputed on update")
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed: %v, want %v", got.CreatedAt, created)
	}

	if _, err := db.GetItem(ctx, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetItem(9999) err = %v, want ErrNotFound", err)
	}
	missing := newItem(fx, fx.cat, "x", time.Now())
	missing.ID = 9999
	if err := db.SaveItem(ctx, missing); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update of missing item err = %v, want ErrNotFound", err)
	}
}

func TestSaveItem_DuplicateSource(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	a := newItem(fx, fx.cat, "a", time.Now())
	a.SourcePath = str("2025/a.md")
	if err := db.SaveItem(ctx, a); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	b := newItem(fx, fx.cat, "b", time.Now())
	b.SourcePath = str("2025/a.md")
	if err := db.SaveItem(ctx, b); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate source err = %v, want ErrAlreadyExists", err)
	}

	got, err := db.GetItemBySource(ctx, "2025/a.md")
	if err != nil || got.ID != a.ID {
		t.Fatalf("GetItemBySource = %+v, %v", got, err)
	}
	sources, err := db.ItemSources(ctx)
	if err != nil {
		t.Fatalf("ItemSources: %v", err)
	}
	if _, ok := sources["2025/a.md"]; !ok || len(sources) != 1 {
		t.Errorf("ItemSources = %v", sources)
	}
}

func TestListItems_Filter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	cest := time.FixedZone("CEST", 2*60*60)
	day := func(d, h int) time.Time { return time.Date(2025, time.April, d, h, 0, 0, 0, cest) }
	for _, it := range []*models.Item{
		newItem(fx, fx.cat, "early", day(2, 0)),
		newItem(fx, fx.sub, "late", day(3, 23)),
		newItem(fx, fx.cat, "next", day(4, 0)),
		newItem(fx, fx.sub, "mid", day(3, 1)),
	} {
		if err := db.SaveItem(ctx, it); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}

	headlines := func(items []models.Item) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Headline
		}
		return out
	}

	got, err := db.ListItems(ctx, models.ItemFilter{PublishedFrom: day(2, 0), PublishedBefore: day(4, 0)}, models.OrderPublishAsc)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if diff := cmp.Diff([]string{"early", "mid", "late"}, headlines(got)); diff != "" {
		t.Errorf("window mismatch (-want +got):\n%s", diff)
	}

	got, err = db.ListItems(ctx, models.ItemFilter{CategoryIDs: []int64{fx.sub}}, models.OrderPublishDesc)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if diff := cmp.Diff([]string{"late", "mid"}, headlines(got)); diff != "" {
		t.Errorf("category mismatch (-want +got):\n%s", diff)
	}
}

func TestReferences_ReplaceAndUsage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	it := newItem(fx, fx.cat, "refs", time.Now())
	if err := db.SaveItem(ctx, it); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	refs := []models.Reference{
		{Kind: models.KindPDF, Index: 2, UploadPath: "docs/a.pdf"},
		{Kind: models.KindWebsite, Index: 1, URL: "https://example.org"},
		{Kind: models.KindAbbreviation, Index: 1, Text: "Bundesministerium"},
	}
	if err := db.ReplaceReferences(ctx, it.ID, refs); err != nil {
		t.Fatalf("ReplaceReferences: %v", err)
	}
	for _, r := range refs {
		if r.ID == 0 || r.ItemID != it.ID {
			t.Fatalf("reference not stored: %+v", r)
		}
	}

	got, err := db.ListReferences(ctx, it.ID)
	if err != nil {
		t.Fatalf("ListReferences: %v", err)
	}
	kinds := []models.Kind{got[0].Kind, got[1].Kind, got[2].Kind}
	if diff := cmp.Diff([]models.Kind{models.KindWebsite, models.KindAbbreviation, models.KindPDF}, kinds); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	used := map[int64]bool{refs[0].ID: true, refs[1].ID: false}
	if err := db.StoreReferenceUsage(ctx, it.ID, used, 1); err != nil {
		t.Fatalf("StoreReferenceUsage: %v", err)
	}
	got, _ = db.ListReferences(ctx, it.ID)
	for _, r := range got {
		if r.IsInSummary != (r.ID == refs[0].ID) {
			t.Errorf("reference %d is_in_summary = %v", r.ID, r.IsInSummary)
		}
	}
	stored, _ := db.GetItem(ctx, it.ID)
	if stored.RefsInSummaryCount != 1 {
		t.Errorf("refs_in_summary_count = %d, want 1", stored.RefsInSummaryCount)
	}

	if err := db.ReplaceReferences(ctx, it.ID, nil); err != nil {
		t.Fatalf("ReplaceReferences(nil): %v", err)
	}
	got, _ = db.ListReferences(ctx, it.ID)
	stored, _ = db.GetItem(ctx, it.ID)
	if len(got) != 0 || stored.RefsInSummaryCount != 0 {
		t.Errorf("after clear: %d refs, count %d", len(got), stored.RefsInSummaryCount)
	}
}

func TestDeleteItem_Cascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	target := newItem(fx, fx.cat, "target", time.Now())
	source := newItem(fx, fx.cat, "source", time.Now())
	for _, it := range []*models.Item{target, source} {
		if err := db.SaveItem(ctx, it); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}
	if err := db.ReplaceReferences(ctx, target.ID, []models.Reference{{Kind: models.KindWebsite, URL: "https://x"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceReferences(ctx, source.ID, []models.Reference{{Kind: models.KindItemLink, LinkedItemID: &target.ID}}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteItem(ctx, target.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	var n int
	if err := db.conn.Get(&n, `SELECT count(*) FROM refs WHERE item_id = ?`, target.ID); err != nil || n != 0 {
		t.Errorf("own references left: %d (%v)", n, err)
	}
	refs, err := db.ListReferences(ctx, source.ID)
	if err != nil {
		t.Fatalf("ListReferences: %v", err)
	}
	if len(refs) != 1 || refs[0].LinkedItemID != nil {
		t.Errorf("linking reference = %+v, want link nulled", refs)
	}
}

func TestReferences_DanglingLinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	target := newItem(fx, fx.cat, "target", time.Now())
	source := newItem(fx, fx.cat, "source", time.Now())
	for _, it := range []*models.Item{target, source} {
		if err := db.SaveItem(ctx, it); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}
	refs := []models.Reference{
		{Kind: models.KindWebsite, Index: 1, URL: "https://x"},
		{Kind: models.KindItemLink, Index: 2, LinkedItemID: &target.ID, LinkPath: "2025/04/target.md"},
	}
	if err := db.ReplaceReferences(ctx, source.ID, refs); err != nil {
		t.Fatal(err)
	}
	if got, err := db.DanglingLinks(ctx); err != nil || len(got) != 0 {
		t.Fatalf("DanglingLinks with target = %+v, %v", got, err)
	}

	if err := db.DeleteItem(ctx, target.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	dangling, err := db.DanglingLinks(ctx)
	if err != nil {
		t.Fatalf("DanglingLinks: %v", err)
	}
	if len(dangling) != 1 || dangling[0].ID != refs[1].ID || dangling[0].LinkPath != "2025/04/target.md" {
		t.Fatalf("dangling = %+v", dangling)
	}

	back := newItem(fx, fx.cat, "target again", time.Now())
	if err := db.SaveItem(ctx, back); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if err := db.SetReferenceLink(ctx, dangling[0].ID, back.ID); err != nil {
		t.Fatalf("SetReferenceLink: %v", err)
	}
	if got, err := db.DanglingLinks(ctx); err != nil || len(got) != 0 {
		t.Errorf("DanglingLinks after relink = %+v, %v", got, err)
	}
	got, _ := db.ListReferences(ctx, source.ID)
	for _, r := range got {
		if r.ID == refs[1].ID && (r.LinkedItemID == nil || *r.LinkedItemID != back.ID) {
			t.Errorf("relinked reference = %+v", r)
		}
	}

	if err := db.SetReferenceLink(ctx, 9999, back.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SetReferenceLink(missing) = %v, want not found", err)
	}
}

func TestSetSourceChecksum(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	fx := seed(t, db)

	it := newItem(fx, fx.cat, "synced", time.Now())
	it.SourcePath = str("2025/04/synced.md")
	if err := db.SaveItem(ctx, it); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if err := db.SetSourceChecksum(ctx, it.ID, "abc"); err != nil {
		t.Fatalf("SetSourceChecksum: %v", err)
	}
	stored, err := db.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.SourceChecksum != "abc" {
		t.Errorf("checksum = %q, want abc", stored.SourceChecksum)
	}
	if err := db.SetSourceChecksum(ctx, 9999, "abc"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SetSourceChecksum(missing) = %v, want not found", err)
	}
}

func TestOpen_AddsMissingColumns(t *testing.T) {
	db := testDB(t)
	if _, err := db.conn.Exec(`ALTER TABLE refs DROP COLUMN link_path`); err != nil {
		t.Fatalf("drop column: %v", err)
	}
	if err := migrate(db.conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var n int
	if err := db.conn.Get(&n, `SELECT COUNT(*) FROM pragma_table_info('refs') WHERE name = 'link_path'`); err != nil || n != 1 {
		t.Errorf("link_path column count = %d (%v)", n, err)
	}
	if err := migrate(db.conn); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestShareLinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	l := &models.ShareLink{
		Code:       "Ab3dE9xY",
		ValidUntil: time.Now().Add(24 * time.Hour),
		AnchorDate: time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC),
		WindowDays: 2,
	}
	if err := db.InsertShareLink(ctx, l); err != nil {
		t.Fatalf("InsertShareLink: %v", err)
	}
	dup := &models.ShareLink{Code: "Ab3dE9xY", ValidUntil: time.Now(), AnchorDate: time.Now()}
	if err := db.InsertShareLink(ctx, dup); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate code err = %v, want ErrAlreadyExists", err)
	}

	const clicks = 20
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.AppendClick(ctx, l.ID, "2025-04-03 10:00:00;v;ua;date=2025-04-03\n"); err != nil {
				t.Errorf("AppendClick: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := db.GetShareLink(ctx, "Ab3dE9xY")
	if err != nil {
		t.Fatalf("GetShareLink: %v", err)
	}
	if got.ClickCount != clicks || strings.Count(got.ClickLog, "\n") != clicks {
		t.Errorf("click_count = %d, log lines = %d, want %d", got.ClickCount, strings.Count(got.ClickLog, "\n"), clicks)
	}
	if got.WindowDays != 2 || !got.AnchorDate.Equal(l.AnchorDate) {
		t.Errorf("link fields = %+v", got)
	}

	if _, err := db.GetShareLink(ctx, "missing0"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetShareLink(missing) err = %v", err)
	}
	if err := db.AppendClick(ctx, 999, "x\n"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("AppendClick(999) err = %v", err)
	}
}
