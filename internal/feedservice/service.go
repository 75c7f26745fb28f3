// Package feedservice coordinates the store, the source directory and the
// rendering pipeline behind the HTTP API and the MCP tools.
package feedservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ticker/internal/annotate"
	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/category"
	"github.com/starford/ticker/internal/feed"
	"github.com/starford/ticker/internal/feedsync"
	"github.com/starford/ticker/internal/models"
	"github.com/starford/ticker/internal/parser"
	"github.com/starford/ticker/internal/reference"
	"github.com/starford/ticker/internal/shortlink"
	"github.com/starford/ticker/internal/storage"
	"github.com/starford/ticker/internal/store"
)

// Deps are the collaborators of a Service.
type Deps struct {
	DB       *store.DB
	Sources  storage.Provider
	Syncer   *feedsync.Syncer
	Engine   *annotate.Engine
	Resolver *reference.Resolver
	Issuer   *shortlink.Issuer
	Logger   *slog.Logger
	// Events receives item changes made through the service.
	Events feedsync.EventCallback
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service is the feed application service.
type Service struct {
	db       *store.DB
	src      storage.Provider
	syncer   *feedsync.Syncer
	engine   *annotate.Engine
	resolver *reference.Resolver
	issuer   *shortlink.Issuer
	selector *feed.Selector
	loc      *time.Location
	logger   *slog.Logger
	events   feedsync.EventCallback

	overviewPath string
	lookbackDays int
	now          func() time.Time
}

// New creates a Service. overviewPath is the public feed page share links
// point to; lookbackDays is the default window length.
func New(d Deps, overviewPath string, lookbackDays int) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := d.Resolver.Location()
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:           d.DB,
		src:          d.Sources,
		syncer:       d.Syncer,
		engine:       d.Engine,
		resolver:     d.Resolver,
		issuer:       d.Issuer,
		selector:     feed.NewSelector(d.DB, loc),
		loc:          loc,
		logger:       logger,
		events:       d.Events,
		overviewPath: overviewPath,
		lookbackDays: lookbackDays,
		now:          now,
	}
}

// Location returns the zone calendar dates are taken in.
func (s *Service) Location() *time.Location { return s.loc }

// FeedQuery selects a feed window. A zero Date means today; a nil Days
// means the configured lookback. With a Code, the share link's window
// replaces Date and Days and the visit is recorded.
type FeedQuery struct {
	Date       time.Time
	Days       *int
	Categories []int64
	Code       string

	Actor     string
	UserAgent string
	Params    string
}

// Feed returns the grouped, rendered feed for q.
func (s *Service) Feed(ctx context.Context, q FeedQuery) (*FeedView, error) {
	date := q.Date
	if date.IsZero() {
		date = s.now()
	}
	days := s.lookbackDays
	if q.Days != nil {
		days = *q.Days
	}

	if q.Code != "" {
		link, err := s.issuer.Lookup(ctx, q.Code)
		if err != nil {
			return nil, err
		}
		if err := s.issuer.RecordClick(ctx, link, q.Actor, q.UserAgent, q.Params); err != nil {
			return nil, err
		}
		a := link.AnchorDate
		date = time.Date(a.Year(), a.Month(), a.Day(), 12, 0, 0, 0, s.loc)
		days = link.WindowDays
	}
	if days < 0 {
		return nil, fmt.Errorf("feedservice: days must not be negative: %w", apperr.ErrInvalidInput)
	}

	tree, err := s.tree(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.selector.Current(ctx, tree, date, days, q.Categories)
	if err != nil {
		return nil, err
	}

	lk := newLookups(s.db)
	view := &FeedView{
		Date:  models.DateOf(date, s.loc).Format(time.DateOnly),
		Days:  days,
		Code:  q.Code,
		Items: len(items),
		Dates: []DateGroupView{},
	}
	for _, g := range feed.GroupByDate(items, tree, s.loc) {
		dg := DateGroupView{Date: g.Date.Format(time.DateOnly)}
		for _, cg := range g.Categories {
			cv := CategoryGroupView{Category: cg.Category}
			for i := range cg.Items {
				iv, err := s.itemView(ctx, lk, tree, &cg.Items[i], q.Code)
				if err != nil {
					return nil, err
				}
				cv.Items = append(cv.Items, *iv)
			}
			dg.Categories = append(dg.Categories, cv)
		}
		view.Dates = append(view.Dates, dg)
	}
	return view, nil
}

// Item returns one rendered item with its references.
func (s *Service) Item(ctx context.Context, id int64, code string) (*ItemView, error) {
	it, err := s.db.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := s.tree(ctx)
	if err != nil {
		return nil, err
	}
	iv, err := s.itemView(ctx, newLookups(s.db), tree, it, code)
	if err != nil {
		return nil, err
	}
	refs, err := s.db.ListReferences(ctx, id)
	if err != nil {
		return nil, err
	}
	iv.References = refs
	return iv, nil
}

// SummaryHTML renders the item's summary for verbatim embedding.
func (s *Service) SummaryHTML(ctx context.Context, id int64, code string) (string, error) {
	it, err := s.db.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	return s.engine.Annotate(ctx, it, code)
}

func (s *Service) itemView(ctx context.Context, lk *lookups, tree *category.Tree, it *models.Item, code string) (*ItemView, error) {
	cat, ok := tree.Get(it.CategoryID)
	if !ok {
		cat = models.Category{ID: it.CategoryID}
	}
	pub, err := lk.publication(ctx, it.PublicationID)
	if err != nil {
		return nil, err
	}
	typ, err := lk.itemType(ctx, it.ItemTypeID)
	if err != nil {
		return nil, err
	}

	iv := &ItemView{
		ID:          it.ID,
		Headline:    it.Headline,
		PublishAt:   it.PublishAt.In(s.loc),
		Category:    cat,
		Publication: pub,
		ItemType:    typ,
		HasSummary:  it.HasSummary,
		Anchor:      fmt.Sprintf("ti-%d", it.ID),
		OverviewURL: s.resolver.OverviewURL(it, code),
	}
	if it.SourcePath != nil {
		iv.SourcePath = *it.SourcePath
	}

	html, err := s.engine.Annotate(ctx, it, code)
	switch {
	case err == nil:
		iv.SummaryHTML = html
	case errors.Is(err, apperr.ErrUnresolvableReference), errors.Is(err, apperr.ErrUnknownKind):
		s.logger.Warn("feedservice: item not renderable",
			slog.Int64("item_id", it.ID), slog.String("error", err.Error()))
		iv.RenderError = err.Error()
	default:
		return nil, err
	}
	iv.RefsInSummaryCount = it.RefsInSummaryCount
	return iv, nil
}

func (s *Service) tree(ctx context.Context) (*category.Tree, error) {
	cats, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return category.Build(cats)
}

// Categories returns the category tree, roots first, children by name.
func (s *Service) Categories(ctx context.Context) ([]CategoryNode, error) {
	tree, err := s.tree(ctx)
	if err != nil {
		return nil, err
	}
	var build func(cats []models.Category) []CategoryNode
	build = func(cats []models.Category) []CategoryNode {
		out := make([]CategoryNode, 0, len(cats))
		for _, c := range cats {
			out = append(out, CategoryNode{Category: c, Children: build(tree.ChildrenOf(c.ID))})
		}
		return out
	}
	return build(tree.Roots()), nil
}

// RenameCategory renames a category and renumbers its siblings.
func (s *Service) RenameCategory(ctx context.Context, id int64, name string) error {
	if name == "" {
		return fmt.Errorf("feedservice: empty category name: %w", apperr.ErrInvalidInput)
	}
	return s.syncer.UpdateCategories(ctx, func(tree *category.Tree) error {
		return mapTreeErr(tree.Rename(id, name))
	})
}

// MoveCategory re-parents a category; a nil parent makes it a root.
func (s *Service) MoveCategory(ctx context.Context, id int64, parent *int64) error {
	return s.syncer.UpdateCategories(ctx, func(tree *category.Tree) error {
		return mapTreeErr(tree.Move(id, parent))
	})
}

// DeleteCategory removes a category with its subcategories and items.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.syncer.UpdateCategories(ctx, func(tree *category.Tree) error {
		removed, err := tree.Remove(id)
		if err != nil {
			return mapTreeErr(err)
		}
		s.logger.Info("feedservice: deleting categories", slog.Int("count", len(removed)))
		return s.db.DeleteCategory(ctx, id)
	})
}

func mapTreeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, category.ErrNotFound), errors.Is(err, category.ErrUnknownParent):
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, err.Error())
	case errors.Is(err, category.ErrCycle):
		return fmt.Errorf("%w: %s", apperr.ErrConflict, err.Error())
	}
	return err
}

// CreateItem writes doc as a new source document and syncs it.
func (s *Service) CreateItem(ctx context.Context, doc *parser.Document) (*ItemView, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err.Error())
	}
	at, err := doc.PublishTime(s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err.Error())
	}
	if at.IsZero() {
		at = s.now()
		doc.PublishAt = at.In(s.loc).Format(time.RFC3339)
	}

	data, err := parser.Encode(doc)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/%s.md", at.In(s.loc).Format("2006/01"), uuid.NewString())
	if err := s.src.Write(path, data); err != nil {
		return nil, err
	}
	if err := s.syncer.SyncFile(ctx, path, s.events); err != nil {
		return nil, err
	}
	it, err := s.db.GetItemBySource(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Item(ctx, it.ID, "")
}

// DeleteItem removes an item and, for synced items, its source document.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	it, err := s.db.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if it.SourcePath == nil {
		if err := s.db.DeleteItem(ctx, id); err != nil {
			return err
		}
		if s.events != nil {
			s.events(feedsync.KindDeleted, id, "")
		}
		return nil
	}
	if err := s.src.Delete(*it.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.syncer.RemoveFile(ctx, *it.SourcePath, s.events)
}

// Sync runs a full source sync pass.
func (s *Service) Sync(ctx context.Context) (feedsync.Stats, error) {
	return s.syncer.Sync(ctx, s.events)
}

// IssueShareLink creates a share link for the window of days days ending
// at date, valid for validFor.
func (s *Service) IssueShareLink(ctx context.Context, date time.Time, days int, validFor time.Duration) (*ShareLinkView, error) {
	if days < 0 || validFor <= 0 {
		return nil, fmt.Errorf("feedservice: invalid share window: %w", apperr.ErrInvalidInput)
	}
	l, err := s.issuer.Issue(ctx, date, days, s.now().Add(validFor))
	if err != nil {
		return nil, err
	}
	return s.shareLinkView(l), nil
}

// ShareLink returns the link with code, expired or not.
func (s *Service) ShareLink(ctx context.Context, code string) (*ShareLinkView, error) {
	l, err := s.issuer.Lookup(ctx, code)
	if err != nil && !errors.Is(err, apperr.ErrLinkExpired) {
		return nil, err
	}
	return s.shareLinkView(l), nil
}

func (s *Service) shareLinkView(l *models.ShareLink) *ShareLinkView {
	return &ShareLinkView{
		ShareLink:  *l,
		ShortURL:   shortlink.ShortLinkURL(s.overviewPath, l),
		ResolveURL: shortlink.ResolveURL(s.overviewPath, l),
		Expired:    !l.Valid(s.now()),
	}
}

// Ready reports whether the store is reachable.
func (s *Service) Ready() error {
	return s.db.Ping()
}

// lookups caches publications and item types for one request.
type lookups struct {
	db    *store.DB
	pubs  map[int64]*models.Publication
	types map[int64]*models.ItemType
}

func newLookups(db *store.DB) *lookups {
	return &lookups{
		db:    db,
		pubs:  make(map[int64]*models.Publication),
		types: make(map[int64]*models.ItemType),
	}
}

func (l *lookups) publication(ctx context.Context, id int64) (*models.Publication, error) {
	if p, ok := l.pubs[id]; ok {
		return p, nil
	}
	p, err := l.db.GetPublication(ctx, id)
	if err != nil {
		return nil, err
	}
	l.pubs[id] = p
	return p, nil
}

func (l *lookups) itemType(ctx context.Context, id int64) (*models.ItemType, error) {
	if t, ok := l.types[id]; ok {
		return t, nil
	}
	t, err := l.db.GetItemType(ctx, id)
	if err != nil {
		return nil, err
	}
	l.types[id] = t
	return t, nil
}
