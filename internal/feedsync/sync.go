// Package feedsync keeps the store in step with the feed source directory.
package feedsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/category"
	"github.com/starford/ticker/internal/checksum"
	"github.com/starford/ticker/internal/models"
	"github.com/starford/ticker/internal/parser"
	"github.com/starford/ticker/internal/storage"
)

// Event kinds reported to an EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called after each item change made by a sync pass.
type EventCallback func(kind string, itemID int64, path string)

// Store is the persistence a sync pass needs.
type Store interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	InsertCategory(ctx context.Context, c *models.Category) error
	SaveCategories(ctx context.Context, cats []models.Category) error
	EnsurePublication(ctx context.Context, name, url string) (*models.Publication, error)
	EnsureItemType(ctx context.Context, name, color string) (*models.ItemType, error)
	ItemSources(ctx context.Context) (map[string]string, error)
	GetItemBySource(ctx context.Context, path string) (*models.Item, error)
	SaveItem(ctx context.Context, it *models.Item) error
	SetSourceChecksum(ctx context.Context, id int64, sum string) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	ReplaceReferences(ctx context.Context, itemID int64, refs []models.Reference) error
	DanglingLinks(ctx context.Context) ([]models.Reference, error)
	SetReferenceLink(ctx context.Context, refID, targetID int64) error
}

// Annotator recomputes the derived usage flags of an item.
type Annotator interface {
	RecomputeAndStore(ctx context.Context, item *models.Item) error
}

// Stats summarizes one sync pass.
type Stats struct {
	Created int
	Updated int
	Deleted int
	Failed  int
	// Relinked counts items whose dangling item links found their target.
	Relinked int
}

// Syncer applies source documents to the store. Passes are serialized.
type Syncer struct {
	store  Store
	src    storage.Provider
	annot  Annotator
	loc    *time.Location
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a Syncer. Zone-less publish times are read in loc.
func New(store Store, src storage.Provider, annot Annotator, loc *time.Location, logger *slog.Logger) *Syncer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{store: store, src: src, annot: annot, loc: loc, logger: logger}
}

type pending struct {
	item *models.Item
	doc  *parser.Document
	kind string
	sum  string
}

// Sync walks the source directory and brings the store up to date:
//   - new or changed documents are parsed and upserted
//   - items whose document is gone are deleted
//
// References are written after all items so that item links between
// documents of the same pass resolve. A document counts as synced only
// once its references and usage flags are stored; until then its item
// keeps an empty checksum and the next pass retries it. The pass ends by
// restoring item links whose target document has appeared.
func (s *Syncer) Sync(ctx context.Context, cb EventCallback) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	metas, err := s.src.List("")
	if err != nil {
		return stats, err
	}
	sources, err := s.store.ItemSources(ctx)
	if err != nil {
		return stats, err
	}
	cats, err := s.newCategories(ctx)
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	var changed []pending
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if cs, ok := sources[m.Path]; ok && cs == m.Checksum {
			continue
		}
		data, err := s.src.Read(m.Path)
		if err != nil {
			s.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		p, err := s.upsert(ctx, cats, m.Path, data)
		if err != nil {
			s.logger.Warn("sync: upsert failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		changed = append(changed, p)
	}

	if err := cats.persist(ctx); err != nil {
		return stats, err
	}

	for _, p := range changed {
		if err := s.complete(ctx, p); err != nil {
			s.logger.Warn("sync: references failed",
				slog.String("path", *p.item.SourcePath), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		if p.kind == KindCreated {
			stats.Created++
		} else {
			stats.Updated++
		}
		s.logger.Debug("sync: indexed", slog.String("path", *p.item.SourcePath), slog.String("op", p.kind))
		if cb != nil {
			cb(p.kind, p.item.ID, *p.item.SourcePath)
		}
	}

	for path := range sources {
		if _, ok := disk[path]; ok {
			continue
		}
		id, err := s.remove(ctx, path)
		if err != nil {
			s.logger.Warn("sync: delete failed", slog.String("path", path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		stats.Deleted++
		s.logger.Debug("sync: removed stale", slog.String("path", path))
		if cb != nil {
			cb(KindDeleted, id, path)
		}
	}

	relinked, err := s.relink(ctx, cb)
	if err != nil {
		return stats, err
	}
	stats.Relinked = relinked

	return stats, nil
}

// SyncFile applies a single document; used by the watcher.
func (s *Syncer) SyncFile(ctx context.Context, path string, cb EventCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.src.Read(path)
	if err != nil {
		return err
	}
	if cur, err := s.store.GetItemBySource(ctx, path); err == nil && cur.SourceChecksum == checksum.Sum(data) {
		return nil
	}
	cats, err := s.newCategories(ctx)
	if err != nil {
		return err
	}
	p, err := s.upsert(ctx, cats, path, data)
	if err != nil {
		return err
	}
	if err := cats.persist(ctx); err != nil {
		return err
	}
	if err := s.complete(ctx, p); err != nil {
		return err
	}
	if cb != nil {
		cb(p.kind, p.item.ID, path)
	}
	_, err = s.relink(ctx, cb)
	return err
}

// RemoveFile deletes the item synced from path, if any.
func (s *Syncer) RemoveFile(ctx context.Context, path string, cb EventCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.remove(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if cb != nil {
		cb(KindDeleted, id, path)
	}
	return nil
}

func (s *Syncer) remove(ctx context.Context, path string) (int64, error) {
	it, err := s.store.GetItemBySource(ctx, path)
	if err != nil {
		return 0, err
	}
	return it.ID, s.store.DeleteItem(ctx, it.ID)
}

// upsert parses data and writes the item row, creating its category,
// publication and type as needed.
func (s *Syncer) upsert(ctx context.Context, cats *categories, path string, data []byte) (pending, error) {
	doc, err := parser.Parse(data)
	if err != nil {
		return pending{}, err
	}
	publishAt, err := doc.PublishTime(s.loc)
	if err != nil {
		return pending{}, err
	}
	catID, err := cats.ensure(ctx, doc.CategoryPath())
	if err != nil {
		return pending{}, err
	}
	pub, err := s.store.EnsurePublication(ctx, doc.Publication, doc.PublicationURL)
	if err != nil {
		return pending{}, err
	}
	typ, err := s.store.EnsureItemType(ctx, doc.ItemType, strings.TrimPrefix(doc.ItemTypeColor, "#"))
	if err != nil {
		return pending{}, err
	}

	kind := KindUpdated
	it, err := s.store.GetItemBySource(ctx, path)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		kind = KindCreated
		it = &models.Item{SourcePath: &path}
	case err != nil:
		return pending{}, err
	}

	it.CategoryID = catID
	it.PublicationID = pub.ID
	it.ItemTypeID = typ.ID
	it.Headline = doc.Headline
	it.PublishAt = publishAt
	// Set by complete once references are stored.
	it.SourceChecksum = ""
	it.Summary = nil
	if doc.Summary != "" {
		summary := doc.Summary
		it.Summary = &summary
	}
	if err := s.store.SaveItem(ctx, it); err != nil {
		return pending{}, err
	}
	return pending{item: it, doc: doc, kind: kind, sum: checksum.Sum(data)}, nil
}

// complete writes the references of an upserted item and then marks the
// document as synced.
func (s *Syncer) complete(ctx context.Context, p pending) error {
	if err := s.writeReferences(ctx, p); err != nil {
		return err
	}
	if err := s.store.SetSourceChecksum(ctx, p.item.ID, p.sum); err != nil {
		return err
	}
	p.item.SourceChecksum = p.sum
	return nil
}

// writeReferences replaces the item's references from its document and
// recomputes usage. Item links to documents that are not synced are kept
// without a target, with their path for relink.
func (s *Syncer) writeReferences(ctx context.Context, p pending) error {
	refs := make([]models.Reference, 0, len(p.doc.Refs))
	for i, r := range p.doc.Refs {
		ref := models.Reference{
			Kind:       models.Kind(r.Kind),
			Index:      r.Index,
			URL:        r.URL,
			UploadPath: r.File,
			LinkPath:   r.Link,
			Text:       r.Text,
			Title:      r.Title,
		}
		if ref.Index == 0 {
			ref.Index = i + 1
		}
		if r.Link != "" {
			target, err := s.store.GetItemBySource(ctx, r.Link)
			switch {
			case err == nil:
				ref.LinkedItemID = &target.ID
			case errors.Is(err, apperr.ErrNotFound):
				s.logger.Warn("sync: item link target missing",
					slog.String("path", *p.item.SourcePath), slog.String("link", r.Link))
			default:
				return err
			}
		}
		refs = append(refs, ref)
	}

	if err := s.store.ReplaceReferences(ctx, p.item.ID, refs); err != nil {
		return err
	}
	if err := s.annot.RecomputeAndStore(ctx, p.item); err != nil {
		return fmt.Errorf("feedsync: annotate %s: %w", *p.item.SourcePath, err)
	}
	return nil
}

// relink points dangling item links at their target when a document with
// the link's source path now exists, and re-annotates the linking items.
// It returns the number of items re-annotated.
func (s *Syncer) relink(ctx context.Context, cb EventCallback) (int, error) {
	dangling, err := s.store.DanglingLinks(ctx)
	if err != nil {
		return 0, err
	}

	var items []int64
	seen := make(map[int64]bool)
	for _, ref := range dangling {
		target, err := s.store.GetItemBySource(ctx, ref.LinkPath)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if err := s.store.SetReferenceLink(ctx, ref.ID, target.ID); err != nil {
			return 0, err
		}
		if !seen[ref.ItemID] {
			seen[ref.ItemID] = true
			items = append(items, ref.ItemID)
		}
	}

	relinked := 0
	for _, id := range items {
		it, err := s.store.GetItem(ctx, id)
		if err != nil {
			return relinked, err
		}
		if err := s.annot.RecomputeAndStore(ctx, it); err != nil {
			s.logger.Warn("sync: relinked item still unresolved",
				slog.Int64("item_id", id), slog.String("error", err.Error()))
			continue
		}
		relinked++
		path := ""
		if it.SourcePath != nil {
			path = *it.SourcePath
		}
		s.logger.Debug("sync: item links restored", slog.Int64("item_id", id), slog.String("path", path))
		if cb != nil {
			cb(KindUpdated, id, path)
		}
	}
	return relinked, nil
}

// categories resolves category paths against the tree, inserting missing
// nodes, and persists recomputed paths once per pass.
type categories struct {
	store Store
	tree  *category.Tree
}

func (s *Syncer) newCategories(ctx context.Context) (*categories, error) {
	list, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	tree, err := category.Build(list)
	if err != nil {
		return nil, fmt.Errorf("feedsync: category tree: %w", err)
	}
	return &categories{store: s.store, tree: tree}, nil
}

func (c *categories) ensure(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, errors.New("feedsync: empty category path")
	}
	var parent *int64
	for _, name := range names {
		var siblings []models.Category
		if parent == nil {
			siblings = c.tree.Roots()
		} else {
			siblings = c.tree.ChildrenOf(*parent)
		}

		var found *models.Category
		for i := range siblings {
			if siblings[i].Name == name {
				found = &siblings[i]
				break
			}
		}
		if found == nil {
			cat := models.Category{Name: name, ParentID: parent}
			if err := c.store.InsertCategory(ctx, &cat); err != nil {
				return 0, err
			}
			if err := c.tree.Add(cat); err != nil {
				return 0, fmt.Errorf("feedsync: add category %q: %w", name, err)
			}
			found = &cat
		}
		id := found.ID
		parent = &id
	}
	return *parent, nil
}

func (c *categories) persist(ctx context.Context) error {
	changed := c.tree.Changed()
	if len(changed) == 0 {
		return nil
	}
	if err := c.store.SaveCategories(ctx, changed); err != nil {
		return err
	}
	c.tree.MarkStored()
	return nil
}

// UpdateCategories runs fn against the current category tree, serialized
// with sync passes, and persists every path fn's changes moved.
func (s *Syncer) UpdateCategories(ctx context.Context, fn func(tree *category.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.newCategories(ctx)
	if err != nil {
		return err
	}
	if err := fn(cats.tree); err != nil {
		return err
	}
	return cats.persist(ctx)
}
