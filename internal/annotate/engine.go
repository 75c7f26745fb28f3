// Package annotate rewrites summary markers into typed reference markup and
// keeps the derived usage flags of items and references up to date.
package annotate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/starford/ticker/internal/models"
	"github.com/starford/ticker/internal/reference"
)

// Repository is the persistence the engine needs.
type Repository interface {
	// ListReferences returns the item's references ordered by (index, id).
	ListReferences(ctx context.Context, itemID int64) ([]models.Reference, error)
	// StoreReferenceUsage sets is_in_summary on every reference of the item
	// from used (missing IDs mean false) and refs_in_summary_count to count,
	// atomically.
	StoreReferenceUsage(ctx context.Context, itemID int64, used map[int64]bool, count int) error
}

// Rendering is the result of one pure render pass.
type Rendering struct {
	HTML string
	// Used is aligned with the references passed to Render.
	Used      []bool
	UsedCount int
	Markers   int
}

// Engine renders item summaries.
type Engine struct {
	repo     Repository
	resolver *reference.Resolver
	locks    *itemLocks
	logger   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(repo Repository, resolver *reference.Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:     repo,
		resolver: resolver,
		locks:    newItemLocks(),
		logger:   logger,
	}
}

// Render substitutes the markers of item's summary with resolved markup for
// refs, paired by position. It touches no storage. Markers without a
// reference stay as they are; references without a marker are unused.
func (e *Engine) Render(ctx context.Context, item *models.Item, refs []models.Reference, shareCode string) (*Rendering, error) {
	out := &Rendering{Used: make([]bool, len(refs))}
	summary := item.SummaryText()
	if summary == "" {
		return out, nil
	}

	root, err := parseFragment(summary)
	if err != nil {
		return nil, fmt.Errorf("annotate: parse summary of item %d: %w", item.ID, err)
	}

	markers := findMarkers(root)
	out.Markers = len(markers)
	for i, marker := range markers {
		if i >= len(refs) {
			break
		}
		ref := &refs[i]
		res, err := e.resolver.Resolve(ctx, ref, shareCode)
		if err != nil {
			return nil, fmt.Errorf("annotate: item %d: %w", item.ID, err)
		}

		markerText := textOf(marker)
		var repl *html.Node
		if res.Href != "" {
			repl = linkNode(ref, res, markerText)
		}
		if ref.Kind == models.KindAbbreviation && ref.Text != "" {
			repl = abbrNode(ref, res, markerText)
		}
		if repl == nil {
			continue
		}
		replace(marker, repl)
		out.Used[i] = true
		out.UsedCount++
	}

	out.HTML, err = renderChildren(root)
	if err != nil {
		return nil, fmt.Errorf("annotate: serialize item %d: %w", item.ID, err)
	}
	return out, nil
}

// Store persists the usage flags of r onto refs and item. refs must be the
// slice r was rendered from.
func (e *Engine) Store(ctx context.Context, item *models.Item, refs []models.Reference, r *Rendering) error {
	if len(refs) != len(r.Used) {
		return fmt.Errorf("annotate: store item %d: rendering has %d flags for %d references", item.ID, len(r.Used), len(refs))
	}
	used := make(map[int64]bool, len(refs))
	for i := range refs {
		used[refs[i].ID] = r.Used[i]
	}
	if err := e.repo.StoreReferenceUsage(ctx, item.ID, used, r.UsedCount); err != nil {
		return err
	}
	for i := range refs {
		refs[i].IsInSummary = r.Used[i]
	}
	item.RefsInSummaryCount = r.UsedCount
	return nil
}

// Annotate renders item's summary and stores the recomputed usage flags,
// serialized per item. It returns the rendered markup.
func (e *Engine) Annotate(ctx context.Context, item *models.Item, shareCode string) (string, error) {
	unlock, err := e.locks.lock(ctx, item.ID)
	if err != nil {
		return "", fmt.Errorf("annotate: lock item %d: %w", item.ID, err)
	}
	defer unlock()

	refs, err := e.repo.ListReferences(ctx, item.ID)
	if err != nil {
		return "", err
	}
	r, err := e.Render(ctx, item, refs, shareCode)
	if err != nil {
		return "", err
	}
	if err := e.Store(ctx, item, refs, r); err != nil {
		return "", err
	}

	e.logger.Debug("annotate: rendered",
		slog.Int64("item_id", item.ID),
		slog.Int("markers", r.Markers),
		slog.Int("refs", len(refs)),
		slog.Int("used", r.UsedCount))
	return r.HTML, nil
}

// RecomputeAndStore refreshes the derived usage flags of item without
// returning markup.
func (e *Engine) RecomputeAndStore(ctx context.Context, item *models.Item) error {
	_, err := e.Annotate(ctx, item, "")
	return err
}
