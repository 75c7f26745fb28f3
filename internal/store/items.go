package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

const itemColumns = `id, category_id, publication_id, item_type_id, created_at, publish_at,
	headline, summary, has_summary, refs_in_summary_count, source_path, source_checksum`

// itemRow converts instants to UTC so that stored timestamps compare
// lexically in time order.
func itemRow(it *models.Item) models.Item {
	r := *it
	r.CreatedAt = it.CreatedAt.UTC()
	r.PublishAt = it.PublishAt.UTC()
	return r
}

// SaveItem inserts it when it.ID is zero and updates it otherwise.
// has_summary is always recomputed from the summary; created_at is set on
// insert only, and publish_at defaults to created_at.
func (db *DB) SaveItem(ctx context.Context, it *models.Item) error {
	it.HasSummary = models.SummaryPresent(it.Summary)
	if it.ID == 0 {
		if it.CreatedAt.IsZero() {
			it.CreatedAt = time.Now()
		}
		if it.PublishAt.IsZero() {
			it.PublishAt = it.CreatedAt
		}
		row := itemRow(it)
		res, err := db.conn.NamedExecContext(ctx, `
			INSERT INTO items (category_id, publication_id, item_type_id, created_at, publish_at,
				headline, summary, has_summary, refs_in_summary_count, source_path, source_checksum)
			VALUES (:category_id, :publication_id, :item_type_id, :created_at, :publish_at,
				:headline, :summary, :has_summary, :refs_in_summary_count, :source_path, :source_checksum)`, &row)
		if err != nil {
			return fmt.Errorf("store: insert item: %w", mapConstraint(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: insert item: %w", err)
		}
		it.ID = id
		return nil
	}

	if it.PublishAt.IsZero() {
		it.PublishAt = it.CreatedAt
	}
	row := itemRow(it)
	res, err := db.conn.NamedExecContext(ctx, `
		UPDATE items SET
			category_id     = :category_id,
			publication_id  = :publication_id,
			item_type_id    = :item_type_id,
			publish_at      = :publish_at,
			headline        = :headline,
			summary         = :summary,
			has_summary     = :has_summary,
			source_path     = :source_path,
			source_checksum = :source_checksum
		WHERE id = :id`, &row)
	if err != nil {
		return fmt.Errorf("store: update item: %w", mapConstraint(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: item %d: %w", it.ID, apperr.ErrNotFound)
	}
	return nil
}

// GetItem returns one item or apperr.ErrNotFound.
func (db *DB) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	var it models.Item
	err := db.conn.GetContext(ctx, &it, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: item %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get item: %w", err)
	}
	return &it, nil
}

// GetItemBySource returns the item synced from path or apperr.ErrNotFound.
func (db *DB) GetItemBySource(ctx context.Context, path string) (*models.Item, error) {
	var it models.Item
	err := db.conn.GetContext(ctx, &it, `SELECT `+itemColumns+` FROM items WHERE source_path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: item source %q: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get item by source: %w", err)
	}
	return &it, nil
}

// ListItems returns the items matching filter ordered by publish time, id.
func (db *DB) ListItems(ctx context.Context, filter models.ItemFilter, order models.ItemOrder) ([]models.Item, error) {
	var (
		where []string
		args  []any
	)
	if !filter.PublishedFrom.IsZero() {
		where = append(where, "publish_at >= ?")
		args = append(args, filter.PublishedFrom.UTC())
	}
	if !filter.PublishedBefore.IsZero() {
		where = append(where, "publish_at < ?")
		args = append(args, filter.PublishedBefore.UTC())
	}
	if len(filter.CategoryIDs) > 0 {
		where = append(where, "category_id IN (?)")
		args = append(args, filter.CategoryIDs)
	}

	q := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	if order == models.OrderPublishDesc {
		q += ` ORDER BY publish_at DESC, id DESC`
	} else {
		q += ` ORDER BY publish_at, id`
	}

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list items: %w", err)
	}
	var out []models.Item
	if err := db.conn.SelectContext(ctx, &out, db.conn.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("store: list items: %w", err)
	}
	return out, nil
}

// ItemSources returns source_path → source_checksum for every synced item.
func (db *DB) ItemSources(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryxContext(ctx,
		`SELECT source_path, source_checksum FROM items WHERE source_path IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: item sources: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// SetSourceChecksum records the checksum of the document the item was last
// fully synced from. An empty sum marks the item for the next pass.
func (db *DB) SetSourceChecksum(ctx context.Context, id int64, sum string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE items SET source_checksum = ? WHERE id = ?`, sum, id)
	if err != nil {
		return fmt.Errorf("store: set source checksum: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: item %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeleteItem removes the item and its references. References of other
// items linking to it lose their link.
func (db *DB) DeleteItem(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: item %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
