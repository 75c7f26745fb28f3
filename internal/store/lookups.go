package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

// EnsurePublication returns the publication named name, creating it when
// missing. A non-empty url overwrites the stored one.
func (db *DB) EnsurePublication(ctx context.Context, name, url string) (*models.Publication, error) {
	var p models.Publication
	err := db.conn.GetContext(ctx, &p, `
		INSERT INTO publications (name, url) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			url = CASE WHEN excluded.url = '' THEN publications.url ELSE excluded.url END
		RETURNING id, name, url`, name, url)
	if err != nil {
		return nil, fmt.Errorf("store: ensure publication: %w", err)
	}
	return &p, nil
}

// EnsureItemType returns the item type named name, creating it when
// missing. A non-empty color overwrites the stored one.
func (db *DB) EnsureItemType(ctx context.Context, name, color string) (*models.ItemType, error) {
	var t models.ItemType
	err := db.conn.GetContext(ctx, &t, `
		INSERT INTO item_types (name, color) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			color = CASE WHEN excluded.color = '' THEN item_types.color ELSE excluded.color END
		RETURNING id, name, color`, name, color)
	if err != nil {
		return nil, fmt.Errorf("store: ensure item type: %w", err)
	}
	return &t, nil
}

// GetPublication returns one publication or apperr.ErrNotFound.
func (db *DB) GetPublication(ctx context.Context, id int64) (*models.Publication, error) {
	var p models.Publication
	err := db.conn.GetContext(ctx, &p, `SELECT id, name, url FROM publications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: publication %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get publication: %w", err)
	}
	return &p, nil
}

// GetItemType returns one item type or apperr.ErrNotFound.
func (db *DB) GetItemType(ctx context.Context, id int64) (*models.ItemType, error) {
	var t models.ItemType
	err := db.conn.GetContext(ctx, &t, `SELECT id, name, color FROM item_types WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: item type %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get item type: %w", err)
	}
	return &t, nil
}
