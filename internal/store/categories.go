package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

// ListCategories returns every category ordered by path.
func (db *DB) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := db.conn.SelectContext(ctx, &out,
		`SELECT id, name, parent_id, path, depth FROM categories ORDER BY path, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	return out, nil
}

// GetCategory returns one category or apperr.ErrNotFound.
func (db *DB) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := db.conn.GetContext(ctx, &c,
		`SELECT id, name, parent_id, path, depth FROM categories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: category %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get category: %w", err)
	}
	return &c, nil
}

// InsertCategory stores a new category and sets its ID. Path and depth are
// written as given; callers persist recomputed paths with SaveCategoryPaths.
func (db *DB) InsertCategory(ctx context.Context, c *models.Category) error {
	res, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO categories (name, parent_id, path, depth)
		VALUES (:name, :parent_id, :path, :depth)`, c)
	if err != nil {
		return fmt.Errorf("store: insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert category: %w", err)
	}
	c.ID = id
	return nil
}

// SaveCategories writes name, parent, path and depth of cats in one
// transaction.
func (db *DB) SaveCategories(ctx context.Context, cats []models.Category) error {
	if len(cats) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareNamedContext(ctx, `
		UPDATE categories
		SET name = :name, parent_id = :parent_id, path = :path, depth = :depth
		WHERE id = :id`)
	if err != nil {
		return fmt.Errorf("store: prepare category update: %w", err)
	}
	defer stmt.Close()
	for i := range cats {
		if _, err := stmt.ExecContext(ctx, &cats[i]); err != nil {
			return fmt.Errorf("store: update category %d: %w", cats[i].ID, err)
		}
	}
	return tx.Commit()
}

// DeleteCategory removes the category; its subcategories and their items
// go with it.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: category %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
