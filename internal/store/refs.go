package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

const refColumns = `id, item_id, kind, idx, url, upload_path, linked_item_id, link_path, text,
	title, is_in_summary, created_at`

// ListReferences returns the item's references ordered by (index, id).
func (db *DB) ListReferences(ctx context.Context, itemID int64) ([]models.Reference, error) {
	var out []models.Reference
	err := db.conn.SelectContext(ctx, &out,
		`SELECT `+refColumns+` FROM refs WHERE item_id = ? ORDER BY idx, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("store: list references: %w", err)
	}
	return out, nil
}

// ReplaceReferences swaps the item's references for refs in one
// transaction and sets their IDs. Usage flags start cleared and the item's
// refs_in_summary_count is reset until the next annotation pass.
func (db *DB) ReplaceReferences(ctx context.Context, itemID int64, refs []models.Reference) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("store: clear references: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE items SET refs_in_summary_count = 0 WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("store: reset usage count: %w", err)
	}

	if len(refs) > 0 {
		stmt, err := tx.PrepareNamedContext(ctx, `
			INSERT INTO refs (item_id, kind, idx, url, upload_path, linked_item_id, link_path, text,
				title, is_in_summary, created_at)
			VALUES (:item_id, :kind, :idx, :url, :upload_path, :linked_item_id, :link_path, :text,
				:title, 0, :created_at)`)
		if err != nil {
			return fmt.Errorf("store: prepare reference insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for i := range refs {
			r := &refs[i]
			r.ItemID = itemID
			r.IsInSummary = false
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			res, err := stmt.ExecContext(ctx, r)
			if err != nil {
				return fmt.Errorf("store: insert reference: %w", err)
			}
			if r.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("store: insert reference: %w", err)
			}
		}
	}
	return tx.Commit()
}

// StoreReferenceUsage sets is_in_summary on every reference of the item
// from used (missing IDs mean false) and refs_in_summary_count to count,
// in one transaction.
func (db *DB) StoreReferenceUsage(ctx context.Context, itemID int64, used map[int64]bool, count int) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE refs SET is_in_summary = 0 WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("store: clear usage: %w", err)
	}
	for id, u := range used {
		if !u {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE refs SET is_in_summary = 1 WHERE id = ? AND item_id = ?`, id, itemID); err != nil {
			return fmt.Errorf("store: mark reference %d: %w", id, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET refs_in_summary_count = ? WHERE id = ?`, count, itemID); err != nil {
		return fmt.Errorf("store: usage count: %w", err)
	}
	return tx.Commit()
}

// DanglingLinks returns the item links that name a source path but have
// no target, ordered by (item, index, id).
func (db *DB) DanglingLinks(ctx context.Context) ([]models.Reference, error) {
	var out []models.Reference
	err := db.conn.SelectContext(ctx, &out, `SELECT `+refColumns+` FROM refs
		WHERE linked_item_id IS NULL AND link_path != ''
		ORDER BY item_id, idx, id`)
	if err != nil {
		return nil, fmt.Errorf("store: dangling links: %w", err)
	}
	return out, nil
}

// SetReferenceLink points the reference at targetID.
func (db *DB) SetReferenceLink(ctx context.Context, refID, targetID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE refs SET linked_item_id = ? WHERE id = ?`, targetID, refID)
	if err != nil {
		return fmt.Errorf("store: set reference link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: reference %d: %w", refID, apperr.ErrNotFound)
	}
	return nil
}
