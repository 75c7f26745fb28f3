package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/ticker/internal/apperr"
	"github.com/starford/ticker/internal/models"
)

// mapConstraint turns a UNIQUE violation into apperr.ErrAlreadyExists.
func mapConstraint(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, se.Error())
	}
	return err
}

// InsertShareLink stores l and sets its ID. A taken code yields
// apperr.ErrAlreadyExists; the unique index makes the check and the insert
// one atomic step.
func (db *DB) InsertShareLink(ctx context.Context, l *models.ShareLink) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	row := *l
	row.ValidUntil = l.ValidUntil.UTC()
	row.AnchorDate = l.AnchorDate.UTC()
	row.CreatedAt = l.CreatedAt.UTC()

	res, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO share_links (code, valid_until, anchor_date, window_days, click_count, click_log, created_at)
		VALUES (:code, :valid_until, :anchor_date, :window_days, 0, '', :created_at)`, &row)
	if err != nil {
		return fmt.Errorf("store: insert share link: %w", mapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert share link: %w", err)
	}
	l.ID = id
	l.ClickCount = 0
	l.ClickLog = ""
	return nil
}

// GetShareLink returns the link with code or apperr.ErrNotFound.
func (db *DB) GetShareLink(ctx context.Context, code string) (*models.ShareLink, error) {
	var l models.ShareLink
	err := db.conn.GetContext(ctx, &l, `
		SELECT id, code, valid_until, anchor_date, window_days, click_count, click_log, created_at
		FROM share_links WHERE code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: share link %q: %w", code, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get share link: %w", err)
	}
	return &l, nil
}

// AppendClick increments the link's click count and appends line to its
// log in a single statement.
func (db *DB) AppendClick(ctx context.Context, id int64, line string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE share_links
		SET click_count = click_count + 1, click_log = click_log || ?
		WHERE id = ?`, line, id)
	if err != nil {
		return fmt.Errorf("store: record click: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: share link %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
