// Package store is the SQLite-backed repository for categories, items,
// references and share links.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS categories (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT    NOT NULL,
	parent_id INTEGER REFERENCES categories(id) ON DELETE CASCADE,
	path      TEXT    NOT NULL DEFAULT '',
	depth     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories(parent_id);
CREATE INDEX IF NOT EXISTS idx_categories_path ON categories(path);

CREATE TABLE IF NOT EXISTS publications (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	url  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS item_types (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL UNIQUE,
	color TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS items (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id           INTEGER  NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	publication_id        INTEGER  NOT NULL REFERENCES publications(id),
	item_type_id          INTEGER  NOT NULL REFERENCES item_types(id),
	created_at            DATETIME NOT NULL,
	publish_at            DATETIME NOT NULL,
	headline              TEXT     NOT NULL,
	summary               TEXT,
	has_summary           BOOLEAN  NOT NULL DEFAULT 0,
	refs_in_summary_count INTEGER  NOT NULL DEFAULT 0,
	source_path           TEXT UNIQUE,
	source_checksum       TEXT     NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_items_publish_at ON items(publish_at);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id);

CREATE TABLE IF NOT EXISTS refs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id        INTEGER  NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	kind           TEXT     NOT NULL,
	idx            INTEGER  NOT NULL DEFAULT 0,
	url            TEXT     NOT NULL DEFAULT '',
	upload_path    TEXT     NOT NULL DEFAULT '',
	linked_item_id INTEGER  REFERENCES items(id) ON DELETE SET NULL,
	link_path      TEXT     NOT NULL DEFAULT '',
	text           TEXT     NOT NULL DEFAULT '',
	title          TEXT     NOT NULL DEFAULT '',
	is_in_summary  BOOLEAN  NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refs_item ON refs(item_id, idx);
CREATE INDEX IF NOT EXISTS idx_refs_linked ON refs(linked_item_id);

CREATE TABLE IF NOT EXISTS share_links (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	code        TEXT     NOT NULL UNIQUE,
	valid_until DATETIME NOT NULL,
	anchor_date DATETIME NOT NULL,
	window_days INTEGER  NOT NULL DEFAULT 0,
	click_count INTEGER  NOT NULL DEFAULT 0,
	click_log   TEXT     NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);
`

// DB wraps a sqlx.DB with the ticker's queries.
type DB struct {
	conn *sqlx.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sqlx.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// addedColumns lists columns introduced after the first schema, which
// CREATE TABLE IF NOT EXISTS does not add to existing databases.
var addedColumns = []struct {
	table, column, def string
}{
	{"refs", "link_path", "TEXT NOT NULL DEFAULT ''"},
}

func migrate(conn *sqlx.DB) error {
	for _, c := range addedColumns {
		var n int
		err := conn.Get(&n,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column)
		if err != nil {
			return fmt.Errorf("store: inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := conn.Exec(`ALTER TABLE ` + c.table + ` ADD COLUMN ` + c.column + ` ` + c.def); err != nil {
			return fmt.Errorf("store: add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// Ping checks the connection; used by the readiness check.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
