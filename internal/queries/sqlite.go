package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS saved_queries (
			name TEXT PRIMARY KEY,
			modified TEXT NOT NULL,
			params TEXT NOT NULL
		);`,
	},
	upsert: `
		INSERT INTO saved_queries (name, modified, params) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			modified = excluded.modified,
			params = excluded.params`,
	get:    `SELECT name, modified, params FROM saved_queries WHERE name = ?`,
	remove: `DELETE FROM saved_queries WHERE name = ?`,
	list:   `SELECT name, modified, params FROM saved_queries ORDER BY name`,
}

// SQLiteStore keeps saved queries in an embedded SQLite file.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{&sqlStore{db: db, q: sqliteDialect, now: time.Now}}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

var _ Store = (*SQLiteStore)(nil)
