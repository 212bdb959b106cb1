//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/store.go -package=mocks . Store

// Package queries persists named chart queries.
//
// A saved query maps a unique name to the date it was last modified and an
// opaque parameter string (see Params). Three backends implement Store:
//   - FileStore: a CSV file rewritten on every change
//   - SQLiteStore: an embedded SQLite database
//   - PostgresStore: a shared PostgreSQL table
//
// Example usage:
//
//	store, err := queries.Open("file", "savedQueries.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Save(ctx, queries.Record{Name: "winter", Params: "Finland;2024-01-03;WEEK"})
package queries

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the on-disk format of Record.Modified.
const DateLayout = "2006-01-02"

var (
	ErrNotFound    = errors.New("saved query not found")
	ErrInvalidName = errors.New("saved query name must not be empty")
	ErrCorrupt     = errors.New("saved query store is corrupt")
)

// Record is one saved query.
type Record struct {
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
	Params   string    `json:"params"`
}

// Store is a key-value store of saved queries keyed by name.
type Store interface {
	// Save inserts or replaces the record with the same name. A zero
	// Modified is set to today.
	Save(ctx context.Context, r Record) error

	// Load returns the named record or ErrNotFound.
	Load(ctx context.Context, name string) (Record, error)

	// Delete removes the named record or returns ErrNotFound.
	Delete(ctx context.Context, name string) error

	// List returns every record ordered by name.
	List(ctx context.Context) ([]Record, error)

	Close() error
}

// Open returns the backend named by driver: "file" (or "csv"), "sqlite" or
// "postgres". dsn is a file path for the first two and a connection string
// for postgres.
func Open(driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "file", "csv":
		return NewFileStore(dsn)
	case "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unknown query store driver %q", driver)
	}
}

// normalize validates a record before it is written and truncates Modified
// to a calendar date.
func normalize(r Record, now func() time.Time) (Record, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return Record{}, ErrInvalidName
	}
	if r.Modified.IsZero() {
		r.Modified = now()
	}
	y, m, d := r.Modified.Date()
	r.Modified = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return r, nil
}

func parseModified(name, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: query %q has modified date %q", ErrCorrupt, name, value)
	}
	return t, nil
}

func sortByName(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
}
