package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// dialect holds the statements a sqlStore runs. Every statement reads and
// writes the modified date as a yyyy-mm-dd string.
type dialect struct {
	schema []string
	upsert string
	get    string
	remove string
	list   string
}

// sqlStore implements Store over database/sql. SQLiteStore and PostgresStore
// differ only in their dialect.
type sqlStore struct {
	db  *sql.DB
	q   dialect
	now func() time.Time
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, statement := range s.q.schema {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate saved_queries: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) Save(ctx context.Context, r Record) error {
	r, err := normalize(r, s.now)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.upsert, r.Name, r.Modified.Format(DateLayout), r.Params); err != nil {
		return fmt.Errorf("save query %q: %w", r.Name, err)
	}
	return nil
}

func (s *sqlStore) Load(ctx context.Context, name string) (Record, error) {
	name = strings.TrimSpace(name)
	var (
		r        Record
		modified string
	)
	err := s.db.QueryRowContext(ctx, s.q.get, name).Scan(&r.Name, &modified, &r.Params)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load query %q: %w", name, err)
	}
	if r.Modified, err = parseModified(r.Name, modified); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *sqlStore) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	res, err := s.db.ExecContext(ctx, s.q.remove, name)
	if err != nil {
		return fmt.Errorf("delete query %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete query %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.q.list)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r        Record
			modified string
		)
		if err := rows.Scan(&r.Name, &modified, &r.Params); err != nil {
			return nil, fmt.Errorf("list queries: %w", err)
		}
		if r.Modified, err = parseModified(r.Name, modified); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return records, nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
