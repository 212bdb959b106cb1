package queries

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var fileHeader = []string{"Name", "Modified", "Parameters"}

// FileStore keeps saved queries in memory and rewrites the whole CSV file
// after every Save and Delete, so deletions survive a restart. Fields are
// quoted by encoding/csv, so names and params may contain commas.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
	now     func() time.Time
}

// NewFileStore reads path fully, creating it with just the header row when it
// does not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: path is required")
	}
	s := &FileStore{path: path, records: make(map[string]Record), now: time.Now}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.flush(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open query file: %w", err)
	}
	defer f.Close()

	if err := s.read(f); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) read(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) != len(fileHeader) {
			return fmt.Errorf("%w: line %d has %d fields", ErrCorrupt, i+1, len(row))
		}
		modified, err := parseModified(row[0], row[1])
		if err != nil {
			return err
		}
		s.records[row[0]] = Record{Name: row[0], Modified: modified, Params: row[2]}
	}
	return nil
}

func isHeader(row []string) bool {
	if len(row) != len(fileHeader) {
		return false
	}
	for i, field := range row {
		if !strings.EqualFold(strings.TrimSpace(field), fileHeader[i]) {
			return false
		}
	}
	return true
}

func (s *FileStore) Save(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := normalize(r, s.now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[r.Name]
	s.records[r.Name] = r
	if err := s.flush(); err != nil {
		if existed {
			s.records[r.Name] = prev
		} else {
			delete(s.records, r.Name)
		}
		return err
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, name string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[strings.TrimSpace(name)]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.records, name)
	if err := s.flush(); err != nil {
		s.records[name] = prev
		return err
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sortByName(records)
	return records, nil
}

// Close is a no-op; every change is already on disk.
func (s *FileStore) Close() error {
	return nil
}

// flush writes all records to a temporary file next to path and renames it
// over path. Callers hold mu.
func (s *FileStore) flush() error {
	records := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sortByName(records)

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create query file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(fileHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write query file: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.Name, r.Modified.Format(DateLayout), r.Params}); err != nil {
			tmp.Close()
			return fmt.Errorf("write query file: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write query file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write query file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace query file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
