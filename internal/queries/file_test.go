package queries

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_CreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savedQueries.csv")
	_, err := NewFileStore(path)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Modified,Parameters\n", string(content))
}

func TestFileStore_DeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savedQueries.csv")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, Record{Name: "keep", Modified: day(2024, 1, 1), Params: "Finland;2024-01-01;DAY"}))
	require.NoError(t, store.Save(ctx, Record{Name: "drop, me", Modified: day(2024, 1, 2), Params: "Sweden"}))
	require.NoError(t, store.Delete(ctx, "drop, me"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Modified,Parameters\nkeep,2024-01-01,Finland;2024-01-01;DAY\n", string(content))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	all, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].Name)
	assert.Equal(t, day(2024, 1, 1), all[0].Modified)
}

func TestFileStore_ReadsLegacyHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savedQueries.csv")
	legacy := "Name, Modified, Parameters\nhome,2024-04-02,Finland\n\nwork,2024-04-03,Germany;2024-04-03;MONTH\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	rec, err := store.Load(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, "Germany;2024-04-03;MONTH", rec.Params)
	assert.Equal(t, day(2024, 4, 3), rec.Modified)

	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileStore_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "wrong field count", content: "Name,Modified,Parameters\nonly,two\n"},
		{name: "bad date", content: "Name,Modified,Parameters\nq,03.01.2024,Finland\n"},
		{name: "bad quoting", content: "Name,Modified,Parameters\n\"q,2024-01-01,Finland\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "savedQueries.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := NewFileStore(path)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestFileStore_FailedWriteKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "savedQueries.csv")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, Record{Name: "a", Modified: day(2024, 1, 1), Params: "Finland"}))

	store.path = filepath.Join(dir, "missing", "savedQueries.csv")
	assert.Error(t, store.Save(ctx, Record{Name: "b", Params: "France"}))
	assert.Error(t, store.Delete(ctx, "a"))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Name)
}

func TestFileStore_CancelledContext(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "q.csv"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, Record{Name: "x", Params: "Finland"}), context.Canceled)
	_, err = store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
