//go:build integration

package queries

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("ELECVIEW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ELECVIEW_TEST_POSTGRES_DSN not set")
	}

	runStoreContract(t, func(t *testing.T) Store {
		store, err := NewPostgresStore(dsn)
		require.NoError(t, err)
		_, err = store.db.ExecContext(context.Background(), "TRUNCATE saved_queries")
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
