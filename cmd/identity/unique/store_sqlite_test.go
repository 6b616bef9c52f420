package unique

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Contract(t *testing.T) {
	t.Parallel()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "claims.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	won, err := store.Insert(ctx, "auth_id:k", "u1", time.Now())
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	owner, ok, err := store.Owner(ctx, "auth_id:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", owner)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := OpenSQLite("  ")
	require.Error(t, err)
}
