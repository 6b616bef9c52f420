package unique

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// runStoreContract exercises the behavior every Store backend must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()

	won, err := store.Insert(ctx, "auth_id:k1", "u1", now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = store.Insert(ctx, "auth_id:k1", "u2", now)
	require.NoError(t, err)
	require.False(t, won, "insert must not overwrite")

	owner, ok, err := store.Owner(ctx, "auth_id:k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", owner)

	_, ok, err = store.Owner(ctx, "auth_id:missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, "auth_id:k1"))
	require.NoError(t, store.Delete(ctx, "auth_id:k1"), "deleting an absent claim is a no-op")

	_, ok, err = store.Owner(ctx, "auth_id:k1")
	require.NoError(t, err)
	require.False(t, ok)

	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		owner := fmt.Sprintf("racer-%d", i)
		g.Go(func() error {
			won, err := store.Insert(ctx, "User.email:race@example.com", owner, now)
			if won {
				wins.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, wins.Load())
}

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	runStoreContract(t, NewMemoryStore())
}
