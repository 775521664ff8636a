package docstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "permit:document")
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	doc := []byte(`{"version":"1.1.0"}`)
	require.NoError(t, store.Put(ctx, doc))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, doc, got)

	// A new publish overwrites the previous document.
	next := []byte(`{"version":"1.1.0","updatedAt":"2026-02-01T00:00:00Z"}`)
	require.NoError(t, store.Put(ctx, next))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, next, got)
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}
