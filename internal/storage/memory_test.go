package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	buf := []byte(`{"a":1}`)
	require.NoError(t, store.Set(ctx, "k", buf))

	// Mutating the caller's slice must not affect stored bytes.
	buf[2] = 'b'
	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(value))
}

func TestMemoryStoreKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "offline:cache:b", nil))
	require.NoError(t, store.Set(ctx, "offline:cache:a", nil))
	require.NoError(t, store.Set(ctx, "other", nil))

	keys, err := store.Keys(ctx, "offline:cache:")
	require.NoError(t, err)
	assert.Equal(t, []string{"offline:cache:a", "offline:cache:b"}, keys)
}
