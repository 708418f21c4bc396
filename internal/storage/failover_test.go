package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a MemoryStore and fails every call while broken is set.
type flakyStore struct {
	*MemoryStore
	broken bool
}

var errStoreDown = errors.New("store down")

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.broken {
		return nil, false, errStoreDown
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if s.broken {
		return errStoreDown
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.broken {
		return errStoreDown
	}
	return s.MemoryStore.Delete(ctx, key)
}

func (s *flakyStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.broken {
		return nil, errStoreDown
	}
	return s.MemoryStore.Keys(ctx, prefix)
}

func TestFailoverStoreFallsBack(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore()}
	fallback := NewMemoryStore()
	logger := zerolog.Nop()
	store := NewFailoverStore(primary, fallback, &logger)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "offline:actions", []byte(`[]`)))

	primary.broken = true

	// Write during the outage lands in the fallback, not an error.
	require.NoError(t, store.Set(ctx, "offline:actions", []byte(`[{"id":"a"}]`)))

	value, ok, err := store.Get(ctx, "offline:actions")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, string(value))
}

func TestFailoverStoreMirrorsWrites(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore()}
	fallback := NewMemoryStore()
	logger := zerolog.Nop()
	store := NewFailoverStore(primary, fallback, &logger)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "offline:config", []byte(`{}`)))

	// Healthy writes are mirrored so a later outage still reads coherent state.
	value, ok, err := fallback.Get(ctx, "offline:config")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{}`, string(value))
}

func TestFailoverStoreStaysDownBetweenProbes(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore()}
	fallback := NewMemoryStore()
	logger := zerolog.Nop()
	store := NewFailoverStore(primary, fallback, &logger)

	ctx := context.Background()
	primary.broken = true
	_, _, _ = store.Get(ctx, "k")
	require.True(t, store.isDown.Load())

	// Primary heals, but the bench window has not elapsed: calls keep
	// going to the fallback without probing.
	primary.broken = false
	_, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, store.isDown.Load())
}
