package queue

import (
	"context"
	"encoding/json"
	"testing"

	"budgetsync/internal/models"
	"budgetsync/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	q, err := New(context.Background(), store, zerolog.Nop(), nil)
	require.NoError(t, err)
	return q, store
}

func TestEnqueueDefaults(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, models.ActionCreate, "expense", json.RawMessage(`{"amount":9.99}`), Options{}, 3)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, models.PriorityMedium, a.Priority)
	assert.Equal(t, 3, a.MaxRetries)
	assert.Equal(t, 0, a.RetryCount)
	assert.False(t, a.Timestamp.IsZero())
	assert.Equal(t, 1, q.Len())
}

func TestEnqueueValidation(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "upsert", "expense", nil, Options{}, 3)
	assert.Error(t, err)

	_, err = q.Enqueue(ctx, models.ActionCreate, "", nil, Options{}, 3)
	assert.Error(t, err)

	_, err = q.Enqueue(ctx, models.ActionCreate, "expense", nil, Options{Priority: "urgent"}, 3)
	assert.Error(t, err)
}

func TestEnqueueUniqueIDs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		a, err := q.Enqueue(ctx, models.ActionCreate, "expense", nil, Options{}, 3)
		require.NoError(t, err)
		require.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
	}
}

func TestRoundTripReload(t *testing.T) {
	q, store := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, models.ActionCreate, "expense", json.RawMessage(`{"amount":1}`), Options{Priority: models.PriorityHigh}, 5)
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, models.ActionUpdate, "expense", json.RawMessage(`{"amount":2}`), Options{
		EntityID:     "exp-7",
		Priority:     models.PriorityLow,
		Dependencies: []string{first.ID},
	}, 5)
	require.NoError(t, err)
	_, err = q.IncrementRetry(ctx, second.ID)
	require.NoError(t, err)

	// Rebuild from the persisted bytes alone.
	reloaded, err := New(ctx, store, zerolog.Nop(), nil)
	require.NoError(t, err)

	before := q.Snapshot()
	after := reloaded.Snapshot()
	require.Len(t, after, 2)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Type, after[i].Type)
		assert.Equal(t, before[i].Entity, after[i].Entity)
		assert.Equal(t, before[i].EntityID, after[i].EntityID)
		assert.Equal(t, before[i].Priority, after[i].Priority)
		assert.Equal(t, before[i].Dependencies, after[i].Dependencies)
		assert.Equal(t, before[i].RetryCount, after[i].RetryCount)
		assert.Equal(t, before[i].MaxRetries, after[i].MaxRetries)
		assert.JSONEq(t, string(before[i].Data), string(after[i].Data))
		assert.True(t, before[i].Timestamp.Equal(after[i].Timestamp))
	}
}

func TestRemove(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, models.ActionDelete, "expense", nil, Options{EntityID: "exp-1"}, 3)
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, a.ID))
	assert.Equal(t, 0, q.Len())
	assert.ErrorIs(t, q.Remove(ctx, a.ID), ErrActionNotFound)
}

func TestUpdatePatch(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, models.ActionUpdate, "client", nil, Options{EntityID: "c-1"}, 3)
	require.NoError(t, err)

	high := models.PriorityHigh
	zero := 0
	err = q.Update(ctx, a.ID, Patch{
		Data:       json.RawMessage(`{"name":"ACME"}`),
		Priority:   &high,
		RetryCount: &zero,
	})
	require.NoError(t, err)

	got, ok := q.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.JSONEq(t, `{"name":"ACME"}`, string(got.Data))

	assert.ErrorIs(t, q.Update(ctx, "missing", Patch{}), ErrActionNotFound)
}

func TestIncrementRetryClamped(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, models.ActionCreate, "expense", nil, Options{MaxRetries: 2}, 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = q.IncrementRetry(ctx, a.ID)
		require.NoError(t, err)
	}
	got, _ := q.Get(a.ID)
	// Never exceeds the budget; at the boundary the action stays queued.
	assert.Equal(t, 2, got.RetryCount)
	assert.True(t, got.Failed())
	assert.Equal(t, 1, q.Len())
}

func TestFailedHelpers(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	healthy, err := q.Enqueue(ctx, models.ActionCreate, "expense", nil, Options{MaxRetries: 3}, 3)
	require.NoError(t, err)
	stuck, err := q.Enqueue(ctx, models.ActionCreate, "expense", nil, Options{MaxRetries: 1}, 3)
	require.NoError(t, err)
	_, err = q.IncrementRetry(ctx, stuck.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, q.FailedCount())

	reset := q.ResetFailed(ctx)
	assert.Equal(t, 1, reset)
	assert.Equal(t, 0, q.FailedCount())

	_, err = q.IncrementRetry(ctx, stuck.ID)
	require.NoError(t, err)
	removed := q.ClearFailed(ctx)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Contains(healthy.ID))
	assert.False(t, q.Contains(stuck.ID))
}

func TestPersistenceIsBestEffort(t *testing.T) {
	store := storage.NewMemoryStore()
	q, err := New(context.Background(), store, zerolog.Nop(), nil)
	require.NoError(t, err)

	// Closing a memory store is a no-op, so simulate divergence by writing
	// garbage to the actions key after enqueue: the in-memory queue is
	// authoritative until the next successful persist.
	ctx := context.Background()
	a, err := q.Enqueue(ctx, models.ActionCreate, "expense", nil, Options{}, 3)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, models.KeyActions, []byte("garbage")))

	assert.True(t, q.Contains(a.ID))
	require.NoError(t, q.Remove(ctx, a.ID))

	raw, ok, err := store.Get(ctx, models.KeyActions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(raw))
}
