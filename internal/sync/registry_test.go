package sync

import (
	"context"
	"errors"
	"testing"

	"budgetsync/internal/domain"
	"budgetsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	noop := domain.HandlerFunc(func(ctx context.Context, a *models.Action) error { return nil })

	require.NoError(t, r.Register("expense", noop))
	assert.Error(t, r.Register("expense", noop), "duplicate registration must fail")
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("client", nil))

	assert.ElementsMatch(t, []string{"expense"}, r.Entities())
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	var got *models.Action
	require.NoError(t, r.Register("expense", domain.HandlerFunc(func(ctx context.Context, a *models.Action) error {
		got = a
		return nil
	})))

	action := &models.Action{ID: "a-1", Entity: "expense", Type: models.ActionCreate}
	require.NoError(t, r.Execute(context.Background(), action))
	assert.Equal(t, "a-1", got.ID)

	err := r.Execute(context.Background(), &models.Action{Entity: "invoice"})
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}
