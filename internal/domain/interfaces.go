package domain

import (
	"context"

	"budgetsync/internal/models"
)

// Store is the durable key-value primitive the engine persists through.
// Writes complete before the call returns; the stored bytes are the single
// source of truth and in-memory state is rebuilt from them at startup.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// NetworkMonitor reports connectivity and notifies on transitions. Subscribe
// returns an unsubscribe func; callbacks fire on changes only.
type NetworkMonitor interface {
	Subscribe(fn func(online bool)) (unsubscribe func())
	IsOnline() bool
}

// Handler executes one queued action against the remote API for its entity
// kind. Request timeouts are the handler's responsibility, not the engine's.
type Handler interface {
	Execute(ctx context.Context, action *models.Action) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, action *models.Action) error

func (f HandlerFunc) Execute(ctx context.Context, action *models.Action) error {
	return f(ctx, action)
}

// StatusListener receives a fresh status snapshot after every change.
type StatusListener func(status models.SyncStatus)
