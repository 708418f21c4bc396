package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"budgetsync/internal/models"
)

// CacheData stores a payload for lightweight offline reads, stamped with
// the write time so reads can apply a max-age filter.
func (e *Engine) CacheData(ctx context.Context, key string, data json.RawMessage) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return fmt.Errorf("sync: cache key is required")
	}
	entry := models.CacheEntry{Data: data, Timestamp: e.now()}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return e.store.Set(ctx, models.CachePrefix+key, raw)
}

// CachedData returns the cached payload for key, or ok=false when absent or
// older than maxAge. maxAge <= 0 disables the staleness filter.
func (e *Engine) CachedData(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrClosed
	}
	raw, ok, err := e.store.Get(ctx, models.CachePrefix+key)
	if err != nil || !ok {
		return nil, false, err
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	if entry.Stale(e.now(), maxAge) {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// ClearCache removes one cached entry, or every entry when key is empty.
func (e *Engine) ClearCache(ctx context.Context, key string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if key != "" {
		return e.store.Delete(ctx, models.CachePrefix+key)
	}
	keys, err := e.store.Keys(ctx, models.CachePrefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.store.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
