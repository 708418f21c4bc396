package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"budgetsync/internal/models"
)

// Backup is the portable snapshot produced by Export and consumed by
// Import: the full queue, the runtime config, the last-sync mark and the
// offline read cache.
type Backup struct {
	ExportedAt time.Time                    `json:"exported_at"`
	Config     models.SyncConfig            `json:"config"`
	LastSyncAt *time.Time                   `json:"last_sync_at,omitempty"`
	Actions    []models.Action              `json:"actions"`
	Cache      map[string]models.CacheEntry `json:"cache,omitempty"`
}

// Export serializes the engine's durable state for backup or migration.
func (e *Engine) Export(ctx context.Context) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	backup := Backup{
		ExportedAt: e.now(),
		Config:     e.Config(),
		Actions:    e.queue.Snapshot(),
		Cache:      make(map[string]models.CacheEntry),
	}
	if status := e.Status(); status.LastSyncAt != nil {
		backup.LastSyncAt = status.LastSyncAt
	}

	keys, err := e.store.Keys(ctx, models.CachePrefix)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	for _, k := range keys {
		raw, ok, err := e.store.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		backup.Cache[strings.TrimPrefix(k, models.CachePrefix)] = entry
	}

	return json.MarshalIndent(backup, "", "  ")
}

// Import restores a Backup, replacing the queue, config and cache
// wholesale. An invalid backup changes nothing.
func (e *Engine) Import(ctx context.Context, data []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	if err := backup.Config.Validate(); err != nil {
		return fmt.Errorf("backup config invalid: %w", err)
	}
	for i := range backup.Actions {
		a := &backup.Actions[i]
		if a.ID == "" || !models.ValidActionType(a.Type) || a.Entity == "" {
			return fmt.Errorf("backup action %d is malformed", i)
		}
	}

	e.queue.Replace(ctx, backup.Actions)

	prev := e.Config()
	e.cfgMu.Lock()
	e.cfg = backup.Config
	e.cfgMu.Unlock()
	if raw, err := json.Marshal(backup.Config); err == nil {
		if err := e.store.Set(ctx, models.KeyConfig, raw); err != nil {
			e.logger.Error().Err(err).Msg("persist imported config")
		}
	}
	if backup.Config.SyncIntervalMs != prev.SyncIntervalMs || backup.Config.AutoSync != prev.AutoSync {
		e.restartTicker(backup.Config)
	}

	if backup.LastSyncAt != nil {
		e.setLastSync(ctx, *backup.LastSyncAt)
	}

	if err := e.ClearCache(ctx, ""); err != nil {
		e.logger.Error().Err(err).Msg("clear cache before import")
	}
	for key, entry := range backup.Cache {
		raw, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := e.store.Set(ctx, models.CachePrefix+key, raw); err != nil {
			e.logger.Error().Err(err).Str("key", key).Msg("restore cache entry")
		}
	}

	e.publishStatus()
	e.logger.Info().Int("actions", len(backup.Actions)).Msg("backup imported")
	return nil
}
