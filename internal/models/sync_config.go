package models

import (
	"fmt"
	"time"
)

// SyncConfig holds the runtime tunables of the sync engine. It is persisted
// under KeyConfig; delays travel as milliseconds on the wire.
type SyncConfig struct {
	MaxRetries         int    `json:"max_retries"`
	RetryDelayMs       int64  `json:"retry_delay_ms"`
	SyncIntervalMs     int64  `json:"sync_interval_ms"`
	AutoSync           bool   `json:"auto_sync"`
	ConflictResolution string `json:"conflict_resolution"` // stored, merge semantics not implemented
	EnableOfflineMode  bool   `json:"enable_offline_mode"`
}

// DefaultSyncConfig returns the engine defaults used when the store holds no
// config yet.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		MaxRetries:         DefaultMaxRetries,
		RetryDelayMs:       DefaultRetryDelay.Milliseconds(),
		SyncIntervalMs:     DefaultSyncInterval.Milliseconds(),
		AutoSync:           true,
		ConflictResolution: ConflictServerWins,
		EnableOfflineMode:  true,
	}
}

func (c SyncConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c SyncConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMs) * time.Millisecond
}

// Validate rejects configs that would wedge the scheduler. A rejected patch
// is never applied partially.
func (c SyncConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must be >= 0, got %d", c.RetryDelayMs)
	}
	if c.SyncIntervalMs <= 0 {
		return fmt.Errorf("sync_interval_ms must be > 0, got %d", c.SyncIntervalMs)
	}
	switch c.ConflictResolution {
	case ConflictClientWins, ConflictServerWins, ConflictManual:
	default:
		return fmt.Errorf("unknown conflict_resolution mode: %q", c.ConflictResolution)
	}
	return nil
}

// SyncConfigPatch is a partial update; nil fields keep their current value.
type SyncConfigPatch struct {
	MaxRetries         *int    `json:"max_retries,omitempty"`
	RetryDelayMs       *int64  `json:"retry_delay_ms,omitempty"`
	SyncIntervalMs     *int64  `json:"sync_interval_ms,omitempty"`
	AutoSync           *bool   `json:"auto_sync,omitempty"`
	ConflictResolution *string `json:"conflict_resolution,omitempty"`
	EnableOfflineMode  *bool   `json:"enable_offline_mode,omitempty"`
}

// Apply merges the patch into a copy of c and returns it.
func (c SyncConfig) Apply(p SyncConfigPatch) SyncConfig {
	out := c
	if p.MaxRetries != nil {
		out.MaxRetries = *p.MaxRetries
	}
	if p.RetryDelayMs != nil {
		out.RetryDelayMs = *p.RetryDelayMs
	}
	if p.SyncIntervalMs != nil {
		out.SyncIntervalMs = *p.SyncIntervalMs
	}
	if p.AutoSync != nil {
		out.AutoSync = *p.AutoSync
	}
	if p.ConflictResolution != nil {
		out.ConflictResolution = *p.ConflictResolution
	}
	if p.EnableOfflineMode != nil {
		out.EnableOfflineMode = *p.EnableOfflineMode
	}
	return out
}
