package models

import "time"

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	ConflictClientWins = "client-wins"
	ConflictServerWins = "server-wins"
	ConflictManual     = "manual"
)

// Storage key layout. The store is a flat KV namespace shared with other
// subsystems, so everything the engine owns sits under the offline: prefix.
const (
	KeyActions  = "offline:actions"
	KeyConfig   = "offline:config"
	KeyLastSync = "offline:last_sync"
	CachePrefix = "offline:cache:"
)

const (
	// DefaultMaxRetries budget for a new action when the caller does not set one
	DefaultMaxRetries = 3

	// DefaultRetryDelay pause between consecutive attempts within one pass
	DefaultRetryDelay = time.Second

	// DefaultSyncInterval period of the auto-sync ticker
	DefaultSyncInterval = 30 * time.Second

	// ReconnectDebounce wait after the network comes back before syncing,
	// so a flapping connection does not start a pass per blip
	ReconnectDebounce = 2 * time.Second
)
