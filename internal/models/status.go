package models

import "time"

// SyncStatus is a derived snapshot of the engine state. It is recomputed on
// every change and pushed to listeners; it is never persisted.
type SyncStatus struct {
	IsOnline       bool       `json:"is_online"`
	IsSyncing      bool       `json:"is_syncing"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	PendingActions int        `json:"pending_actions"` // total minus failed
	FailedActions  int        `json:"failed_actions"`  // at retry budget
	TotalActions   int        `json:"total_actions"`
}
