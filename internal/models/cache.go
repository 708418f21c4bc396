package models

import (
	"encoding/json"
	"time"
)

// CacheEntry wraps a cached payload with the time it was written, so reads
// can reject stale entries with a max-age filter.
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Stale reports whether the entry is older than maxAge relative to now.
// A non-positive maxAge disables the filter.
func (e CacheEntry) Stale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(e.Timestamp) > maxAge
}
