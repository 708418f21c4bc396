package sync

import (
	"time"

	"budgetsync/internal/models"

	"golang.org/x/time/rate"
)

// RetryPolicy is the pure retry arithmetic of one sync pass: who is still
// eligible, and how attempts are paced.
type RetryPolicy struct {
	MaxRetries int           // default budget for newly enqueued actions
	Delay      time.Duration // uniform pause between attempts within a pass
}

// PolicyFromConfig snapshots the tunables for one pass. Budgets already
// captured on queued actions are not affected.
func PolicyFromConfig(cfg models.SyncConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Delay:      cfg.RetryDelay(),
	}
}

// Eligible reports whether the action still has retry budget left. Actions
// at the boundary stay queued but are skipped until an operator intervenes.
func (r RetryPolicy) Eligible(a *models.Action) bool {
	return a.RetryCount < a.MaxRetries
}

// Pacer returns a limiter spacing attempts Delay apart, success or failure
// alike. The pacing is uniform on purpose: it mirrors the long-standing
// behavior of pausing after every attempt, which doubles as crude rate
// limiting against the backend. Nil means no pacing.
func (r RetryPolicy) Pacer() *rate.Limiter {
	if r.Delay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(r.Delay), 1)
}
