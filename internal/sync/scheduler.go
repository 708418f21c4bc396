package sync

import (
	"context"
	"sort"

	"budgetsync/internal/metrics"
	"budgetsync/internal/models"
)

// SelectEligible computes the ordered slice of actions a pass will attempt:
// retry budget not exhausted, no dependency still present anywhere in the
// queue, sorted by priority (high first) with creation time as tiebreaker.
func SelectEligible(all []models.Action, policy RetryPolicy) []models.Action {
	present := make(map[string]bool, len(all))
	for i := range all {
		present[all[i].ID] = true
	}

	selected := make([]models.Action, 0, len(all))
	for i := range all {
		a := all[i]
		if !policy.Eligible(&a) {
			continue
		}
		if blocked(&a, present) {
			continue
		}
		selected = append(selected, a)
	}

	// Stable sort keeps insertion order for actions created within the
	// same clock tick.
	sort.SliceStable(selected, func(i, j int) bool {
		ri, rj := models.PriorityRank(selected[i].Priority), models.PriorityRank(selected[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})
	return selected
}

// blocked reports whether any dependency has not cleared the queue yet.
// Presence is all that is checked: a dependency stuck at its retry budget
// blocks its dependents until an operator retries or clears it.
func blocked(a *models.Action, present map[string]bool) bool {
	for _, dep := range a.Dependencies {
		if present[dep] {
			return true
		}
	}
	return false
}

// runPass drains the selected actions one at a time, strictly sequentially,
// so no two mutations are ever in flight together and execution order is
// exactly the selection order. Individual failures do not abort the pass;
// going offline does, between actions. Returns true if the pass stopped
// before reaching the end of the selection.
func (e *Engine) runPass(ctx context.Context) (stopped bool) {
	policy := PolicyFromConfig(e.Config())
	selected := SelectEligible(e.queue.Snapshot(), policy)
	pacer := policy.Pacer()

	for i := range selected {
		if e.closed.Load() || ctx.Err() != nil {
			stopped = true
			break
		}
		if !e.monitor.IsOnline() {
			e.logger.Info().Int("remaining", len(selected)-i).Msg("went offline mid-pass, stopping")
			stopped = true
			break
		}
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				stopped = true
				break
			}
		}

		// The action may have been removed or patched since selection.
		action, ok := e.queue.Get(selected[i].ID)
		if !ok {
			continue
		}
		e.executeOne(ctx, &action)
	}

	result := "completed"
	if stopped {
		result = "stopped"
	}
	metrics.IncPass(result)
	return stopped
}

// executeOne attempts a single action: success removes it, failure burns
// one unit of retry budget. Either way the new state is persisted and
// published before the next action starts.
func (e *Engine) executeOne(ctx context.Context, action *models.Action) {
	err := e.registry.Execute(ctx, action)
	if err != nil {
		metrics.IncAttempt(action.Entity, "failure")
		count, incErr := e.queue.IncrementRetry(ctx, action.ID)
		if incErr != nil {
			e.logger.Error().Err(incErr).Str("action_id", action.ID).Msg("record failed attempt")
		}
		e.logger.Warn().
			Err(err).
			Str("action_id", action.ID).
			Str("entity", action.Entity).
			Int("retry_count", count).
			Int("max_retries", action.MaxRetries).
			Msg("action execution failed")
	} else {
		metrics.IncAttempt(action.Entity, "success")
		if remErr := e.queue.Remove(ctx, action.ID); remErr != nil {
			e.logger.Error().Err(remErr).Str("action_id", action.ID).Msg("remove synced action")
		}
	}
	e.publishStatus()
}
