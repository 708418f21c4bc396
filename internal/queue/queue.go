package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetsync/internal/domain"
	"budgetsync/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrActionNotFound = errors.New("queue: action not found")

// Options tunes a single enqueue.
type Options struct {
	EntityID     string
	Priority     string   // defaults to medium
	Dependencies []string // action IDs that must clear the queue first
	MaxRetries   int      // <= 0 means "use the default passed to Enqueue"
}

// Patch is a partial in-place update of a queued action.
type Patch struct {
	Data         json.RawMessage
	Priority     *string
	Dependencies *[]string
	RetryCount   *int
}

// Queue is the durable ordered collection of pending actions. The persisted
// JSON array is the source of truth; the in-memory slice is a cache rebuilt
// from it at startup. All mutations persist before returning.
type Queue struct {
	mu      sync.RWMutex
	store   domain.Store
	logger  zerolog.Logger
	now     func() time.Time
	actions []*models.Action
}

// New loads the persisted queue from the store. A missing record means an
// empty queue; a corrupt one is an error so we never silently drop actions.
func New(ctx context.Context, store domain.Store, logger zerolog.Logger, now func() time.Time) (*Queue, error) {
	if now == nil {
		now = time.Now
	}
	q := &Queue{store: store, logger: logger, now: now}

	raw, ok, err := store.Get(ctx, models.KeyActions)
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	if ok && len(raw) > 0 {
		var actions []*models.Action
		if err := json.Unmarshal(raw, &actions); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
		q.actions = actions
	}
	return q, nil
}

// Enqueue records a new action and persists it synchronously.
// defaultMaxRetries applies when opts.MaxRetries is not set; the budget is
// captured per-action so later config changes do not reshape it.
func (q *Queue) Enqueue(ctx context.Context, actionType, entity string, data json.RawMessage, opts Options, defaultMaxRetries int) (*models.Action, error) {
	if !models.ValidActionType(actionType) {
		return nil, fmt.Errorf("queue: invalid action type %q", actionType)
	}
	if entity == "" {
		return nil, errors.New("queue: entity is required")
	}
	priority := opts.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, fmt.Errorf("queue: invalid priority %q", priority)
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	action := &models.Action{
		ID:           uuid.NewString(),
		Type:         actionType,
		Entity:       entity,
		EntityID:     opts.EntityID,
		Data:         append(json.RawMessage(nil), data...),
		Timestamp:    q.now(),
		MaxRetries:   maxRetries,
		Priority:     priority,
		Dependencies: append([]string(nil), opts.Dependencies...),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append(q.actions, action)
	q.persistLocked(ctx)

	out := action.Clone()
	return &out, nil
}

// Remove drops an action, normally because it synced successfully.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, a := range q.actions {
		if a.ID == id {
			q.actions = append(q.actions[:i], q.actions[i+1:]...)
			q.persistLocked(ctx)
			return nil
		}
	}
	return ErrActionNotFound
}

// Update applies a partial patch to a queued action.
func (q *Queue) Update(ctx context.Context, id string, patch Patch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	a := q.findLocked(id)
	if a == nil {
		return ErrActionNotFound
	}
	if patch.Data != nil {
		a.Data = append(json.RawMessage(nil), patch.Data...)
	}
	if patch.Priority != nil {
		if !models.ValidPriority(*patch.Priority) {
			return fmt.Errorf("queue: invalid priority %q", *patch.Priority)
		}
		a.Priority = *patch.Priority
	}
	if patch.Dependencies != nil {
		a.Dependencies = append([]string(nil), (*patch.Dependencies)...)
	}
	if patch.RetryCount != nil {
		if *patch.RetryCount < 0 {
			return fmt.Errorf("queue: retry count must be >= 0")
		}
		a.RetryCount = *patch.RetryCount
	}
	q.persistLocked(ctx)
	return nil
}

// IncrementRetry bumps the retry count after a failed attempt, clamped to
// the action's budget, and returns the new count.
func (q *Queue) IncrementRetry(ctx context.Context, id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a := q.findLocked(id)
	if a == nil {
		return 0, ErrActionNotFound
	}
	if a.RetryCount < a.MaxRetries {
		a.RetryCount++
	}
	q.persistLocked(ctx)
	return a.RetryCount, nil
}

// Get returns a copy of the action with the given id.
func (q *Queue) Get(id string) (models.Action, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if a := q.findLocked(id); a != nil {
		return a.Clone(), true
	}
	return models.Action{}, false
}

// Contains reports whether an action id is still present anywhere in the
// queue. Dependency checks rely on this.
func (q *Queue) Contains(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.findLocked(id) != nil
}

// Snapshot returns a copy of all queued actions in insertion order.
func (q *Queue) Snapshot() []models.Action {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]models.Action, 0, len(q.actions))
	for _, a := range q.actions {
		out = append(out, a.Clone())
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.actions)
}

// FailedCount counts actions at their retry budget.
func (q *Queue) FailedCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, a := range q.actions {
		if a.Failed() {
			n++
		}
	}
	return n
}

// ResetFailed zeroes the retry count of every failed action so the next
// pass picks them up again. Returns how many were reset.
func (q *Queue) ResetFailed(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, a := range q.actions {
		if a.Failed() {
			a.RetryCount = 0
			n++
		}
	}
	if n > 0 {
		q.persistLocked(ctx)
	}
	return n
}

// ClearFailed permanently drops every failed action. Returns how many were
// removed.
func (q *Queue) ClearFailed(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.actions[:0]
	n := 0
	for _, a := range q.actions {
		if a.Failed() {
			n++
			continue
		}
		kept = append(kept, a)
	}
	q.actions = kept
	if n > 0 {
		q.persistLocked(ctx)
	}
	return n
}

// Replace swaps the whole queue content, used by backup import.
func (q *Queue) Replace(ctx context.Context, actions []models.Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = q.actions[:0]
	for i := range actions {
		a := actions[i].Clone()
		q.actions = append(q.actions, &a)
	}
	q.persistLocked(ctx)
}

func (q *Queue) findLocked(id string) *models.Action {
	for _, a := range q.actions {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// persistLocked writes the full array. A storage failure is logged and the
// in-memory state kept, so the queue may diverge from disk until the next
// successful write.
func (q *Queue) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(q.actions)
	if err != nil {
		q.logger.Error().Err(err).Msg("encode actions")
		return
	}
	if err := q.store.Set(ctx, models.KeyActions, raw); err != nil {
		q.logger.Error().Err(err).Msg("persist actions")
	}
}
