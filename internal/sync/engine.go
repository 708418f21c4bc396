// Package sync implements the offline action queue's synchronization
// engine: it decides when a pass over the queue runs, drains it through the
// registered entity handlers, and publishes observable status. At most one
// pass runs at any instant, enforced with an atomic compare-and-swap.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	gosync "sync"
	"sync/atomic"
	"time"

	"budgetsync/internal/domain"
	"budgetsync/internal/metrics"
	"budgetsync/internal/models"
	"budgetsync/internal/queue"

	"github.com/rs/zerolog"
)

// Deps are the constructor-injected collaborators. Store, Monitor and
// Registry are required; Clock and DebounceDelay have defaults.
type Deps struct {
	Store    domain.Store
	Monitor  domain.NetworkMonitor
	Registry *Registry
	Logger   zerolog.Logger

	// Defaults seed the runtime config when the store holds none yet.
	Defaults models.SyncConfig

	// Clock defaults to time.Now.
	Clock func() time.Time

	// DebounceDelay is the wait after a reconnect before syncing.
	DebounceDelay time.Duration
}

// Engine owns the action queue and is the only component that mutates it.
type Engine struct {
	store    domain.Store
	monitor  domain.NetworkMonitor
	registry *Registry
	logger   zerolog.Logger
	now      func() time.Time

	queue *queue.Queue
	pub   *publisher

	cfgMu gosync.RWMutex
	cfg   models.SyncConfig

	syncing atomic.Bool
	closed  atomic.Bool

	lastMu   gosync.RWMutex
	lastSync *time.Time

	tickerMu   gosync.Mutex
	tickerStop chan struct{}

	debounceMu    gosync.Mutex
	debounce      *time.Timer
	debounceDelay time.Duration

	unsubscribe func()
	wg          gosync.WaitGroup
}

// New loads persisted state (config, queue, last-sync mark), subscribes to
// the network monitor, and starts the auto-sync ticker when enabled.
func New(ctx context.Context, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("sync: store is required")
	}
	if deps.Monitor == nil {
		return nil, errors.New("sync: network monitor is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("sync: handler registry is required")
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	debounce := deps.DebounceDelay
	if debounce <= 0 {
		debounce = models.ReconnectDebounce
	}

	e := &Engine{
		store:         deps.Store,
		monitor:       deps.Monitor,
		registry:      deps.Registry,
		logger:        deps.Logger,
		now:           now,
		pub:           newPublisher(deps.Logger),
		debounceDelay: debounce,
	}

	cfg, err := e.loadConfig(ctx, deps.Defaults)
	if err != nil {
		return nil, err
	}
	e.cfg = cfg

	q, err := queue.New(ctx, deps.Store, deps.Logger, now)
	if err != nil {
		return nil, err
	}
	e.queue = q

	e.loadLastSync(ctx)

	e.unsubscribe = deps.Monitor.Subscribe(e.onNetworkChange)

	if cfg.AutoSync {
		e.StartAutoSync()
	}

	e.logger.Info().
		Int("queued_actions", q.Len()).
		Bool("auto_sync", cfg.AutoSync).
		Msg("sync engine initialized")
	return e, nil
}

func (e *Engine) loadConfig(ctx context.Context, defaults models.SyncConfig) (models.SyncConfig, error) {
	zero := models.SyncConfig{}
	if defaults == zero {
		defaults = models.DefaultSyncConfig()
	}
	if err := defaults.Validate(); err != nil {
		return zero, err
	}

	raw, ok, err := e.store.Get(ctx, models.KeyConfig)
	if err != nil {
		e.logger.Error().Err(err).Msg("load config, using defaults")
		return defaults, nil
	}
	if !ok {
		return defaults, nil
	}
	var cfg models.SyncConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		e.logger.Error().Err(err).Msg("decode stored config, using defaults")
		return defaults, nil
	}
	if err := cfg.Validate(); err != nil {
		e.logger.Error().Err(err).Msg("stored config invalid, using defaults")
		return defaults, nil
	}
	return cfg, nil
}

func (e *Engine) loadLastSync(ctx context.Context) {
	raw, ok, err := e.store.Get(ctx, models.KeyLastSync)
	if err != nil || !ok {
		return
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		e.logger.Error().Err(err).Msg("decode last sync mark")
		return
	}
	e.lastSync = &t
}

// AddAction records a local mutation and, when online and idle, kicks off a
// sync pass in the background. Returns the new action's id.
func (e *Engine) AddAction(ctx context.Context, actionType, entity string, data json.RawMessage, opts queue.Options) (string, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}
	cfg := e.Config()
	action, err := e.queue.Enqueue(ctx, actionType, entity, data, opts, cfg.MaxRetries)
	if err != nil {
		return "", err
	}
	e.publishStatus()

	if e.monitor.IsOnline() && !e.syncing.Load() {
		e.goSync()
	}
	return action.ID, nil
}

// RemoveAction drops a queued action explicitly.
func (e *Engine) RemoveAction(ctx context.Context, id string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := e.queue.Remove(ctx, id); err != nil {
		return err
	}
	e.publishStatus()
	return nil
}

// UpdateAction patches a queued action in place.
func (e *Engine) UpdateAction(ctx context.Context, id string, patch queue.Patch) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := e.queue.Update(ctx, id, patch); err != nil {
		return err
	}
	e.publishStatus()
	return nil
}

// SyncPendingActions runs one pass over the queue. It quietly does nothing
// when offline or when another pass is already in flight; concurrent
// triggers collapse into a single pass.
func (e *Engine) SyncPendingActions(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.monitor.IsOnline() {
		return nil
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	e.publishStatus()

	stopped := e.runPass(ctx)
	if !stopped {
		e.setLastSync(ctx, e.now())
	}

	e.syncing.Store(false)
	e.publishStatus()
	return nil
}

// ForceSync is the manual trigger: it fails fast with ErrOffline instead of
// silently queueing when there is no connectivity.
func (e *Engine) ForceSync(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.monitor.IsOnline() {
		return ErrOffline
	}
	return e.SyncPendingActions(ctx)
}

// RetryFailedActions resets the retry count of every action at its budget
// and attempts a sync. Returns how many actions were reset.
func (e *Engine) RetryFailedActions(ctx context.Context) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	n := e.queue.ResetFailed(ctx)
	e.publishStatus()
	if n > 0 && e.monitor.IsOnline() {
		if err := e.SyncPendingActions(ctx); err != nil {
			return n, err
		}
	}
	return n, nil
}

// ClearFailedActions permanently drops every action at its retry budget.
func (e *Engine) ClearFailedActions(ctx context.Context) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	n := e.queue.ClearFailed(ctx)
	if n > 0 {
		e.publishStatus()
	}
	return n, nil
}

// StartAutoSync starts the periodic ticker. Ticks only trigger a pass while
// AutoSync is enabled and the queue is non-empty.
func (e *Engine) StartAutoSync() {
	e.tickerMu.Lock()
	defer e.tickerMu.Unlock()
	e.startTickerLocked(e.Config().SyncInterval())
}

func (e *Engine) startTickerLocked(interval time.Duration) {
	if e.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	e.tickerStop = stop

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !e.Config().AutoSync {
					continue
				}
				if e.queue.Len() == 0 {
					continue
				}
				_ = e.SyncPendingActions(context.Background())
			}
		}
	}()
}

// StopAutoSync stops the ticker. Queue contents are untouched.
func (e *Engine) StopAutoSync() {
	e.tickerMu.Lock()
	defer e.tickerMu.Unlock()
	if e.tickerStop != nil {
		close(e.tickerStop)
		e.tickerStop = nil
	}
}

// restartTicker applies a changed interval or auto-sync flag.
func (e *Engine) restartTicker(cfg models.SyncConfig) {
	e.tickerMu.Lock()
	defer e.tickerMu.Unlock()
	if e.tickerStop != nil {
		close(e.tickerStop)
		e.tickerStop = nil
	}
	if cfg.AutoSync {
		e.startTickerLocked(cfg.SyncInterval())
	}
}

// Config returns the current runtime config.
func (e *Engine) Config() models.SyncConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// UpdateConfig validates and applies a partial config update atomically: an
// invalid patch changes nothing. Interval or auto-sync changes restart the
// ticker so a stale period never survives.
func (e *Engine) UpdateConfig(ctx context.Context, patch models.SyncConfigPatch) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.cfgMu.Lock()
	next := e.cfg.Apply(patch)
	if err := next.Validate(); err != nil {
		e.cfgMu.Unlock()
		return err
	}
	prev := e.cfg
	e.cfg = next
	e.cfgMu.Unlock()

	raw, err := json.Marshal(next)
	if err == nil {
		err = e.store.Set(ctx, models.KeyConfig, raw)
	}
	if err != nil {
		e.logger.Error().Err(err).Msg("persist config")
	}

	if next.SyncIntervalMs != prev.SyncIntervalMs || next.AutoSync != prev.AutoSync {
		e.restartTicker(next)
	}
	e.publishStatus()
	return nil
}

// Status computes a fresh snapshot.
func (e *Engine) Status() models.SyncStatus {
	total := e.queue.Len()
	failed := e.queue.FailedCount()
	status := models.SyncStatus{
		IsOnline:       e.monitor.IsOnline(),
		IsSyncing:      e.syncing.Load(),
		PendingActions: total - failed,
		FailedActions:  failed,
		TotalActions:   total,
	}
	e.lastMu.RLock()
	if e.lastSync != nil {
		t := *e.lastSync
		status.LastSyncAt = &t
	}
	e.lastMu.RUnlock()
	return status
}

// PendingActions returns a copy of the queue contents.
func (e *Engine) PendingActions() []models.Action {
	return e.queue.Snapshot()
}

// AddStatusListener registers a listener; the returned func unsubscribes.
func (e *Engine) AddStatusListener(fn domain.StatusListener) func() {
	return e.pub.subscribe(fn)
}

// Close releases the ticker, the reconnect debounce timer and the monitor
// subscription, then waits for background passes to wind down. The store is
// owned by the caller and stays open.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancelDebounce()
	e.StopAutoSync()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.wg.Wait()
	e.logger.Info().Msg("sync engine closed")
	return nil
}

func (e *Engine) onNetworkChange(online bool) {
	if e.closed.Load() {
		return
	}
	e.logger.Info().Bool("online", online).Msg("connectivity changed")
	if online {
		e.scheduleDebouncedSync()
	} else {
		// A running pass notices between actions; new passes wait for
		// the next reconnect.
		e.cancelDebounce()
	}
	e.publishStatus()
}

// scheduleDebouncedSync arms a short timer before syncing after a reconnect
// so a flapping link does not start a pass per blip. A newer transition
// rewinds the timer.
func (e *Engine) scheduleDebouncedSync() {
	e.debounceMu.Lock()
	defer e.debounceMu.Unlock()
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.debounceDelay, func() {
		if e.closed.Load() || e.queue.Len() == 0 {
			return
		}
		_ = e.SyncPendingActions(context.Background())
	})
}

func (e *Engine) cancelDebounce() {
	e.debounceMu.Lock()
	defer e.debounceMu.Unlock()
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// goSync runs a pass in the background, tracked for Close.
func (e *Engine) goSync() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.SyncPendingActions(context.Background())
	}()
}

func (e *Engine) setLastSync(ctx context.Context, t time.Time) {
	e.lastMu.Lock()
	e.lastSync = &t
	e.lastMu.Unlock()
	if err := e.store.Set(ctx, models.KeyLastSync, []byte(t.Format(time.RFC3339Nano))); err != nil {
		e.logger.Error().Err(err).Msg("persist last sync mark")
	}
}

func (e *Engine) publishStatus() {
	status := e.Status()
	metrics.SetQueueDepth(status.TotalActions, status.FailedActions)
	e.pub.publish(status)
}
