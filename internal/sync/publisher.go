package sync

import (
	gosync "sync"

	"budgetsync/internal/domain"
	"budgetsync/internal/models"

	"github.com/rs/zerolog"
)

// publisher fans status snapshots out to registered listeners. Delivery is
// synchronous; a panicking listener is logged and must not starve the rest.
type publisher struct {
	mu        gosync.RWMutex
	logger    zerolog.Logger
	listeners map[int]domain.StatusListener
	nextID    int
}

func newPublisher(logger zerolog.Logger) *publisher {
	return &publisher{
		logger:    logger,
		listeners: make(map[int]domain.StatusListener),
	}
}

func (p *publisher) subscribe(fn domain.StatusListener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *publisher) publish(status models.SyncStatus) {
	p.mu.RLock()
	fns := make([]domain.StatusListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		p.deliver(fn, status)
	}
}

func (p *publisher) deliver(fn domain.StatusListener, status models.SyncStatus) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("status listener panicked")
		}
	}()
	fn(status)
}
