// Package netmon provides network connectivity monitors. The sync engine
// only consumes the domain.NetworkMonitor interface, so embedding apps can
// plug their own connectivity source instead.
package netmon

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ProbeFunc reports whether the network currently looks reachable.
type ProbeFunc func(ctx context.Context) bool

// DialProbe probes by opening a TCP connection to address.
func DialProbe(address string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// subscribers is the shared fan-out used by both monitor implementations.
type subscribers struct {
	mu     sync.Mutex
	subs   map[int]func(bool)
	nextID int
}

func (s *subscribers) add(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *subscribers) notify(online bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

// Probe polls a ProbeFunc at a fixed interval and notifies subscribers on
// transitions only.
type Probe struct {
	probe    ProbeFunc
	interval time.Duration
	logger   zerolog.Logger

	online atomic.Bool
	subs   subscribers

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewProbe(probe ProbeFunc, interval time.Duration, logger zerolog.Logger) *Probe {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Probe{
		probe:    probe,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start takes an initial snapshot synchronously, then polls until Stop.
func (m *Probe) Start(ctx context.Context) {
	m.online.Store(m.probe(ctx))
	go m.loop(ctx)
}

func (m *Probe) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			current := m.probe(ctx)
			if m.online.Swap(current) != current {
				m.logger.Info().Bool("online", current).Msg("connectivity changed")
				m.subs.notify(current)
			}
		}
	}
}

func (m *Probe) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Probe) IsOnline() bool {
	return m.online.Load()
}

func (m *Probe) Subscribe(fn func(online bool)) func() {
	return m.subs.add(fn)
}

// Manual is a monitor driven by explicit SetOnline calls. Tests use it, and
// so can hosts that already receive connectivity callbacks from the OS.
type Manual struct {
	online atomic.Bool
	subs   subscribers
}

func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online.Store(online)
	return m
}

// SetOnline updates the state and notifies subscribers if it changed.
func (m *Manual) SetOnline(online bool) {
	if m.online.Swap(online) != online {
		m.subs.notify(online)
	}
}

func (m *Manual) IsOnline() bool {
	return m.online.Load()
}

func (m *Manual) Subscribe(fn func(online bool)) func() {
	return m.subs.add(fn)
}
