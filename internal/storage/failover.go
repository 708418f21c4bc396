package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"budgetsync/internal/domain"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long the primary stays benched after an error
// before a call probes it again.
const recoveryInterval = time.Minute

// FailoverStore degrades to the fallback when the primary store errors, so
// a broken disk or unreachable Redis never surfaces as a hard failure to the
// queue. State written during an outage may diverge from the primary until
// it recovers; the engine logs that and carries on with in-memory state.
type FailoverStore struct {
	primary  domain.Store
	fallback domain.Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverStore(primary, fallback domain.Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *FailoverStore) markDown(err error) {
	s.logger.Error().Err(err).Msg("Primary store failed, falling back to memory")
	s.isDown.Store(true)
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()
}

// shouldProbe reports whether enough time passed to retry the primary.
func (s *FailoverStore) shouldProbe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastCheck) < recoveryInterval {
		return false
	}
	s.lastCheck = time.Now()
	return true
}

func (s *FailoverStore) recover() {
	s.isDown.Store(false)
	s.logger.Info().Msg("Primary store recovered")
}

func (s *FailoverStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.isDown.Load() {
		value, ok, err := s.primary.Get(ctx, key)
		if err == nil {
			return value, ok, nil
		}
		s.markDown(err)
	} else if s.shouldProbe() {
		value, ok, err := s.primary.Get(ctx, key)
		if err == nil {
			s.recover()
			return value, ok, nil
		}
	}
	return s.fallback.Get(ctx, key)
}

func (s *FailoverStore) Set(ctx context.Context, key string, value []byte) error {
	if !s.isDown.Load() {
		err := s.primary.Set(ctx, key, value)
		if err == nil {
			// Mirror into the fallback so reads stay coherent if the
			// primary drops right after.
			_ = s.fallback.Set(ctx, key, value)
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Set(ctx, key, value)
}

func (s *FailoverStore) Delete(ctx context.Context, key string) error {
	if !s.isDown.Load() {
		err := s.primary.Delete(ctx, key)
		if err == nil {
			_ = s.fallback.Delete(ctx, key)
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Delete(ctx, key)
}

func (s *FailoverStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if !s.isDown.Load() {
		keys, err := s.primary.Keys(ctx, prefix)
		if err == nil {
			return keys, nil
		}
		s.markDown(err)
	}
	return s.fallback.Keys(ctx, prefix)
}

func (s *FailoverStore) Close() error {
	err := s.primary.Close()
	if ferr := s.fallback.Close(); err == nil {
		err = ferr
	}
	return err
}
