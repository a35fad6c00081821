// Package preload keeps warm snapshots of slow backend queries so views
// open instantly. Each key registers a loader; snapshots refresh on demand,
// when stale reads miss the TTL, and on a background cron schedule.
package preload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"agentdesk/internal/domain"
)

// Loader fetches a fresh snapshot for one key.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	loader    Loader
	value     any
	fetchedAt time.Time
	err       error
}

// Store is the preload cache. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration

	cron   *cron.Cron
	bus    domain.EventBus
	logger *slog.Logger
}

// New creates an empty cache. ttl bounds snapshot freshness for Get.
func New(ttl time.Duration, bus domain.EventBus, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		bus:     bus,
		logger:  logger,
	}
}

// Register binds a loader to key. Registering an existing key replaces the
// loader and discards the old snapshot.
func (s *Store) Register(key string, loader Loader) {
	s.mu.Lock()
	s.entries[key] = &entry{loader: loader}
	s.mu.Unlock()
}

// Get returns the cached snapshot for key. When the snapshot is missing or
// older than the TTL it is refreshed synchronously first.
func (s *Store) Get(ctx context.Context, key string) (any, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	var fresh bool
	if ok {
		fresh = !e.fetchedAt.IsZero() && time.Since(e.fetchedAt) < s.ttl && e.err == nil
	}
	var value any
	var err error
	if ok && fresh {
		value, err = e.value, e.err
	}
	s.mu.RUnlock()

	if !ok {
		return nil, domain.WrapOp("preload.Get", domain.ErrNotFound)
	}
	if fresh {
		return value, err
	}
	if err := s.Refresh(ctx, key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].value, nil
}

// Peek returns whatever snapshot is cached for key without refreshing, plus
// whether one exists. Stale values are returned as-is.
func (s *Store) Peek(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.fetchedAt.IsZero() {
		return nil, false
	}
	return e.value, true
}

// Refresh reloads one key immediately and publishes preload.refreshed on
// success.
func (s *Store) Refresh(ctx context.Context, key string) error {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return domain.WrapOp("preload.Refresh", domain.ErrNotFound)
	}

	value, err := e.loader(ctx)

	s.mu.Lock()
	// The entry may have been re-registered while the loader ran; only a
	// still-current entry takes the result.
	if cur, still := s.entries[key]; still && cur == e {
		if err == nil {
			e.value = value
			e.fetchedAt = time.Now()
		}
		e.err = err
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("preload refresh failed", "key", key, "error", err)
		return domain.WrapOp("preload.Refresh", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, domain.NewEvent(domain.EventPreloadRefreshed, map[string]string{"key": key}))
	}
	return nil
}

// RefreshAll reloads every registered key. Individual failures are logged
// and skipped; the method never aborts part way.
func (s *Store) RefreshAll(ctx context.Context) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	for _, k := range keys {
		if ctx.Err() != nil {
			return
		}
		_ = s.Refresh(ctx, k)
	}
}

// StartSchedule begins background refreshes on the given cron spec, e.g.
// "@every 5m". Returns an error for an unparsable spec.
func (s *Store) StartSchedule(ctx context.Context, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.RefreshAll(ctx) }); err != nil {
		return domain.WrapOp("preload.StartSchedule", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// StopSchedule halts background refreshes and waits for a running one.
func (s *Store) StopSchedule() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
