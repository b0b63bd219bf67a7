package inventory

import (
	"context"
	"strings"
	"sync"
	"time"

	"seedharvest/pkg/consumer"
	"seedharvest/pkg/logger"
)

// Lister is the part of consumer.Gateway the cache needs
type Lister interface {
	ListAll(ctx context.Context) ([]consumer.Entry, error)
}

// Cache is a TTL-refreshed set of the info-hashes the download consumer
// already holds. A refresh builds a new set and swaps it in, so readers
// never see a partially rebuilt set.
type Cache struct {
	lister Lister
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger

	mu            sync.RWMutex
	hashes        map[string]struct{}
	lastRefreshed time.Time

	// OnRefresh is called after every successful refresh
	OnRefresh func(size int)
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the cache logger
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates an empty cache. It is stale until the first refresh.
func New(lister Lister, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		lister: lister,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.NewNopLogger(),
		hashes: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "inventory")
	return c
}

// Refresh rebuilds the set from the consumer. On failure the previous set
// and timestamp are kept.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) error {
	entries, err := c.lister.ListAll(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Hash == "" {
			continue
		}
		next[strings.ToLower(e.Hash)] = struct{}{}
	}

	c.hashes = next
	c.lastRefreshed = c.now()
	c.logger.DebugWithFields("Inventory refreshed", map[string]interface{}{
		"hashes": len(next),
	})
	if c.OnRefresh != nil {
		c.OnRefresh(len(next))
	}
	return nil
}

func (c *Cache) stale() bool {
	return c.lastRefreshed.IsZero() || c.now().Sub(c.lastRefreshed) > c.ttl
}

// Contains reports whether hash is held by the consumer, refreshing first
// when the set is older than the TTL. Concurrent callers that find the set
// stale trigger a single refresh.
func (c *Cache) Contains(ctx context.Context, hash string) (bool, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))

	c.mu.RLock()
	if !c.stale() {
		_, ok := c.hashes[hash]
		c.mu.RUnlock()
		return ok, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale() {
		if err := c.refreshLocked(ctx); err != nil {
			return false, err
		}
	}
	_, ok := c.hashes[hash]
	return ok, nil
}

// RecordAdded inserts a hash the caller just handed to the consumer. It
// does not count as a refresh, so the TTL rebuild still happens on time.
func (c *Cache) RecordAdded(hash string) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.hashes[hash] = struct{}{}
}

// Len returns the number of known hashes
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}

// LastRefreshed returns the time of the last wholesale refresh
func (c *Cache) LastRefreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefreshed
}
