package whitelist

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTTL          = time.Hour
	DefaultFetchTimeout = 30 * time.Second
)

// RefreshObserver is told about every refresh attempt
type RefreshObserver interface {
	ObserveRefresh(kind string, entries int, err error)
}

// Cache serves whitelist lookups from an immutable snapshot and refreshes
// it from its source once the snapshot is older than the TTL. Only one
// caller performs a refresh; everyone else keeps reading the current
// snapshot without blocking.
type Cache struct {
	kind         Kind
	source       Source
	discriminate bool
	ttl          time.Duration
	fetchTimeout time.Duration
	observer     RefreshObserver
	logger       *zap.Logger
	now          func() time.Time

	snapshot    atomic.Pointer[Snapshot]
	lastRefresh atomic.Int64 // unix nanos, zero until the first refresh
	inProgress  atomic.Bool
}

// Option configures a Cache
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func WithObserver(o RefreshObserver) Option {
	return func(c *Cache) {
		c.observer = o
	}
}

// WithoutDiscriminator consumes every line, for sources that only hold
// entries of one kind
func WithoutDiscriminator() Option {
	return func(c *Cache) {
		c.discriminate = false
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates an empty cache; the first lookup triggers a refresh.
// A nil source yields a cache that never whitelists anything.
func NewCache(kind Kind, source Source, logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		kind:         kind,
		source:       source,
		discriminate: true,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(newSnapshot(kind))
	return c
}

// Kind returns the entry shape held by the cache
func (c *Cache) Kind() Kind {
	return c.kind
}

// Contains reports whether the key is whitelisted, refreshing first when the
// snapshot is stale and no other refresh is running
func (c *Cache) Contains(fields ...string) bool {
	c.refreshIfStale()
	return c.snapshot.Load().Contains(fields...)
}

// Snapshot returns the snapshot currently being served
func (c *Cache) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

func (c *Cache) stale() bool {
	return c.now().UnixNano()-c.lastRefresh.Load() > c.ttl.Nanoseconds()
}

func (c *Cache) refreshIfStale() {
	if c.source == nil || !c.stale() {
		return
	}
	if !c.inProgress.CompareAndSwap(false, true) {
		return
	}
	defer c.inProgress.Store(false)

	// a refresh may have completed between the staleness check and the CAS
	if !c.stale() {
		return
	}
	defer func() {
		c.lastRefresh.Store(c.now().UnixNano())
	}()

	if err := c.Refresh(context.Background()); err != nil {
		c.logger.Error("Failed to refresh whitelist; keeping previous entries",
			zap.String("kind", string(c.kind)),
			zap.String("source", c.source.Name()),
			zap.Error(err))
	}
}

// Refresh fetches and parses the source and publishes the result. On error
// the current snapshot is left untouched.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.source == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	snapshot, err := c.load(ctx)
	if c.observer != nil {
		entries := 0
		if snapshot != nil {
			entries = snapshot.Len()
		}
		c.observer.ObserveRefresh(string(c.kind), entries, err)
	}
	if err != nil {
		return err
	}

	c.snapshot.Store(snapshot)
	c.logger.Info("Successfully updated the whitelist",
		zap.String("kind", string(c.kind)),
		zap.String("source", c.source.Name()),
		zap.Int("entries", snapshot.Len()))

	return nil
}

func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	body, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch whitelist from %s: %w", c.source.Name(), err)
	}
	defer body.Close()

	return Parse(body, c.kind, c.discriminate)
}
