package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/portalprefs/internal/domain"
)

const (
	KindStructure = "structure"
	KindTheme     = "theme"

	descriptionRedisTTL = 1 * time.Hour

	layerMemory = "memory"
	layerRedis  = "redis"
	layerStore  = "store"
)

// CacheRecorder observes cache lookups.
type CacheRecorder interface {
	RecordHit(kind, layer string)
	RecordMiss(kind, layer string)
	RecordInvalidation()
}

// DescriptionCache is a domain.LayoutStore that serves stylesheet descriptions
// through an in-memory layer and an optional shared Redis layer before falling
// back to the wrapped store. Profile and preference calls pass straight through.
// Returned descriptions are shared between sessions and must not be modified.
type DescriptionCache struct {
	domain.LayoutStore

	rdb       goredis.Cmdable // nil disables the Redis layer
	structure *ttlCache[domain.StructureStylesheetDescription]
	theme     *ttlCache[domain.ThemeStylesheetDescription]
	loads     singleflight.Group
	recorder  CacheRecorder
	publish   func(ctx context.Context, kind string, id int) error
}

type CacheOption func(*DescriptionCache)

func WithCacheRecorder(r CacheRecorder) CacheOption {
	return func(c *DescriptionCache) { c.recorder = r }
}

// WithInvalidationPublisher broadcasts invalidations to other instances.
func WithInvalidationPublisher(rdb *goredis.Client) CacheOption {
	return func(c *DescriptionCache) {
		c.publish = func(ctx context.Context, kind string, id int) error {
			return PublishDescriptionInvalidation(ctx, rdb, kind, id)
		}
	}
}

func NewDescriptionCache(origin domain.LayoutStore, rdb goredis.Cmdable, memTTL time.Duration, clock clockwork.Clock, opts ...CacheOption) *DescriptionCache {
	c := &DescriptionCache{
		LayoutStore: origin,
		rdb:         rdb,
		structure:   newTTLCache[domain.StructureStylesheetDescription](memTTL, clock),
		theme:       newTTLCache[domain.ThemeStylesheetDescription](memTTL, clock),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DescriptionCache) GetStructureStylesheetDescription(ctx context.Context, id int) (*domain.StructureStylesheetDescription, error) {
	return lookup(ctx, c, KindStructure, id, c.structure, c.LayoutStore.GetStructureStylesheetDescription)
}

func (c *DescriptionCache) GetThemeStylesheetDescription(ctx context.Context, id int) (*domain.ThemeStylesheetDescription, error) {
	return lookup(ctx, c, KindTheme, id, c.theme, c.LayoutStore.GetThemeStylesheetDescription)
}

func lookup[T any](ctx context.Context, c *DescriptionCache, kind string, id int, mem *ttlCache[T], load func(context.Context, int) (*T, error)) (*T, error) {
	// Layer 1: in-memory cache
	if d, ok := mem.get(id); ok {
		c.hit(kind, layerMemory)
		return d, nil
	}
	c.miss(kind, layerMemory)

	key := descriptionCacheKey(kind, id)
	v, err, _ := c.loads.Do(key, func() (any, error) {
		// Layer 2: Redis cache
		if d, ok := getCached[T](ctx, c.rdb, key); ok {
			c.hit(kind, layerRedis)
			mem.set(id, d)
			return d, nil
		}
		if c.rdb != nil {
			c.miss(kind, layerRedis)
		}

		// Layer 3: store
		d, err := load(ctx, id)
		if err != nil {
			return nil, err
		}
		c.hit(kind, layerStore)
		mem.set(id, d)
		writeCache(ctx, c.rdb, key, d)
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s stylesheet description lookup failed: %w", kind, err)
	}
	return v.(*T), nil
}

// Invalidate evicts one description from memory and Redis and, when configured,
// tells the other instances to do the same.
func (c *DescriptionCache) Invalidate(ctx context.Context, kind string, id int) error {
	if err := c.invalidateLocal(ctx, kind, id); err != nil {
		return err
	}
	if c.publish != nil {
		return c.publish(ctx, kind, id)
	}
	return nil
}

func (c *DescriptionCache) invalidateLocal(ctx context.Context, kind string, id int) error {
	switch kind {
	case KindStructure:
		c.structure.invalidate(id)
	case KindTheme:
		c.theme.invalidate(id)
	default:
		return fmt.Errorf("unknown stylesheet kind %q", kind)
	}
	if c.recorder != nil {
		c.recorder.RecordInvalidation()
	}

	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, descriptionCacheKey(kind, id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate description cache: %w", err)
	}
	return nil
}

// StartEvictionTimer runs a periodic goroutine that evicts expired in-memory entries.
// Returns a stop function that should be deferred.
func (c *DescriptionCache) StartEvictionTimer(interval time.Duration, clock clockwork.Clock) func() {
	ticker := clock.NewTicker(interval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.Chan():
				evicted := c.structure.evictExpired() + c.theme.evictExpired()
				if evicted > 0 {
					slog.Debug("Evicted expired description cache entries", "count", evicted)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (c *DescriptionCache) hit(kind, layer string) {
	if c.recorder != nil {
		c.recorder.RecordHit(kind, layer)
	}
}

func (c *DescriptionCache) miss(kind, layer string) {
	if c.recorder != nil {
		c.recorder.RecordMiss(kind, layer)
	}
}

func writeCache(ctx context.Context, rdb goredis.Cmdable, key string, v any) {
	if rdb == nil {
		return
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "Failed to marshal description for Redis cache", "key", key, "error", err)
		return
	}
	if err := rdb.Set(ctx, key, encoded, descriptionRedisTTL).Err(); err != nil {
		slog.WarnContext(ctx, "Failed to populate Redis description cache", "key", key, "error", err)
	}
}

func getCached[T any](ctx context.Context, rdb goredis.Cmdable, key string) (*T, bool) {
	if rdb == nil {
		return nil, false
	}
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.WarnContext(ctx, "Redis description cache GET failed", "key", key, "error", err)
		}
		return nil, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		slog.WarnContext(ctx, "Failed to unmarshal cached description", "key", key, "error", err)
		return nil, false
	}
	return &v, true
}

func descriptionCacheKey(kind string, id int) string {
	return "stylesheet_description:" + kind + ":" + strconv.Itoa(id)
}

// ttlCache is an in-memory L1 cache with TTL-based expiry.
type ttlCache[T any] struct {
	mu      sync.RWMutex
	entries map[int]ttlEntry[T]
	ttl     time.Duration
	clock   clockwork.Clock
}

type ttlEntry[T any] struct {
	value     *T
	expiresAt time.Time
}

func newTTLCache[T any](ttl time.Duration, clock clockwork.Clock) *ttlCache[T] {
	return &ttlCache[T]{entries: make(map[int]ttlEntry[T]), ttl: ttl, clock: clock}
}

func (c *ttlCache[T]) get(id int) (*T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || c.clock.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *ttlCache[T]) set(id int, v *T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = ttlEntry[T]{value: v, expiresAt: c.clock.Now().Add(c.ttl)}
}

func (c *ttlCache[T]) invalidate(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *ttlCache[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ttlCache[T]) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}
