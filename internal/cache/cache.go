// Package cache keeps short-lived copies of read-heavy responses (mosque
// listings, the amenity catalog) so repeated page loads do not each fan out to
// the Record Source.
//
// Entries are grouped by a logical name ("mosques", "amenities", ...) with its
// own staleness window. Any mutation of a group calls Invalidate for that
// name, so a stale read is bounded by the window only for changes made outside
// this service. Redis backs the cache in multi-instance deployments; a
// process-local store is used otherwise. Cache failures never fail a request.
package cache

import (
	"context"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache groups.
const (
	Mosques     = "mosques"
	Amenities   = "amenities"
	Submissions = "submissions"
)

// TTLs maps the configured staleness windows to their groups.
func TTLs(cfg config.CacheConfig) map[string]time.Duration {
	return map[string]time.Duration{
		Mosques:     cfg.MosquesTTL,
		Amenities:   cfg.AmenitiesTTL,
		Submissions: cfg.SubmissionsTTL,
	}
}

// Store is a byte-oriented key/value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Cache namespaces a Store and applies per-group TTLs.
type Cache struct {
	store  Store
	prefix string
	ttls   map[string]time.Duration
	logger *slog.Logger
}

// New returns a Cache over store. Keys are written as prefix+name+":"+key.
// Groups missing from ttls are not cached.
func New(store Store, prefix string, ttls map[string]time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, prefix: prefix, ttls: ttls, logger: logger}
}

func (c *Cache) key(name, key string) string {
	return c.prefix + name + ":" + key
}

// Remember returns the cached value for name/key, or calls load and caches its
// result. Errors from load are returned and never cached. A nil Cache always
// calls load.
func Remember[T any](ctx context.Context, c *Cache, name, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	ttl := c.ttls[name]
	if ttl <= 0 {
		return load(ctx)
	}

	full := c.key(name, key)
	if raw, ok, err := c.store.Get(ctx, full); err != nil {
		c.logger.WarnContext(ctx, "cache read failed", "cache", name, "error", err)
	} else if ok {
		var v T
		if err := codec.Unmarshal(raw, &v); err == nil {
			telemetry.CacheHitsTotal.WithLabelValues(name).Inc()
			return v, nil
		}
		c.logger.WarnContext(ctx, "discarding unreadable cache entry", "cache", name, "key", key)
	}
	telemetry.CacheMissesTotal.WithLabelValues(name).Inc()

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	raw, err := codec.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", "cache", name, "error", err)
		return v, nil
	}
	if err := c.store.Set(ctx, full, raw, ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "cache", name, "error", err)
	}
	return v, nil
}

// Invalidate drops every entry of the named groups.
func (c *Cache) Invalidate(ctx context.Context, names ...string) {
	if c == nil {
		return
	}
	for _, name := range names {
		if err := c.store.DeletePrefix(ctx, c.key(name, "")); err != nil {
			c.logger.WarnContext(ctx, "cache invalidation failed", "cache", name, "error", err)
		}
	}
}
