// Package respcache keeps raw upstream response bodies in a key-value store.
package respcache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ytproxy/internal/db"
)

const keyPrefix = "ytproxy:resp:"

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Cache serves upstream bodies by request fingerprint. Store failures are
// logged and reported as misses, never as errors.
type Cache struct {
	store      store
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a response cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:      s,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Lookup returns the cached body for fingerprint.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) ([]byte, bool) {
	key := keyPrefix + fingerprint

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached response", zap.String("key", key), zap.Error(err))
		}
		c.inc("miss")
		return nil, false
	}
	if len(data) == 0 {
		c.inc("miss")
		return nil, false
	}

	c.inc("hit")
	return data, true
}

// Store saves body under fingerprint for ttl.
func (c *Cache) Store(ctx context.Context, fingerprint string, body []byte, ttl time.Duration) {
	key := keyPrefix + fingerprint
	if err := c.store.SetWithTTL(ctx, key, body, ttl); err != nil {
		c.logger.Warn("Failed to cache response", zap.String("key", key), zap.Error(err))
	}
}

// Evict drops the entry for fingerprint.
func (c *Cache) Evict(ctx context.Context, fingerprint string) {
	key := keyPrefix + fingerprint
	if err := c.store.Del(ctx, key); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		c.logger.Warn("Failed to evict cached response", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
