// Package cache stores successful NVD response bodies in Redis so repeated
// connector runs within the TTL do not hit the API again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// Prometheus metrics for cache operations.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nvd_cache_hits_total",
		Help: "Total response cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nvd_cache_misses_total",
		Help: "Total response cache misses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nvd_cache_errors_total",
		Help: "Total cache operation errors by operation",
	}, []string{"operation"})
)

// ErrCacheMiss indicates the requested key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Key identifies a cached response by the request that produced it.
type Key struct {
	Endpoint string
	PageSize int
}

// String generates a deterministic cache key string.
func (k Key) String() string {
	return fmt.Sprintf("nvd:%s:resultsPerPage=%d", k.Endpoint, k.PageSize)
}

// Manager handles response caching with a Redis backend.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a cache manager. Entries expire after ttl.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves a cached response body.
// Returns ErrCacheMiss if the key does not exist or has expired.
func (m *Manager) Get(ctx context.Context, key Key) ([]byte, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	cacheHits.Inc()
	return data, nil
}

// Set stores a response body under the key with the manager's TTL.
func (m *Manager) Set(ctx context.Context, key Key, body []byte) error {
	if m.ttl <= 0 {
		return nil
	}

	if err := m.redis.Set(ctx, key.String(), body, m.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
