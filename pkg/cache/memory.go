package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platformbuilds/mirador-watchdog/internal/metrics"
)

// ErrInMemory is reported by the health check of the in-memory cache so
// readiness shows the external cache is not in use.
var ErrInMemory = errors.New("using in-memory cache")

// memoryCache is a bounded, process-local LRU. Entries share the default TTL;
// per-call TTLs are ignored. Data is lost on restart and not shared across
// replicas.
type memoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory returns an LRU cache holding up to size entries for ttl each.
func NewMemory(size int, ttl time.Duration) Cache {
	if size <= 0 {
		size = 1024
	}
	return &memoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m.lru.Get(key)
	if !ok {
		metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return b, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := encode(key, value)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		return err
	}
	m.lru.Add(key, b)
	metrics.CacheOperationsTotal.WithLabelValues("set", "success").Inc()
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

func (m *memoryCache) HealthCheck(context.Context) error {
	return ErrInMemory
}
