package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/mirador-watchdog/internal/metrics"
)

// valkeyCache talks to a single node or a cluster through the same client
// interface.
type valkeyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewValkeySingle connects to one Valkey/Redis node.
func NewValkeySingle(addr string, db int, password string, defaultTTL time.Duration) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return connect(client, defaultTTL, "single-node")
}

// NewValkeyCluster connects to a Valkey/Redis cluster.
func NewValkeyCluster(nodes []string, password string, defaultTTL time.Duration) (Cache, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Password:     password,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return connect(client, defaultTTL, "cluster")
}

func connect(client redis.UniversalClient, ttl time.Duration, mode string) (Cache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey %s: %w", mode, err)
	}
	return &valkeyCache{client: client, ttl: ttl}, nil
}

func (v *valkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, err
	}
	metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return b, nil
}

func (v *valkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(key, value)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		return err
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		return err
	}
	metrics.CacheOperationsTotal.WithLabelValues("set", "success").Inc()
	return nil
}

func (v *valkeyCache) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.CacheOperationsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

func (v *valkeyCache) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}
