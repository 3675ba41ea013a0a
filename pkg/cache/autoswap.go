package cache

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

// autoSwapCache serves from a fallback until dial succeeds, then switches to
// the real cache for good.
type autoSwapCache struct {
	mu      sync.RWMutex
	current Cache
	logger  logger.Logger
	stopCh  chan struct{}
	once    sync.Once
}

func newAutoSwapCache(fallback Cache, log logger.Logger, interval time.Duration, dial func() (Cache, error)) *autoSwapCache {
	a := &autoSwapCache{current: fallback, logger: log, stopCh: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				real, err := dial()
				if err != nil {
					a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
					continue
				}
				a.mu.Lock()
				a.current = real
				a.mu.Unlock()
				a.logger.Info("Valkey connection established; switched from in-memory to real cache")
				return
			}
		}
	}()
	return a
}

// Stop ends the background reconnect loop.
func (a *autoSwapCache) Stop() {
	a.once.Do(func() { close(a.stopCh) })
}

func (a *autoSwapCache) active() Cache {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *autoSwapCache) Get(ctx context.Context, key string) ([]byte, error) {
	return a.active().Get(ctx, key)
}

func (a *autoSwapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.active().Set(ctx, key, value, ttl)
}

func (a *autoSwapCache) Delete(ctx context.Context, key string) error {
	return a.active().Delete(ctx, key)
}

func (a *autoSwapCache) HealthCheck(ctx context.Context) error {
	return a.active().HealthCheck(ctx)
}

// Options selects and sizes the cache built by New.
type Options struct {
	Enabled    bool
	Nodes      []string
	Password   string
	DB         int
	TTL        time.Duration
	MemorySize int
	// RetryInterval is how often an unreachable server is redialled.
	RetryInterval time.Duration
}

// New returns a Valkey-backed cache when enabled and reachable. Otherwise it
// returns an in-memory cache, which keeps redialling the configured server in
// the background and switches over once it answers.
func New(opts Options, log logger.Logger) Cache {
	memory := NewMemory(opts.MemorySize, opts.TTL)
	if !opts.Enabled || len(opts.Nodes) == 0 {
		log.Info("External cache disabled; using in-memory cache", "size", opts.MemorySize)
		return memory
	}

	dial := func() (Cache, error) {
		if len(opts.Nodes) == 1 {
			return NewValkeySingle(opts.Nodes[0], opts.DB, opts.Password, opts.TTL)
		}
		return NewValkeyCluster(opts.Nodes, opts.Password, opts.TTL)
	}
	c, err := dial()
	if err == nil {
		log.Info("Connected to Valkey", "nodes", opts.Nodes)
		return c
	}

	log.Warn("Valkey unavailable; using in-memory cache until it is reachable", "nodes", opts.Nodes, "error", err)
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return newAutoSwapCache(memory, log, interval, dial)
}
