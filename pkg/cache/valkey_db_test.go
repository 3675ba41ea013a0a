//go:build db

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live Valkey/Redis node when VALKEY_ADDR is set.
func TestValkeySingle_DB(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set; skipping DB test")
	}
	ttl := 2 * time.Second
	c, err := NewValkeySingle(addr, 0, os.Getenv("VALKEY_PASSWORD"), ttl)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "watchdog:test", "v", ttl))
	b, err := c.Get(ctx, "watchdog:test")
	require.NoError(t, err)
	assert.Equal(t, "v", string(b))

	require.NoError(t, c.Delete(ctx, "watchdog:test"))
	_, err = c.Get(ctx, "watchdog:test")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, c.HealthCheck(ctx))
}
