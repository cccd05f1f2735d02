package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasecover/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("applies tuning and names the client", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:          "redis://:secret@cache.internal:6380/2",
			PoolSize:     20,
			MinIdleConns: 4,
			DialTimeout:  2 * time.Second,
		})
		require.NoError(t, err)

		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, "leasecover", opts.ClientName)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 4, opts.MinIdleConns)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
	})

	t.Run("zero values keep library defaults", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{URL: "redis://localhost:6379"})
		require.NoError(t, err)

		assert.Zero(t, opts.PoolSize)
		assert.Zero(t, opts.ReadTimeout)
	})

	t.Run("rejects a malformed url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://localhost:6379"})
		assert.ErrorContains(t, err, "parse redis url")
	})
}

func TestNew_Disabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
