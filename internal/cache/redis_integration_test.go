//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisClient_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := NewRedisClient(RedisConfig{Addr: uri[len("redis://"):], Prefix: "test:"})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, client.Set(ctx, "page:abc:1", []byte("png"), time.Minute))
	require.NoError(t, client.Set(ctx, "page:abc:2", []byte("png"), time.Minute))
	require.NoError(t, client.Set(ctx, "page:def:1", []byte("png"), time.Minute))

	v, err := client.Get(ctx, "page:abc:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), v)

	require.NoError(t, client.DeleteByPrefix(ctx, "page:abc:"))
	_, err = client.Get(ctx, "page:abc:2")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = client.Get(ctx, "page:def:1")
	assert.NoError(t, err)
}
