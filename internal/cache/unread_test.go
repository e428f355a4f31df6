package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/neuropharmdb-server/internal/domain"
)

var _ domain.UnreadCounter = (*RedisUnreadCounter)(nil)
var _ domain.UnreadCounter = (*MemoryUnreadCounter)(nil)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestMemoryUnreadCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryUnreadCounter(2, time.Minute)

	_, ok := c.Get(ctx, "U001")
	assert.False(t, ok)

	c.Set(ctx, "U001", 3)
	n, ok := c.Get(ctx, "U001")
	require.True(t, ok)
	assert.Equal(t, 3, n)

	c.Invalidate(ctx, "U001")
	_, ok = c.Get(ctx, "U001")
	assert.False(t, ok)

	c.Set(ctx, "U001", 1)
	c.Set(ctx, "U002", 2)
	c.Set(ctx, "U003", 3)
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(ctx, "U001")
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestMemoryUnreadCounter_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryUnreadCounter(10, 20*time.Millisecond)

	c.Set(ctx, "U001", 5)
	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "U001")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedisUnreadCounter_Unreachable(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	c := NewRedisUnreadCounterFromClient(client, time.Second, quietLogger())
	defer c.Close()

	c.Set(ctx, "U001", 4)
	_, ok := c.Get(ctx, "U001")
	assert.False(t, ok, "errors are treated as a miss")
	c.Invalidate(ctx, "U001")
	assert.Error(t, c.Ping(ctx))
}

func TestNewRedisUnreadCounter_BadURL(t *testing.T) {
	_, err := NewRedisUnreadCounter(domain.CacheConfig{RedisURL: "not a url"}, quietLogger())
	assert.Error(t, err)
}

func TestRedisUnreadCounter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRedisUnreadCounter(domain.CacheConfig{
		RedisURL:       fmt.Sprintf("redis://%s/0", endpoint),
		UnreadCountTTL: time.Second,
		PoolSize:       4,
	}, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(ctx, "U001")
	assert.False(t, ok)

	c.Set(ctx, "U001", 7)
	n, ok := c.Get(ctx, "U001")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	c.Invalidate(ctx, "U001")
	_, ok = c.Get(ctx, "U001")
	assert.False(t, ok)

	c.Set(ctx, "U002", 1)
	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "U002")
		return !ok
	}, 3*time.Second, 100*time.Millisecond)
}
