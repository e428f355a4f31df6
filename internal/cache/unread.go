// Package cache holds short-lived caches of per-user unread alert counts.
// A cached count is only a hint: writers invalidate it after every alert
// insert or mark-read, and readers fall back to the database on a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const (
	defaultUnreadTTL = 5 * time.Second
	unreadKeyPrefix  = "neuropharm:unread:"
)

// RedisUnreadCounter keeps unread counts in Redis so every API instance
// sees the same invalidations.
type RedisUnreadCounter struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisUnreadCounter connects to Redis and verifies the connection
func NewRedisUnreadCounter(config domain.CacheConfig, logger *logrus.Logger) (*RedisUnreadCounter, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisUnreadCounterFromClient(client, config.UnreadCountTTL, logger), nil
}

// NewRedisUnreadCounterFromClient wraps an existing client
func NewRedisUnreadCounterFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisUnreadCounter {
	if ttl <= 0 {
		ttl = defaultUnreadTTL
	}
	return &RedisUnreadCounter{redis: client, ttl: ttl, logger: logger}
}

func unreadKey(userID string) string {
	return unreadKeyPrefix + userID
}

// Get implements domain.UnreadCounter. Redis errors count as a miss.
func (c *RedisUnreadCounter) Get(ctx context.Context, userID string) (int, bool) {
	n, err := c.redis.Get(ctx, unreadKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		c.logger.WithFields(logrus.Fields{"user_id": userID, "error": err}).Warn("Failed to read unread count cache")
		return 0, false
	}
	return n, true
}

// Set implements domain.UnreadCounter
func (c *RedisUnreadCounter) Set(ctx context.Context, userID string, count int) {
	if err := c.redis.Set(ctx, unreadKey(userID), count, c.ttl).Err(); err != nil {
		c.logger.WithFields(logrus.Fields{"user_id": userID, "error": err}).Warn("Failed to write unread count cache")
	}
}

// Invalidate implements domain.UnreadCounter. A failed delete leaves a
// stale count for at most one TTL.
func (c *RedisUnreadCounter) Invalidate(ctx context.Context, userID string) {
	if err := c.redis.Del(ctx, unreadKey(userID)).Err(); err != nil {
		c.logger.WithFields(logrus.Fields{"user_id": userID, "error": err}).Warn("Failed to invalidate unread count cache")
	}
}

// Ping checks the Redis connection.
func (c *RedisUnreadCounter) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisUnreadCounter) Close() error {
	return c.redis.Close()
}

// MemoryUnreadCounter is the single-process counter used by the lite server.
type MemoryUnreadCounter struct {
	lru *expirable.LRU[string, int]
}

// NewMemoryUnreadCounter creates an in-memory counter holding at most size users
func NewMemoryUnreadCounter(size int, ttl time.Duration) *MemoryUnreadCounter {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = defaultUnreadTTL
	}
	return &MemoryUnreadCounter{lru: expirable.NewLRU[string, int](size, nil, ttl)}
}

// Get implements domain.UnreadCounter
func (c *MemoryUnreadCounter) Get(_ context.Context, userID string) (int, bool) {
	return c.lru.Get(userID)
}

// Set implements domain.UnreadCounter
func (c *MemoryUnreadCounter) Set(_ context.Context, userID string, count int) {
	c.lru.Add(userID, count)
}

// Invalidate implements domain.UnreadCounter
func (c *MemoryUnreadCounter) Invalidate(_ context.Context, userID string) {
	c.lru.Remove(userID)
}

// Len returns the number of cached users.
func (c *MemoryUnreadCounter) Len() int {
	return c.lru.Len()
}
