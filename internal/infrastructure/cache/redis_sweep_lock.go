package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSweepLock serializes billing sweeps across instances using a
// Redis lease. Only the instance that wins the SETNX runs the sweep;
// the TTL bounds how long a crashed holder can block the next run.
type RedisSweepLock struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSweepLock creates a new Redis-backed sweep lock
func NewRedisSweepLock(cfg RedisConfig) (*RedisSweepLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSweepLock{
		client:    client,
		keyPrefix: "billing:sweep:",
	}, nil
}

// NewRedisSweepLockWithClient creates a sweep lock with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisSweepLockWithClient(client *redis.Client, keyPrefix string) *RedisSweepLock {
	if keyPrefix == "" {
		keyPrefix = "billing:sweep:"
	}
	return &RedisSweepLock{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire takes the lease for the named sweep. Returns true if this
// caller won it, false if another holder has it.
func (l *RedisSweepLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key := l.keyPrefix + name

	// SETNX with TTL in a single atomic operation
	acquired, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	return acquired, nil
}

// Release gives the lease back early
func (l *RedisSweepLock) Release(ctx context.Context, name string) error {
	key := l.keyPrefix + name
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release sweep lock: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisSweepLock) Close() error {
	return l.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (l *RedisSweepLock) GetClient() *redis.Client {
	return l.client
}
