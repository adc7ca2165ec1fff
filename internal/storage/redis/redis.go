// Package redis stores blobs in Redis string keys.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/storage"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written by this backend.
const KeyPrefix = "todo:"

// Options configures the Redis connection.
type Options struct {
	Addr         string        // ex: "localhost:6379"
	Password     string        // optional
	DB           int           // Redis DB number
	DialTimeout  time.Duration // ex: 5s
	ReadTimeout  time.Duration // ex: 3s
	WriteTimeout time.Duration // ex: 3s
}

// Backend stores each key as a Redis string without TTL.
type Backend struct {
	client *redis.Client
}

var _ storage.Backend = (*Backend)(nil)

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, opts Options) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unavailable at %s: %w", opts.Addr, err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Backend {
	return &Backend{client: client}
}

// Key returns the Redis key for a storage key.
func Key(key string) string {
	return KeyPrefix + key
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (b *Backend) Set(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, Key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *Backend) Name() string {
	return "redis"
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}
