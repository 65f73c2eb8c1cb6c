package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisCacheStore implements the CacheStore interface using Redis
type RedisCacheStore struct {
	client *redis.Client
}

// NewRedisCacheStore creates a new Redis cache store
func NewRedisCacheStore(client *redis.Client) repository.CacheStore {
	return &RedisCacheStore{
		client: client,
	}
}

// Get returns the value for key, reporting misses without error
func (s *RedisCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", entity.ErrCacheUnavailable, err)
	}
	return value, true, nil
}

// Set stores value under key with the given TTL
func (s *RedisCacheStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrCacheUnavailable, err)
	}
	return nil
}

// Del removes a key
func (s *RedisCacheStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrCacheUnavailable, err)
	}
	return nil
}

// SetIfNotExists atomically creates the key and reports whether it won
func (s *RedisCacheStore) SetIfNotExists(ctx context.Context, key string, value string) (bool, error) {
	acquired, err := s.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", entity.ErrCacheUnavailable, err)
	}
	return acquired, nil
}

// Expire sets a TTL on an existing key
func (s *RedisCacheStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrCacheUnavailable, err)
	}
	return nil
}
