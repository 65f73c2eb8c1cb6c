package repository

import (
	"context"
	"time"
)

// CacheStore defines the key-value cache contract the quote cache sits on.
// Every mutation replaces the value wholesale; there are no read-modify-write
// operations, so concurrent fan-out tasks never race on partial state.
type CacheStore interface {
	// Get returns (value, true, nil) on hit and ("", false, nil) on miss.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// SetIfNotExists atomically creates the key and reports whether it won.
	SetIfNotExists(ctx context.Context, key string, value string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
