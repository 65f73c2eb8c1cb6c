package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/pkg/logger"
	"quotecast-service/pkg/metrics"
)

// RevalidateFunc produces a fresh value for a stale cache key.
type RevalidateFunc func(ctx context.Context) ([]entity.NormalizedPlan, error)

// QuoteCache serves cached quote aggregations with bounded staleness.
// Entries inside the stale window are returned as-is; stale entries are
// still returned immediately while a background revalidation refreshes
// them, with a lock guaranteeing at most one revalidator per key.
type QuoteCache struct {
	store       repository.CacheStore
	auditLog    repository.QuoteLogRepository
	logger      logger.Logger
	metrics     *metrics.Metrics
	ttl         time.Duration
	staleWindow time.Duration
	lockTTL     time.Duration

	revalidations sync.WaitGroup
}

// NewQuoteCache creates a new quote cache layer
func NewQuoteCache(
	store repository.CacheStore,
	auditLog repository.QuoteLogRepository,
	logger logger.Logger,
	m *metrics.Metrics,
	ttl, staleWindow, lockTTL time.Duration,
) *QuoteCache {
	return &QuoteCache{
		store:       store,
		auditLog:    auditLog,
		logger:      logger,
		metrics:     m,
		ttl:         ttl,
		staleWindow: staleWindow,
		lockTTL:     lockTTL,
	}
}

// QuoteKey builds the composite cache key. Every component addressing the
// same quote slot must use this exact construction.
func QuoteKey(destination string, paxCount int, ageGroup entity.AgeGroup, days int, providerID string) string {
	return fmt.Sprintf("quote:%s:%d:%s:%d:%s", destination, paxCount, ageGroup, days, providerID)
}

// Get returns the cached plans for key if present. A stale-but-live entry
// is returned immediately and, when revalidate is non-nil, refreshed in
// the background without blocking the caller. Store errors degrade to a
// forced miss instead of failing the request.
func (c *QuoteCache) Get(ctx context.Context, key, providerID string, quote entity.QuoteContext, revalidate RevalidateFunc) ([]entity.NormalizedPlan, bool) {
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if !found {
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		return nil, false
	}

	var entry entity.QuoteCacheEntry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		c.logger.Warn("Cache entry corrupt, treating as miss", "key", key, "error", err)
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}

	if time.Since(entry.Timestamp) >= c.staleWindow && revalidate != nil {
		c.revalidations.Add(1)
		go func() {
			defer c.revalidations.Done()
			c.revalidate(key, providerID, quote, revalidate)
		}()
	}

	return entry.Data, true
}

// Set stores plans under key with the configured TTL and appends an audit
// record to the persistent quote-cache log. An audit failure is logged and
// never fails the cache write.
func (c *QuoteCache) Set(ctx context.Context, key, providerID string, quote entity.QuoteContext, plans []entity.NormalizedPlan) error {
	entry := entity.QuoteCacheEntry{
		Data:      plans,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
		return err
	}

	if err := c.auditLog.Append(ctx, &entity.QuoteLogRecord{
		CacheKey:    key,
		ProviderID:  providerID,
		Destination: quote.Destination,
		PaxCount:    quote.PaxCount,
		AgeGroup:    quote.AgeGroup,
		Days:        quote.Days,
		Payload:     plans,
	}); err != nil {
		c.logger.Warn("Failed to append quote cache audit record", "key", key, "error", err)
	}

	return nil
}

// Del removes the cache entry and its audit rows. Failures on either path
// are logged, not raised.
func (c *QuoteCache) Del(ctx context.Context, key string) {
	if err := c.store.Del(ctx, key); err != nil {
		c.logger.Error("Failed to delete cache entry", "key", key, "error", err)
	}
	if err := c.auditLog.DeleteByCacheKey(ctx, key); err != nil {
		c.logger.Error("Failed to delete quote cache audit rows", "key", key, "error", err)
	}
}

// Wait blocks until in-flight revalidations finish. Used on shutdown and
// in tests; the request path never calls it.
func (c *QuoteCache) Wait() {
	c.revalidations.Wait()
}

// revalidate refreshes one stale key. The lock:<key> guard is acquired
// with an atomic set-if-not-exists; losing it means another revalidation
// is in flight and this one returns immediately. The lock is released in
// a defer regardless of outcome. A revalidation slower than the lock TTL
// can let a second one start; that duplicate call is accepted rather than
// holding the lock indefinitely for a wedged upstream.
func (c *QuoteCache) revalidate(key, providerID string, quote entity.QuoteContext, fn RevalidateFunc) {
	ctx := context.Background()
	lockKey := "lock:" + key

	acquired, err := c.store.SetIfNotExists(ctx, lockKey, "1")
	if err != nil {
		c.logger.Warn("Failed to acquire revalidation lock", "key", key, "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := c.store.Del(ctx, lockKey); err != nil {
			c.logger.Warn("Failed to release revalidation lock", "key", key, "error", err)
		}
	}()

	if err := c.store.Expire(ctx, lockKey, c.lockTTL); err != nil {
		c.logger.Warn("Failed to set revalidation lock TTL", "key", key, "error", err)
	}

	if c.metrics != nil {
		c.metrics.Revalidations.Inc()
	}

	fresh, err := fn(ctx)
	if err != nil {
		c.logger.Warn("Cache revalidation failed, keeping stale entry", "key", key, "error", err)
		return
	}

	if err := c.Set(ctx, key, providerID, quote, fresh); err != nil {
		c.logger.Warn("Failed to store revalidated entry", "key", key, "error", err)
	}
}
