package repository

import (
	"context"

	"quotecast-service/internal/domain/entity"
)

// QuoteLogRepository defines the interface for the persistent quote-cache log
type QuoteLogRepository interface {
	Append(ctx context.Context, record *entity.QuoteLogRecord) error
	DeleteByCacheKey(ctx context.Context, cacheKey string) error
}
