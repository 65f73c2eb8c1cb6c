package repository

import (
	"context"

	"quotecast-service/internal/domain/entity"
)

// CurrencyRateRepository defines the interface for cotation upserts
type CurrencyRateRepository interface {
	// UpsertRate replaces the singleton rate row for (ProviderID, Base, Quote).
	UpsertRate(ctx context.Context, rate *entity.CurrencyRate) error
}
