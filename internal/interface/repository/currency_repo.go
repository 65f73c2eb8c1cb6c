package repository

import (
	"context"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCurrencyRateRepository implements the CurrencyRateRepository interface
type GormCurrencyRateRepository struct {
	db *gorm.DB
}

// NewGormCurrencyRateRepository creates a new GORM currency rate repository
func NewGormCurrencyRateRepository(db *gorm.DB) repository.CurrencyRateRepository {
	return &GormCurrencyRateRepository{
		db: db,
	}
}

// CurrencyRates GORM model for database mapping
type CurrencyRates struct {
	ID         uint      `gorm:"primaryKey"`
	ProviderID string    `gorm:"column:provider_id;uniqueIndex:idx_rates_pair"`
	Base       string    `gorm:"column:base;uniqueIndex:idx_rates_pair"`
	Quote      string    `gorm:"column:quote;uniqueIndex:idx_rates_pair"`
	Rate       float64   `gorm:"column:rate"`
	RateDate   time.Time `gorm:"column:rate_date"`
	UpdatedAt  time.Time
}

// TableName overrides the default table name
func (CurrencyRates) TableName() string {
	return "m_currency_rates"
}

// UpsertRate replaces the singleton rate row for (provider, base, quote)
func (r *GormCurrencyRateRepository) UpsertRate(ctx context.Context, rate *entity.CurrencyRate) error {
	model := CurrencyRates{
		ProviderID: rate.ProviderID,
		Base:       rate.Base,
		Quote:      rate.Quote,
		Rate:       rate.Rate,
		RateDate:   rate.RateDate,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_id"}, {Name: "base"}, {Name: "quote"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "rate_date", "updated_at"}),
		}).
		Create(&model).Error
}
