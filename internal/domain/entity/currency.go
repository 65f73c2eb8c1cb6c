package entity

import (
	"time"
)

// CurrencyRate is the singleton cotation record a connector refreshes
// during catalog sync, keyed by provider and currency pair.
type CurrencyRate struct {
	ID         uint
	ProviderID string
	Base       string
	Quote      string
	Rate       float64
	RateDate   time.Time
	UpdatedAt  time.Time
}
