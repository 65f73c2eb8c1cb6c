package entity

import (
	"time"
)

// AgeGroup is the coarse age bucket derived from average passenger age.
// It is part of the cache key, so sibling components must agree on it.
type AgeGroup string

const (
	AgeGroupMinor  AgeGroup = "MINOR"
	AgeGroupYoung  AgeGroup = "YOUNG"
	AgeGroupAdult  AgeGroup = "ADULT"
	AgeGroupSenior AgeGroup = "SENIOR"
)

// Passenger carries the per-traveler facts a quote depends on.
type Passenger struct {
	Age int `json:"age" validate:"min=0,max=120"`
}

// QuoteRequest is the validated inbound request. It is never persisted.
type QuoteRequest struct {
	Destination string      `json:"destination" validate:"required"`
	StartDate   time.Time   `json:"startDate" validate:"required"`
	EndDate     time.Time   `json:"endDate" validate:"required"`
	Passengers  []Passenger `json:"passengers" validate:"required,min=1,dive"`
	Currency    string      `json:"currency,omitempty"`
	Preview     bool        `json:"preview,omitempty"`
}

// QuoteContext is the derived request shape connectors and the cache key on.
type QuoteContext struct {
	Destination string   `json:"destination"`
	Days        int      `json:"days"`
	PaxCount    int      `json:"paxCount"`
	AverageAge  int      `json:"averageAge"`
	AgeGroup    AgeGroup `json:"ageGroup"`
	Currency    string   `json:"currency,omitempty"`
}

// InsurerTally counts per-provider fan-out outcomes for one request.
type InsurerTally struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// QuoteTiming is the wall-clock breakdown of one aggregation.
// Cache and provider durations are cumulative across fan-out tasks.
type QuoteTiming struct {
	TotalMs    int64 `json:"totalMs"`
	CacheMs    int64 `json:"cacheMs"`
	ProviderMs int64 `json:"providerMs"`
}

// QuoteResponse is the response envelope for one aggregation run.
type QuoteResponse struct {
	RequestID   string           `json:"requestId"`
	Destination string           `json:"destination"`
	Days        int              `json:"days"`
	PaxCount    int              `json:"paxCount"`
	AverageAge  int              `json:"averageAge"`
	AgeGroup    AgeGroup         `json:"ageGroup"`
	Insurers    InsurerTally     `json:"insurers"`
	Timing      QuoteTiming      `json:"timing"`
	Preview     bool             `json:"preview"`
	Plans       []NormalizedPlan `json:"plans"`
}

// QuoteCacheEntry is the envelope stored under a quote cache key. The
// timestamp is the creation time and is left untouched on read.
type QuoteCacheEntry struct {
	Data      []NormalizedPlan `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// QuoteLogRecord is the audit row appended to the persistent quote-cache
// log whenever a cache entry is written, for offline inspection and replay.
type QuoteLogRecord struct {
	ID          string           `json:"id" bson:"_id"`
	CacheKey    string           `json:"cacheKey" bson:"cachekey"`
	ProviderID  string           `json:"providerId" bson:"providerid"`
	Destination string           `json:"destination" bson:"destination"`
	PaxCount    int              `json:"paxCount" bson:"paxcount"`
	AgeGroup    AgeGroup         `json:"ageGroup" bson:"agegroup"`
	Days        int              `json:"days" bson:"days"`
	Payload     []NormalizedPlan `json:"payload" bson:"payload"`
	CreatedAt   time.Time        `json:"createdAt" bson:"createdat"`
}

// SyncResult is the transient tally a catalog sync run returns.
type SyncResult struct {
	Providers     int   `json:"providers"`
	Successful    int   `json:"successful"`
	Failed        int   `json:"failed"`
	PlansUpserted int   `json:"plansUpserted"`
	DurationMs    int64 `json:"durationMs"`
}
