package entity

import (
	"time"
)

// CoverageLimits holds the per-plan coverage amounts the platform compares on.
type CoverageLimits struct {
	Medical float64 `json:"medical"`
	Baggage float64 `json:"baggage"`
	Covid   bool    `json:"covid"`
}

// NormalizedPlan is the canonical, provider-agnostic representation of a
// price quote. Connectors produce it from heterogeneous provider schemas;
// it is immutable once returned and only persisted through the cache.
type NormalizedPlan struct {
	ProviderID    string                 `json:"providerId"`
	PlanID        string                 `json:"planId"`
	Name          string                 `json:"name"`
	Price         float64                `json:"price"`
	Currency      string                 `json:"currency"`
	Destination   string                 `json:"destination"`
	Coverage      CoverageLimits         `json:"coverage"`
	Days          int                    `json:"days"`
	MarkupApplied bool                   `json:"markupApplied"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// PlanAgeBand is one age-banded price row inside a destination.
type PlanAgeBand struct {
	MinAge int     `json:"minAge"`
	MaxAge int     `json:"maxAge"`
	Price  float64 `json:"price"`
}

// PlanDestination groups the age-band pricing a plan offers for one destination.
type PlanDestination struct {
	Slug     string        `json:"slug"`
	AgeBands []PlanAgeBand `json:"ageBands"`
}

// InsurancePlan is a durable plan catalog record. (ExternalID, ProviderID)
// is the natural key the synchronizer upserts on.
type InsurancePlan struct {
	ID           uint
	ExternalID   string
	ProviderID   string
	Name         string
	Currency     string
	Coverages    []string
	Destinations []PlanDestination
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
