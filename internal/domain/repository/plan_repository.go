package repository

import (
	"context"

	"quotecast-service/internal/domain/entity"
)

// PlanFilter narrows catalog reads. Age, when set, matches plans carrying
// at least one band with MinAge <= age <= MaxAge for the destination.
type PlanFilter struct {
	DestinationSlug string
	Age             *int
	ActiveProviders bool
}

// PlanRepository defines the interface for the durable plan catalog
type PlanRepository interface {
	FindMany(ctx context.Context, offset, limit int, filter PlanFilter) ([]*entity.InsurancePlan, error)
	FindOne(ctx context.Context, id uint) (*entity.InsurancePlan, error)
	FindByExternalID(ctx context.Context, externalID, providerID string) (*entity.InsurancePlan, error)
	// Upsert inserts or diff-updates a plan keyed by (ExternalID, ProviderID).
	// It reports whether any row was actually written, so repeated syncs of
	// an unchanged catalog cost zero writes.
	Upsert(ctx context.Context, plan *entity.InsurancePlan) (bool, error)
	Delete(ctx context.Context, id uint) error
}
