package repository

import (
	"context"

	"quotecast-service/internal/domain/entity"
)

// CredentialRepository defines the interface for provider credential storage
type CredentialRepository interface {
	FindByProviderID(ctx context.Context, providerID string) (*entity.ProviderCredential, error)
	FindActive(ctx context.Context) ([]*entity.ProviderCredential, error)
	// Update applies a partial field update to the credential record.
	Update(ctx context.Context, providerID string, fields map[string]interface{}) error
}
