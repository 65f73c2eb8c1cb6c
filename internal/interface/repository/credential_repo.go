package repository

import (
	"context"
	"errors"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormCredentialRepository implements the CredentialRepository interface
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GORM credential repository
func NewGormCredentialRepository(db *gorm.DB) repository.CredentialRepository {
	return &GormCredentialRepository{
		db: db,
	}
}

// ProviderCredentials GORM model for database mapping
type ProviderCredentials struct {
	ID           uint       `gorm:"primaryKey"`
	ProviderID   string     `gorm:"column:provider_id;unique"`
	AccessToken  string     `gorm:"column:access_token"`
	RefreshToken string     `gorm:"column:refresh_token"`
	Expiry       *time.Time `gorm:"column:expiry"`
	AuthURL      string     `gorm:"column:auth_url"`
	BaseURL      string     `gorm:"column:base_url"`
	ClientID     string     `gorm:"column:client_id"`
	ClientSecret string     `gorm:"column:client_secret"`
	GrantType    string     `gorm:"column:grant_type"`
	Scope        string     `gorm:"column:scope"`
	Markup       float64    `gorm:"column:markup"`
	Active       bool       `gorm:"column:active"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name
func (ProviderCredentials) TableName() string {
	return "m_provider_credentials"
}

// FindByProviderID finds a credential by provider identifier
func (r *GormCredentialRepository) FindByProviderID(ctx context.Context, providerID string) (*entity.ProviderCredential, error) {
	var cred ProviderCredentials
	result := r.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&cred)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, entity.ErrCredentialNotFound
		}
		return nil, result.Error
	}

	return toCredentialEntity(&cred), nil
}

// FindActive lists all active credentials
func (r *GormCredentialRepository) FindActive(ctx context.Context) ([]*entity.ProviderCredential, error) {
	var creds []ProviderCredentials
	result := r.db.WithContext(ctx).Where("active = ?", true).Find(&creds)
	if result.Error != nil {
		return nil, result.Error
	}

	entities := make([]*entity.ProviderCredential, 0, len(creds))
	for i := range creds {
		entities = append(entities, toCredentialEntity(&creds[i]))
	}
	return entities, nil
}

// Update applies a partial field update to the credential record
func (r *GormCredentialRepository) Update(ctx context.Context, providerID string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&ProviderCredentials{}).
		Where("provider_id = ?", providerID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.ErrCredentialNotFound
	}
	return nil
}

// Convert GORM model to domain entity
func toCredentialEntity(cred *ProviderCredentials) *entity.ProviderCredential {
	return &entity.ProviderCredential{
		ID:           cred.ID,
		ProviderID:   cred.ProviderID,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
		AuthURL:      cred.AuthURL,
		BaseURL:      cred.BaseURL,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		GrantType:    cred.GrantType,
		Scope:        cred.Scope,
		Markup:       cred.Markup,
		Active:       cred.Active,
		CreatedAt:    cred.CreatedAt,
		UpdatedAt:    cred.UpdatedAt,
	}
}
