package connector

import (
	"context"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/infrastructure/oauth"
)

// Connector is the contract every underwriting provider integration
// satisfies. One value exists per provider; all of them share the retry,
// backoff and markup behavior in client.go.
type Connector interface {
	// ProviderID returns the stable provider identifier used for
	// credentials, cache keys and catalog rows.
	ProviderID() string

	// Authenticate performs the provider-specific OAuth exchange, stores
	// the resulting token set through the credential manager and returns
	// the new access token.
	Authenticate(ctx context.Context) (string, error)

	// GetPlans performs the provider quote call and returns normalized,
	// markup-applied plans.
	GetPlans(ctx context.Context, quote entity.QuoteContext) ([]entity.NormalizedPlan, error)

	// FetchCatalog pulls the provider's full plan catalog for sync.
	FetchCatalog(ctx context.Context) ([]entity.InsurancePlan, error)

	// RefreshCotation fetches today's USD/EUR exchange rate and upserts
	// the provider's singleton rate record.
	RefreshCotation(ctx context.Context) error
}

// CredentialSource is the slice of the credential manager connectors
// depend on. Accepting the interface keeps connectors testable with fakes.
type CredentialSource interface {
	GetAccessToken(ctx context.Context, providerID string) (string, error)
	UpdateTokens(ctx context.Context, providerID, accessToken, refreshToken string, expiresIn int64) error
	// DecryptedCredential returns the credential record with token and
	// secret fields decrypted, valid only for the current operation.
	DecryptedCredential(ctx context.Context, providerID string) (*entity.ProviderCredential, error)
}

// TokenExchanger is the OAuth exchange surface connectors authenticate with.
type TokenExchanger interface {
	ClientCredentials(ctx context.Context, tokenURL, clientID, clientSecret string, scopes []string) (*oauth.TokenSet, error)
	Password(ctx context.Context, tokenURL, username, password string, scopes []string) (*oauth.TokenSet, error)
}
