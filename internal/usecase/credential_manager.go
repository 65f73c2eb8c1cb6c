package usecase

import (
	"context"
	"fmt"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/internal/infrastructure/crypto"
	"quotecast-service/internal/infrastructure/oauth"
	"quotecast-service/pkg/logger"
)

// TokenRefresher performs the refresh-token exchange against a provider
// token endpoint.
type TokenRefresher interface {
	Refresh(ctx context.Context, tokenURL, clientID, clientSecret, refreshToken string) (*oauth.TokenSet, error)
}

// CredentialManager owns provider credentials: tokens are AEAD-encrypted
// at rest, decrypted only for the duration of a single operation, and kept
// fresh by a background renewal loop without caller involvement.
type CredentialManager struct {
	repo             repository.CredentialRepository
	cipher           *crypto.Cipher
	refresher        TokenRefresher
	logger           logger.Logger
	renewalThreshold time.Duration
	renewalInterval  time.Duration
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager(
	repo repository.CredentialRepository,
	cipher *crypto.Cipher,
	refresher TokenRefresher,
	logger logger.Logger,
	renewalThreshold time.Duration,
	renewalInterval time.Duration,
) *CredentialManager {
	return &CredentialManager{
		repo:             repo,
		cipher:           cipher,
		refresher:        refresher,
		logger:           logger,
		renewalThreshold: renewalThreshold,
		renewalInterval:  renewalInterval,
	}
}

// GetAccessToken returns the current valid access token for a provider,
// renewing it first when the expiry is inside the renewal threshold.
func (m *CredentialManager) GetAccessToken(ctx context.Context, providerID string) (string, error) {
	return m.getAccessToken(ctx, providerID, false)
}

// renewalAttempted guards against renewing more than once per invocation:
// a renewal that succeeds but still lands inside the threshold must not loop.
func (m *CredentialManager) getAccessToken(ctx context.Context, providerID string, renewalAttempted bool) (string, error) {
	cred, err := m.repo.FindByProviderID(ctx, providerID)
	if err != nil {
		return "", err
	}
	if !cred.Active {
		return "", fmt.Errorf("%w: %s is inactive", entity.ErrCredentialNotFound, providerID)
	}
	if cred.AccessToken == "" {
		return "", fmt.Errorf("%w: %s has no stored token", entity.ErrCredentialNotFound, providerID)
	}

	if !renewalAttempted && cred.Expiry != nil && time.Until(*cred.Expiry) <= m.renewalThreshold {
		if err := m.renew(ctx, cred); err != nil {
			return "", err
		}
		return m.getAccessToken(ctx, providerID, true)
	}

	return m.cipher.Decrypt(cred.AccessToken)
}

// UpdateTokens encrypts and persists a new token set with a computed
// absolute expiry. An empty refresh token keeps the stored one.
func (m *CredentialManager) UpdateTokens(ctx context.Context, providerID, accessToken, refreshToken string, expiresIn int64) error {
	encryptedAccess, err := m.cipher.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	fields := map[string]interface{}{
		"access_token": encryptedAccess,
	}
	if refreshToken != "" {
		encryptedRefresh, err := m.cipher.Encrypt(refreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		fields["refresh_token"] = encryptedRefresh
	}
	if expiresIn > 0 {
		expiry := time.Now().Add(time.Duration(expiresIn) * time.Second)
		fields["expiry"] = &expiry
	}

	return m.repo.Update(ctx, providerID, fields)
}

// DecryptedCredential returns the credential record with token and secret
// fields decrypted. The decrypted view lives in process memory only, for
// the duration of the calling operation.
func (m *CredentialManager) DecryptedCredential(ctx context.Context, providerID string) (*entity.ProviderCredential, error) {
	cred, err := m.repo.FindByProviderID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !cred.Active {
		return nil, fmt.Errorf("%w: %s is inactive", entity.ErrCredentialNotFound, providerID)
	}

	decrypted := *cred
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"access_token", &decrypted.AccessToken},
		{"refresh_token", &decrypted.RefreshToken},
		{"client_secret", &decrypted.ClientSecret},
	} {
		if *field.value == "" {
			continue
		}
		plaintext, err := m.cipher.Decrypt(*field.value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s for %s: %w", field.name, providerID, err)
		}
		*field.value = plaintext
	}

	return &decrypted, nil
}

// renew performs the refresh-token exchange and persists the new token set
func (m *CredentialManager) renew(ctx context.Context, cred *entity.ProviderCredential) error {
	if cred.RefreshToken == "" {
		return fmt.Errorf("%w: %s has no refresh token", entity.ErrTokenRenewalFailed, cred.ProviderID)
	}

	refreshToken, err := m.cipher.Decrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrTokenRenewalFailed, err)
	}
	clientSecret := cred.ClientSecret
	if clientSecret != "" {
		if clientSecret, err = m.cipher.Decrypt(cred.ClientSecret); err != nil {
			return fmt.Errorf("%w: %v", entity.ErrTokenRenewalFailed, err)
		}
	}

	token, err := m.refresher.Refresh(ctx, cred.AuthURL, cred.ClientID, clientSecret, refreshToken)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrTokenRenewalFailed, err)
	}

	m.logger.Info("Renewed provider token",
		"provider", cred.ProviderID,
		"expiry", token.Expiry)

	return m.UpdateTokens(ctx, cred.ProviderID, token.AccessToken, token.RefreshToken, int64(time.Until(token.Expiry).Seconds()))
}

// StartRenewalLoop scans active credentials on a fixed interval and renews
// any token inside the renewal threshold. It blocks until ctx is cancelled;
// run it on its own goroutine at process init.
func (m *CredentialManager) StartRenewalLoop(ctx context.Context) {
	ticker := time.NewTicker(m.renewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Token renewal loop stopped")
			return
		case <-ticker.C:
			m.renewExpiring(ctx)
		}
	}
}

// renewExpiring renews every active credential inside the threshold. A
// failure for one provider is logged and does not stop the scan of others.
func (m *CredentialManager) renewExpiring(ctx context.Context) {
	creds, err := m.repo.FindActive(ctx)
	if err != nil {
		m.logger.Error("Failed to list credentials for renewal", "error", err)
		return
	}

	for _, cred := range creds {
		if cred.Expiry == nil || time.Until(*cred.Expiry) > m.renewalThreshold {
			continue
		}
		if err := m.renew(ctx, cred); err != nil {
			m.logger.Error("Failed to renew provider token",
				"provider", cred.ProviderID,
				"error", err)
		}
	}
}
