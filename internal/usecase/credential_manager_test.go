package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/infrastructure/crypto"
	"quotecast-service/internal/infrastructure/oauth"
	"quotecast-service/pkg/logger"
)

func newTestCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return cipher
}

func seedCredential(t *testing.T, cipher *crypto.Cipher, providerID string, expiry time.Time) *entity.ProviderCredential {
	t.Helper()
	access, err := cipher.Encrypt("plain-access")
	require.NoError(t, err)
	refresh, err := cipher.Encrypt("plain-refresh")
	require.NoError(t, err)

	return &entity.ProviderCredential{
		ProviderID:   providerID,
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       &expiry,
		AuthURL:      "https://auth.example.com/token",
		BaseURL:      "https://api.example.com",
		ClientID:     "client-id",
		GrantType:    "client_credentials",
		Active:       true,
	}
}

func TestGetAccessTokenOutsideThreshold(t *testing.T) {
	cipher := newTestCipher(t)
	repo := newFakeCredentialRepo(seedCredential(t, cipher, "assurelink", time.Now().Add(time.Hour)))
	refresher := &fakeRefresher{}
	manager := NewCredentialManager(repo, cipher, refresher, logger.NewNop(), 5*time.Minute, time.Minute)

	token, err := manager.GetAccessToken(context.Background(), "assurelink")
	require.NoError(t, err)
	assert.Equal(t, "plain-access", token)
	assert.Equal(t, 0, refresher.callCount())
}

func TestGetAccessTokenRenewsInsideThreshold(t *testing.T) {
	cipher := newTestCipher(t)
	repo := newFakeCredentialRepo(seedCredential(t, cipher, "assurelink", time.Now().Add(2*time.Minute)))
	refresher := &fakeRefresher{result: &oauth.TokenSet{
		AccessToken:  "renewed-access",
		RefreshToken: "renewed-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}}
	manager := NewCredentialManager(repo, cipher, refresher, logger.NewNop(), 5*time.Minute, time.Minute)

	token, err := manager.GetAccessToken(context.Background(), "assurelink")
	require.NoError(t, err)
	assert.Equal(t, "renewed-access", token)
	assert.Equal(t, 1, refresher.callCount())

	// Stored tokens are ciphertext, never plaintext
	stored, err := repo.FindByProviderID(context.Background(), "assurelink")
	require.NoError(t, err)
	assert.NotEqual(t, "renewed-access", stored.AccessToken)
	decrypted, err := cipher.Decrypt(stored.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "renewed-access", decrypted)
}

func TestGetAccessTokenRenewsAtMostOnce(t *testing.T) {
	cipher := newTestCipher(t)
	repo := newFakeCredentialRepo(seedCredential(t, cipher, "assurelink", time.Now().Add(time.Minute)))
	// Renewal succeeds but the new expiry is still inside the threshold;
	// the guard must prevent a renewal loop.
	refresher := &fakeRefresher{result: &oauth.TokenSet{
		AccessToken: "renewed-access",
		Expiry:      time.Now().Add(time.Minute),
	}}
	manager := NewCredentialManager(repo, cipher, refresher, logger.NewNop(), 5*time.Minute, time.Minute)

	token, err := manager.GetAccessToken(context.Background(), "assurelink")
	require.NoError(t, err)
	assert.Equal(t, "renewed-access", token)
	assert.Equal(t, 1, refresher.callCount())
}

func TestGetAccessTokenRenewalFailure(t *testing.T) {
	cipher := newTestCipher(t)
	repo := newFakeCredentialRepo(seedCredential(t, cipher, "assurelink", time.Now().Add(time.Minute)))
	refresher := &fakeRefresher{err: assert.AnError}
	manager := NewCredentialManager(repo, cipher, refresher, logger.NewNop(), 5*time.Minute, time.Minute)

	_, err := manager.GetAccessToken(context.Background(), "assurelink")
	assert.ErrorIs(t, err, entity.ErrTokenRenewalFailed)
}

func TestGetAccessTokenUnknownProvider(t *testing.T) {
	cipher := newTestCipher(t)
	manager := NewCredentialManager(newFakeCredentialRepo(), cipher, &fakeRefresher{}, logger.NewNop(), 5*time.Minute, time.Minute)

	_, err := manager.GetAccessToken(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrCredentialNotFound)
}

func TestGetAccessTokenInactiveProvider(t *testing.T) {
	cipher := newTestCipher(t)
	cred := seedCredential(t, cipher, "assurelink", time.Now().Add(time.Hour))
	cred.Active = false
	manager := NewCredentialManager(newFakeCredentialRepo(cred), cipher, &fakeRefresher{}, logger.NewNop(), 5*time.Minute, time.Minute)

	_, err := manager.GetAccessToken(context.Background(), "assurelink")
	assert.ErrorIs(t, err, entity.ErrCredentialNotFound)
}

func TestUpdateTokensKeepsRefreshWhenEmpty(t *testing.T) {
	cipher := newTestCipher(t)
	cred := seedCredential(t, cipher, "assurelink", time.Now().Add(time.Hour))
	originalRefresh := cred.RefreshToken
	repo := newFakeCredentialRepo(cred)
	manager := NewCredentialManager(repo, cipher, &fakeRefresher{}, logger.NewNop(), 5*time.Minute, time.Minute)

	err := manager.UpdateTokens(context.Background(), "assurelink", "new-access", "", 3600)
	require.NoError(t, err)

	stored, err := repo.FindByProviderID(context.Background(), "assurelink")
	require.NoError(t, err)
	assert.Equal(t, originalRefresh, stored.RefreshToken)
	require.NotNil(t, stored.Expiry)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.Expiry, 5*time.Second)
}

func TestDecryptedCredential(t *testing.T) {
	cipher := newTestCipher(t)
	cred := seedCredential(t, cipher, "assurelink", time.Now().Add(time.Hour))
	secret, err := cipher.Encrypt("plain-secret")
	require.NoError(t, err)
	cred.ClientSecret = secret

	manager := NewCredentialManager(newFakeCredentialRepo(cred), cipher, &fakeRefresher{}, logger.NewNop(), 5*time.Minute, time.Minute)

	decrypted, err := manager.DecryptedCredential(context.Background(), "assurelink")
	require.NoError(t, err)
	assert.Equal(t, "plain-access", decrypted.AccessToken)
	assert.Equal(t, "plain-refresh", decrypted.RefreshToken)
	assert.Equal(t, "plain-secret", decrypted.ClientSecret)
}

func TestRenewExpiringIsolatesFailures(t *testing.T) {
	cipher := newTestCipher(t)
	failing := seedCredential(t, cipher, "failing", time.Now().Add(time.Minute))
	failing.RefreshToken = "" // renewal will fail for this one
	healthy := seedCredential(t, cipher, "healthy", time.Now().Add(time.Minute))

	repo := newFakeCredentialRepo(failing, healthy)
	refresher := &fakeRefresher{result: &oauth.TokenSet{
		AccessToken: "renewed-access",
		Expiry:      time.Now().Add(time.Hour),
	}}
	manager := NewCredentialManager(repo, cipher, refresher, logger.NewNop(), 5*time.Minute, time.Minute)

	manager.renewExpiring(context.Background())

	// The healthy credential still got renewed
	assert.Equal(t, 1, refresher.callCount())
	stored, err := repo.FindByProviderID(context.Background(), "healthy")
	require.NoError(t, err)
	decrypted, err := cipher.Decrypt(stored.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "renewed-access", decrypted)
}
