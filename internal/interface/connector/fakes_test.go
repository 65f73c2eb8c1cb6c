package connector

import (
	"context"
	"sync"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/infrastructure/oauth"
)

// fakeCreds is an in-memory CredentialSource preloaded with one
// decrypted credential
type fakeCreds struct {
	mu          sync.Mutex
	cred        entity.ProviderCredential
	accessToken string
	tokenErr    error

	updatedAccess  string
	updatedRefresh string
	updateCalls    int
}

func (f *fakeCreds) GetAccessToken(ctx context.Context, providerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.accessToken, nil
}

func (f *fakeCreds) UpdateTokens(ctx context.Context, providerID, accessToken, refreshToken string, expiresIn int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedAccess = accessToken
	f.updatedRefresh = refreshToken
	f.updateCalls++
	return nil
}

func (f *fakeCreds) DecryptedCredential(ctx context.Context, providerID string) (*entity.ProviderCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := f.cred
	return &copied, nil
}

// fakeExchanger is a scriptable TokenExchanger with call counters
type fakeExchanger struct {
	mu sync.Mutex

	token *oauth.TokenSet
	err   error

	clientCredentialsCalls int
	passwordCalls          int
	lastUsername           string
	lastScopes             []string
}

func (f *fakeExchanger) ClientCredentials(ctx context.Context, tokenURL, clientID, clientSecret string, scopes []string) (*oauth.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientCredentialsCalls++
	f.lastScopes = scopes
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func (f *fakeExchanger) Password(ctx context.Context, tokenURL, username, password string, scopes []string) (*oauth.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwordCalls++
	f.lastUsername = username
	f.lastScopes = scopes
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func (f *fakeExchanger) authCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientCredentialsCalls + f.passwordCalls
}

// fakeRates records currency-rate upserts in memory
type fakeRates struct {
	mu    sync.Mutex
	rates []*entity.CurrencyRate
}

func (f *fakeRates) UpsertRate(ctx context.Context, rate *entity.CurrencyRate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *rate
	f.rates = append(f.rates, &copied)
	return nil
}

func (f *fakeRates) last() *entity.CurrencyRate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rates) == 0 {
		return nil
	}
	return f.rates[len(f.rates)-1]
}
