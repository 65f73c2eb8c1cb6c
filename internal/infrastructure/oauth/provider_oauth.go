package oauth

import (
	"context"
	"fmt"
	"time"

	"quotecast-service/pkg/logger"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSet is the result of one token exchange against a provider endpoint.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// ProviderOAuth performs OAuth token exchanges against provider token
// endpoints. Grant selection is the connector's call; this type only
// knows the wire exchanges.
type ProviderOAuth struct {
	logger logger.Logger
}

// NewProviderOAuth creates a new provider OAuth exchanger
func NewProviderOAuth(logger logger.Logger) *ProviderOAuth {
	return &ProviderOAuth{
		logger: logger,
	}
}

// Refresh exchanges a refresh token for a fresh token set
func (o *ProviderOAuth) Refresh(ctx context.Context, tokenURL, clientID, clientSecret, refreshToken string) (*TokenSet, error) {
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}

	// Force refresh by handing the source an already-expired token
	seed := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now(),
	}

	token, err := config.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh exchange failed: %w", err)
	}

	return fromOAuth2Token(token), nil
}

// ClientCredentials performs a client-credentials grant
func (o *ProviderOAuth) ClientCredentials(ctx context.Context, tokenURL, clientID, clientSecret string, scopes []string) (*TokenSet, error) {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}

	token, err := config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("client-credentials exchange failed: %w", err)
	}

	return fromOAuth2Token(token), nil
}

// Password performs a resource-owner password grant
func (o *ProviderOAuth) Password(ctx context.Context, tokenURL, username, password string, scopes []string) (*TokenSet, error) {
	config := &oauth2.Config{
		Endpoint: oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:   scopes,
	}

	token, err := config.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("password exchange failed: %w", err)
	}

	return fromOAuth2Token(token), nil
}

func fromOAuth2Token(token *oauth2.Token) *TokenSet {
	return &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
}
