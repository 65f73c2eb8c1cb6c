package entity

import (
	"time"
)

// ProviderCredential represents the stored credential set for one
// underwriting provider. Token fields hold AEAD ciphertext (base64 of
// nonce||ciphertext||tag); plaintext tokens only ever exist in process
// memory for the duration of a single operation.
type ProviderCredential struct {
	ID           uint
	ProviderID   string
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
	AuthURL      string
	BaseURL      string
	ClientID     string
	ClientSecret string
	GrantType    string
	Scope        string
	Markup       float64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
