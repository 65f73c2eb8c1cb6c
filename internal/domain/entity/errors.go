package entity

import "errors"

// Sentinel errors for the quote aggregation domain. Callers classify
// failures with errors.Is and wrap these with fmt.Errorf("%w") for context.
var (
	// ErrInvalidRequest marks a client-caused validation failure. No
	// network call is made once this is raised.
	ErrInvalidRequest = errors.New("invalid quote request")

	// ErrCredentialNotFound means no active credential exists for a provider.
	ErrCredentialNotFound = errors.New("provider credential not found")

	// ErrTokenRenewalFailed means the provider token endpoint rejected the refresh.
	ErrTokenRenewalFailed = errors.New("token renewal failed")

	// ErrAuthenticationFailed means the provider auth exchange returned non-2xx.
	ErrAuthenticationFailed = errors.New("provider authentication failed")

	// ErrProviderUnavailable means the retry budget for a provider call is exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSchemaValidation means the provider response is missing required
	// fields or carries non-numeric/non-positive values the normalizer
	// cannot trust.
	ErrSchemaValidation = errors.New("provider response failed schema validation")

	// ErrCacheUnavailable means the cache store is unreachable. The quote
	// path degrades to a forced miss instead of failing the request.
	ErrCacheUnavailable = errors.New("cache store unavailable")
)
