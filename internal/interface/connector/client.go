package connector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/pkg/logger"
)

const (
	maxAttempts = 3
	baseBackoff = 1 * time.Second
	maxBackoff  = 10 * time.Second
)

// apiClient is the shared HTTP behavior connectors compose: bearer-token
// requests with retry on network failure, 5xx and 401, exponential backoff
// and inline re-authentication on 401.
type apiClient struct {
	providerID   string
	creds        CredentialSource
	httpClient   *http.Client
	logger       logger.Logger
	authenticate func(ctx context.Context) (string, error)
}

func newAPIClient(providerID string, creds CredentialSource, logger logger.Logger) *apiClient {
	return &apiClient{
		providerID: providerID,
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// backoffDelay is min(1s * 2^attempt, 10s) for the attempt that just failed
func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(baseBackoff) * math.Pow(2, float64(attempt)))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// doWithRetry executes the request built by build with a bearer token.
// A missing response, a status >= 500 or a 401 is retried up to
// maxAttempts times; on 401 the connector re-authenticates first and the
// retried request carries the new token. Exhausting the budget propagates
// the last failure as ErrProviderUnavailable.
func (c *apiClient) doWithRetry(ctx context.Context, build func(token string) (*http.Request, error)) (*http.Response, error) {
	token, err := c.creds.GetAccessToken(ctx, c.providerID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt - 1)):
			}
		}

		req, err := build(token)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("Provider request failed",
				"provider", c.providerID,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			lastErr = fmt.Errorf("provider returned status 401")
			c.logger.Warn("Provider rejected token, re-authenticating",
				"provider", c.providerID,
				"attempt", attempt+1)
			newToken, authErr := c.authenticate(ctx)
			if authErr != nil {
				lastErr = authErr
				continue
			}
			token = newToken
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("provider returned status %d", resp.StatusCode)
			c.logger.Warn("Provider server error",
				"provider", c.providerID,
				"status", resp.StatusCode,
				"attempt", attempt+1)
		default:
			return resp, nil
		}
	}

	return nil, fmt.Errorf("%w: %v", entity.ErrProviderUnavailable, lastErr)
}

// applyMarkup multiplies every plan price by (1 + markup/100). A zero or
// absent markup leaves prices unchanged.
func applyMarkup(plans []entity.NormalizedPlan, markup float64) []entity.NormalizedPlan {
	if markup == 0 {
		return plans
	}
	for i := range plans {
		plans[i].Price = math.Round(plans[i].Price*(1+markup/100)*100) / 100
		plans[i].MarkupApplied = true
	}
	return plans
}

// expiresInSeconds converts an absolute token expiry to the relative form
// the credential manager persists
func expiresInSeconds(expiry time.Time) int64 {
	if expiry.IsZero() {
		return 0
	}
	return int64(time.Until(expiry).Seconds())
}
