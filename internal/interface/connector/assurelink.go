package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/pkg/logger"
)

const assureLinkProviderID = "assurelink"

// AssureLink integrates the AssureLink underwriting API: client-credentials
// grant, flat plan arrays with numeric coverage fields.
type AssureLink struct {
	client    *apiClient
	creds     CredentialSource
	exchanger TokenExchanger
	rates     repository.CurrencyRateRepository
	logger    logger.Logger
}

// NewAssureLink creates a new AssureLink connector
func NewAssureLink(creds CredentialSource, exchanger TokenExchanger, rates repository.CurrencyRateRepository, logger logger.Logger) *AssureLink {
	c := &AssureLink{
		creds:     creds,
		exchanger: exchanger,
		rates:     rates,
		logger:    logger,
	}
	c.client = newAPIClient(assureLinkProviderID, creds, logger)
	c.client.authenticate = c.Authenticate
	return c
}

// ProviderID returns the stable provider identifier
func (c *AssureLink) ProviderID() string {
	return assureLinkProviderID
}

// Authenticate performs the client-credentials exchange and stores the token
func (c *AssureLink) Authenticate(ctx context.Context) (string, error) {
	cred, err := c.creds.DecryptedCredential(ctx, assureLinkProviderID)
	if err != nil {
		return "", err
	}

	var scopes []string
	if cred.Scope != "" {
		scopes = strings.Fields(cred.Scope)
	}

	token, err := c.exchanger.ClientCredentials(ctx, cred.AuthURL, cred.ClientID, cred.ClientSecret, scopes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrAuthenticationFailed, err)
	}

	if err := c.creds.UpdateTokens(ctx, assureLinkProviderID, token.AccessToken, token.RefreshToken, expiresInSeconds(token.Expiry)); err != nil {
		return "", fmt.Errorf("failed to store tokens: %w", err)
	}

	return token.AccessToken, nil
}

type assureLinkQuoteRequest struct {
	Destination string `json:"destination"`
	TripDays    int    `json:"tripDays"`
	Travellers  int    `json:"travellers"`
	AverageAge  int    `json:"averageAge"`
}

type assureLinkPlan struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Price           *float64 `json:"price"`
	Currency        string   `json:"currency"`
	MedicalCoverage float64  `json:"medicalCoverage"`
	BaggageCoverage float64  `json:"baggageCoverage"`
	CovidCovered    bool     `json:"covidCovered"`
}

type assureLinkQuoteResponse struct {
	RequestID string           `json:"requestId"`
	Plans     []assureLinkPlan `json:"plans"`
}

// GetPlans performs the quote call, validates and normalizes the response
// and applies the provider markup
func (c *AssureLink) GetPlans(ctx context.Context, quote entity.QuoteContext) ([]entity.NormalizedPlan, error) {
	cred, err := c.creds.DecryptedCredential(ctx, assureLinkProviderID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(assureLinkQuoteRequest{
		Destination: quote.Destination,
		TripDays:    quote.Days,
		Travellers:  quote.PaxCount,
		AverageAge:  quote.AverageAge,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/quotes", cred.BaseURL)
	resp, err := c.client.doWithRetry(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: quote call returned status %d", entity.ErrProviderUnavailable, resp.StatusCode)
	}

	var raw assureLinkQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrSchemaValidation, err)
	}

	plans, err := c.normalizePlans(&raw, quote)
	if err != nil {
		return nil, err
	}

	return applyMarkup(plans, cred.Markup), nil
}

// normalizePlans maps the AssureLink schema onto the canonical plan shape
func (c *AssureLink) normalizePlans(raw *assureLinkQuoteResponse, quote entity.QuoteContext) ([]entity.NormalizedPlan, error) {
	plans := make([]entity.NormalizedPlan, 0, len(raw.Plans))
	for _, p := range raw.Plans {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: plan missing id or name", entity.ErrSchemaValidation)
		}
		if p.Price == nil || *p.Price <= 0 {
			return nil, fmt.Errorf("%w: plan %s has missing or non-positive price", entity.ErrSchemaValidation, p.ID)
		}

		plans = append(plans, entity.NormalizedPlan{
			ProviderID:  assureLinkProviderID,
			PlanID:      p.ID,
			Name:        p.Name,
			Price:       *p.Price,
			Currency:    p.Currency,
			Destination: quote.Destination,
			Coverage: entity.CoverageLimits{
				Medical: p.MedicalCoverage,
				Baggage: p.BaggageCoverage,
				Covid:   p.CovidCovered,
			},
			Days: quote.Days,
			Metadata: map[string]interface{}{
				"requestId": raw.RequestID,
			},
		})
	}
	return plans, nil
}

type assureLinkCatalogResponse struct {
	Plans []struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Currency     string   `json:"currency"`
		Coverages    []string `json:"coverages"`
		Destinations []struct {
			Slug     string `json:"slug"`
			AgeBands []struct {
				MinAge int      `json:"minAge"`
				MaxAge int      `json:"maxAge"`
				Price  *float64 `json:"price"`
			} `json:"ageBands"`
		} `json:"destinations"`
	} `json:"plans"`
}

// FetchCatalog pulls the full AssureLink plan catalog
func (c *AssureLink) FetchCatalog(ctx context.Context) ([]entity.InsurancePlan, error) {
	cred, err := c.creds.DecryptedCredential(ctx, assureLinkProviderID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/catalog", cred.BaseURL)
	resp, err := c.client.doWithRetry(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog call returned status %d", entity.ErrProviderUnavailable, resp.StatusCode)
	}

	var raw assureLinkCatalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrSchemaValidation, err)
	}

	catalog := make([]entity.InsurancePlan, 0, len(raw.Plans))
	for _, p := range raw.Plans {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: catalog plan missing id or name", entity.ErrSchemaValidation)
		}

		plan := entity.InsurancePlan{
			ExternalID: p.ID,
			ProviderID: assureLinkProviderID,
			Name:       p.Name,
			Currency:   p.Currency,
			Coverages:  p.Coverages,
		}
		for _, d := range p.Destinations {
			dest := entity.PlanDestination{Slug: d.Slug}
			for _, b := range d.AgeBands {
				if b.Price == nil || *b.Price <= 0 {
					return nil, fmt.Errorf("%w: catalog plan %s has invalid age-band price", entity.ErrSchemaValidation, p.ID)
				}
				dest.AgeBands = append(dest.AgeBands, entity.PlanAgeBand{
					MinAge: b.MinAge,
					MaxAge: b.MaxAge,
					Price:  *b.Price,
				})
			}
			plan.Destinations = append(plan.Destinations, dest)
		}
		catalog = append(catalog, plan)
	}
	return catalog, nil
}

type assureLinkRateResponse struct {
	Pair string   `json:"pair"`
	Rate *float64 `json:"rate"`
	Date string   `json:"date"`
}

// RefreshCotation fetches today's USD/EUR rate and upserts the singleton row
func (c *AssureLink) RefreshCotation(ctx context.Context) error {
	cred, err := c.creds.DecryptedCredential(ctx, assureLinkProviderID)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/rates/today?pair=USD-EUR", cred.BaseURL)
	resp, err := c.client.doWithRetry(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: rate call returned status %d", entity.ErrProviderUnavailable, resp.StatusCode)
	}

	var raw assureLinkRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrSchemaValidation, err)
	}
	if raw.Rate == nil || *raw.Rate <= 0 {
		return fmt.Errorf("%w: missing or non-positive rate", entity.ErrSchemaValidation)
	}

	rateDate, err := time.Parse("2006-01-02", raw.Date)
	if err != nil {
		rateDate = time.Now()
	}

	return c.rates.UpsertRate(ctx, &entity.CurrencyRate{
		ProviderID: assureLinkProviderID,
		Base:       "USD",
		Quote:      "EUR",
		Rate:       *raw.Rate,
		RateDate:   rateDate,
	})
}
