package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/pkg/logger"
	"quotecast-service/pkg/utils"
)

const meridianProviderID = "meridian"

// Meridian integrates the Meridian Seguros API. The API has several
// quirks the normalizer absorbs: product listings come back as an object
// keyed by arbitrary string indices instead of an array, prices are
// locale-formatted comma decimals ("1.234,56"), pricing is age-banded per
// destination, and the coverage list carries duplicates.
type Meridian struct {
	client    *apiClient
	creds     CredentialSource
	exchanger TokenExchanger
	rates     repository.CurrencyRateRepository
	logger    logger.Logger
}

// NewMeridian creates a new Meridian connector
func NewMeridian(creds CredentialSource, exchanger TokenExchanger, rates repository.CurrencyRateRepository, logger logger.Logger) *Meridian {
	c := &Meridian{
		creds:     creds,
		exchanger: exchanger,
		rates:     rates,
		logger:    logger,
	}
	c.client = newAPIClient(meridianProviderID, creds, logger)
	c.client.authenticate = c.Authenticate
	return c
}

// ProviderID returns the stable provider identifier
func (c *Meridian) ProviderID() string {
	return meridianProviderID
}

// Authenticate performs the password grant Meridian requires and stores
// the token set
func (c *Meridian) Authenticate(ctx context.Context) (string, error) {
	cred, err := c.creds.DecryptedCredential(ctx, meridianProviderID)
	if err != nil {
		return "", err
	}

	var scopes []string
	if cred.Scope != "" {
		scopes = strings.Fields(cred.Scope)
	}

	// Meridian issues API user/password pairs; they ride in the
	// credential's client id/secret columns.
	token, err := c.exchanger.Password(ctx, cred.AuthURL, cred.ClientID, cred.ClientSecret, scopes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrAuthenticationFailed, err)
	}

	if err := c.creds.UpdateTokens(ctx, meridianProviderID, token.AccessToken, token.RefreshToken, expiresInSeconds(token.Expiry)); err != nil {
		return "", fmt.Errorf("failed to store tokens: %w", err)
	}

	return token.AccessToken, nil
}

type meridianAgeBand struct {
	IdadeMin    int    `json:"idade_min"`
	IdadeMax    int    `json:"idade_max"`
	ValorDiaria string `json:"valor_diaria"`
}

type meridianDestination struct {
	Faixas []meridianAgeBand `json:"faixas"`
}

type meridianCoverage struct {
	Nome  string `json:"nome"`
	Valor string `json:"valor"`
}

type meridianProduct struct {
	Codigo     string                         `json:"codigo"`
	Nome       string                         `json:"nome"`
	Moeda      string                         `json:"moeda"`
	Destinos   map[string]meridianDestination `json:"destinos"`
	Coberturas []meridianCoverage             `json:"coberturas"`
}

// GetPlans performs the quote call, normalizes the indexed-object response
// and applies the provider markup
func (c *Meridian) GetPlans(ctx context.Context, quote entity.QuoteContext) ([]entity.NormalizedPlan, error) {
	cred, err := c.creds.DecryptedCredential(ctx, meridianProviderID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/produtos?destino=%s", cred.BaseURL, quote.Destination)
	products, err := c.fetchProducts(ctx, url)
	if err != nil {
		return nil, err
	}

	plans, err := c.normalizePlans(products, quote)
	if err != nil {
		return nil, err
	}

	return applyMarkup(plans, cred.Markup), nil
}

// fetchProducts calls a product listing endpoint and converts the
// indexed-object body back into a slice by keeping object-typed values only
func (c *Meridian) fetchProducts(ctx context.Context, url string) ([]meridianProduct, error) {
	resp, err := c.client.doWithRetry(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: product call returned status %d", entity.ErrProviderUnavailable, resp.StatusCode)
	}

	var indexed map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&indexed); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrSchemaValidation, err)
	}

	products := make([]meridianProduct, 0, len(indexed))
	for _, raw := range indexed {
		trimmed := strings.TrimSpace(string(raw))
		// Non-object values ("total", "status" and friends) are metadata
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var product meridianProduct
		if err := json.Unmarshal(raw, &product); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrSchemaValidation, err)
		}
		products = append(products, product)
	}
	return products, nil
}

// normalizePlans maps Meridian products onto the canonical plan shape:
// locale decimals parsed, the matching destination age band re-priced for
// the trip length and the coverage list deduplicated.
func (c *Meridian) normalizePlans(products []meridianProduct, quote entity.QuoteContext) ([]entity.NormalizedPlan, error) {
	plans := make([]entity.NormalizedPlan, 0, len(products))
	for _, product := range products {
		if product.Codigo == "" || product.Nome == "" {
			return nil, fmt.Errorf("%w: product missing codigo or nome", entity.ErrSchemaValidation)
		}

		dest, ok := product.Destinos[quote.Destination]
		if !ok {
			continue
		}

		var daily float64
		bandFound := false
		for _, band := range dest.Faixas {
			if quote.AverageAge >= band.IdadeMin && quote.AverageAge <= band.IdadeMax {
				parsed, err := utils.ParseLocaleDecimal(band.ValorDiaria)
				if err != nil {
					return nil, fmt.Errorf("%w: product %s: %v", entity.ErrSchemaValidation, product.Codigo, err)
				}
				if parsed <= 0 {
					return nil, fmt.Errorf("%w: product %s has non-positive daily price", entity.ErrSchemaValidation, product.Codigo)
				}
				daily = parsed
				bandFound = true
				break
			}
		}
		if !bandFound {
			continue
		}

		coverage, err := buildCoverage(product.Coberturas)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %v", entity.ErrSchemaValidation, product.Codigo, err)
		}

		plans = append(plans, entity.NormalizedPlan{
			ProviderID:  meridianProviderID,
			PlanID:      product.Codigo,
			Name:        product.Nome,
			Price:       daily * float64(quote.Days),
			Currency:    product.Moeda,
			Destination: quote.Destination,
			Coverage:    coverage,
			Days:        quote.Days,
			Metadata: map[string]interface{}{
				"dailyPrice": daily,
			},
		})
	}
	return plans, nil
}

// buildCoverage deduplicates the free-form coverage list and maps the
// known entries onto the canonical limits
func buildCoverage(coberturas []meridianCoverage) (entity.CoverageLimits, error) {
	var limits entity.CoverageLimits
	seen := make(map[string]bool, len(coberturas))
	for _, cob := range coberturas {
		name := strings.ToLower(strings.TrimSpace(cob.Nome))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch {
		case strings.Contains(name, "covid"):
			limits.Covid = true
		case strings.Contains(name, "bagagem"):
			value, err := utils.ParseLocaleDecimal(cob.Valor)
			if err != nil {
				return limits, err
			}
			limits.Baggage = value
		case strings.Contains(name, "dmh") || strings.Contains(name, "médica") || strings.Contains(name, "medica"):
			value, err := utils.ParseLocaleDecimal(cob.Valor)
			if err != nil {
				return limits, err
			}
			limits.Medical = value
		}
	}
	return limits, nil
}

// FetchCatalog pulls the full Meridian product catalog
func (c *Meridian) FetchCatalog(ctx context.Context) ([]entity.InsurancePlan, error) {
	cred, err := c.creds.DecryptedCredential(ctx, meridianProviderID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/produtos", cred.BaseURL)
	products, err := c.fetchProducts(ctx, url)
	if err != nil {
		return nil, err
	}

	catalog := make([]entity.InsurancePlan, 0, len(products))
	for _, product := range products {
		if product.Codigo == "" || product.Nome == "" {
			return nil, fmt.Errorf("%w: product missing codigo or nome", entity.ErrSchemaValidation)
		}

		plan := entity.InsurancePlan{
			ExternalID: product.Codigo,
			ProviderID: meridianProviderID,
			Name:       product.Nome,
			Currency:   product.Moeda,
		}

		seen := make(map[string]bool, len(product.Coberturas))
		for _, cob := range product.Coberturas {
			name := strings.TrimSpace(cob.Nome)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			plan.Coverages = append(plan.Coverages, name)
		}

		for slug, dest := range product.Destinos {
			destination := entity.PlanDestination{Slug: slug}
			for _, band := range dest.Faixas {
				price, err := utils.ParseLocaleDecimal(band.ValorDiaria)
				if err != nil {
					return nil, fmt.Errorf("%w: product %s: %v", entity.ErrSchemaValidation, product.Codigo, err)
				}
				destination.AgeBands = append(destination.AgeBands, entity.PlanAgeBand{
					MinAge: band.IdadeMin,
					MaxAge: band.IdadeMax,
					Price:  price,
				})
			}
			plan.Destinations = append(plan.Destinations, destination)
		}
		catalog = append(catalog, plan)
	}
	return catalog, nil
}

type meridianRateResponse struct {
	Par   string `json:"par"`
	Valor string `json:"valor"`
	Data  string `json:"data"`
}

// RefreshCotation fetches today's USD/EUR rate and upserts the singleton row
func (c *Meridian) RefreshCotation(ctx context.Context) error {
	cred, err := c.creds.DecryptedCredential(ctx, meridianProviderID)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v2/cambio/hoje", cred.BaseURL)
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

	var raw meridianRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrSchemaValidation, err)
	}

	rate, err := utils.ParseLocaleDecimal(raw.Valor)
	if err != nil || rate <= 0 {
		return fmt.Errorf("%w: invalid cotation value %q", entity.ErrSchemaValidation, raw.Valor)
	}

	rateDate, err := time.Parse("02/01/2006", raw.Data)
	if err != nil {
		rateDate = time.Now()
	}

	return c.rates.UpsertRate(ctx, &entity.CurrencyRate{
		ProviderID: meridianProviderID,
		Base:       "USD",
		Quote:      "EUR",
		Rate:       rate,
		RateDate:   rateDate,
	})
}
