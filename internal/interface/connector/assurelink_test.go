package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/infrastructure/oauth"
	"quotecast-service/pkg/logger"
)

func newAssureLinkCreds(baseURL string) *fakeCreds {
	return &fakeCreds{
		accessToken: "valid-token",
		cred: entity.ProviderCredential{
			ProviderID:   assureLinkProviderID,
			BaseURL:      baseURL,
			AuthURL:      baseURL + "/oauth/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Scope:        "quotes catalog",
			Active:       true,
		},
	}
}

func assureLinkTestContext() entity.QuoteContext {
	return entity.QuoteContext{
		Destination: "france",
		Days:        10,
		PaxCount:    2,
		AverageAge:  35,
		AgeGroup:    entity.AgeGroupAdult,
	}
}

func writeAssureLinkQuote(w http.ResponseWriter, prices ...float64) {
	resp := assureLinkQuoteResponse{RequestID: "req-1"}
	for i, price := range prices {
		p := price
		resp.Plans = append(resp.Plans, assureLinkPlan{
			ID:              string(rune('a' + i)),
			Name:            "Plan",
			Price:           &p,
			Currency:        "USD",
			MedicalCoverage: 30000,
		})
	}
	json.NewEncoder(w).Encode(resp)
}

func TestAssureLinkGetPlansNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes", r.URL.Path)
		assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))

		var req assureLinkQuoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "france", req.Destination)
		assert.Equal(t, 10, req.TripDays)
		assert.Equal(t, 2, req.Travellers)

		writeAssureLinkQuote(w, 100)
	}))
	defer server.Close()

	conn := NewAssureLink(newAssureLinkCreds(server.URL), &fakeExchanger{}, &fakeRates{}, logger.NewNop())
	plans, err := conn.GetPlans(context.Background(), assureLinkTestContext())
	require.NoError(t, err)

	require.Len(t, plans, 1)
	assert.Equal(t, assureLinkProviderID, plans[0].ProviderID)
	assert.Equal(t, 100.0, plans[0].Price)
	assert.Equal(t, "france", plans[0].Destination)
	assert.Equal(t, 30000.0, plans[0].Coverage.Medical)
	assert.Equal(t, 10, plans[0].Days)
	assert.False(t, plans[0].MarkupApplied)
}

func TestAssureLinkGetPlansAppliesMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAssureLinkQuote(w, 100)
	}))
	defer server.Close()

	creds := newAssureLinkCreds(server.URL)
	creds.cred.Markup = 10

	conn := NewAssureLink(creds, &fakeExchanger{}, &fakeRates{}, logger.NewNop())
	plans, err := conn.GetPlans(context.Background(), assureLinkTestContext())
	require.NoError(t, err)

	require.Len(t, plans, 1)
	assert.Equal(t, 110.0, plans[0].Price)
	assert.True(t, plans[0].MarkupApplied)
}

func TestAssureLinkGetPlansMissingPriceFailsValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(assureLinkQuoteResponse{
			RequestID: "req-1",
			Plans:     []assureLinkPlan{{ID: "a", Name: "Plan", Currency: "USD"}},
		})
	}))
	defer server.Close()

	conn := NewAssureLink(newAssureLinkCreds(server.URL), &fakeExchanger{}, &fakeRates{}, logger.NewNop())
	_, err := conn.GetPlans(context.Background(), assureLinkTestContext())
	assert.ErrorIs(t, err, entity.ErrSchemaValidation)
}

func TestAssureLinkReauthenticatesOn401(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
		writeAssureLinkQuote(w, 100)
	}))
	defer server.Close()

	creds := newAssureLinkCreds(server.URL)
	exchanger := &fakeExchanger{token: &oauth.TokenSet{
		AccessToken: "fresh-token",
		Expiry:      time.Now().Add(time.Hour),
	}}

	conn := NewAssureLink(creds, exchanger, &fakeRates{}, logger.NewNop())
	plans, err := conn.GetPlans(context.Background(), assureLinkTestContext())
	require.NoError(t, err)

	require.Len(t, plans, 1)
	assert.Equal(t, 1, exchanger.authCount())
	assert.Equal(t, []string{"quotes", "catalog"}, exchanger.lastScopes)
	// The new token set was persisted through the credential source
	assert.Equal(t, "fresh-token", creds.updatedAccess)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestAssureLinkRetriesServerErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeAssureLinkQuote(w, 100)
	}))
	defer server.Close()

	conn := NewAssureLink(newAssureLinkCreds(server.URL), &fakeExchanger{}, &fakeRates{}, logger.NewNop())
	plans, err := conn.GetPlans(context.Background(), assureLinkTestContext())
	require.NoError(t, err)

	require.Len(t, plans, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestAssureLinkExhaustedRetriesReportUnavailable(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	conn := NewAssureLink(newAssureLinkCreds(server.URL), &fakeExchanger{}, &fakeRates{}, logger.NewNop())
	_, err := conn.GetPlans(context.Background(), assureLinkTestContext())

	assert.ErrorIs(t, err, entity.ErrProviderUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestAssureLinkFetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/catalog", r.URL.Path)
		w.Write([]byte(`{
			"plans": [{
				"id": "al-basic",
				"name": "Basic",
				"currency": "USD",
				"coverages": ["medical", "baggage"],
				"destinations": [{
					"slug": "france",
					"ageBands": [{"minAge": 0, "maxAge": 59, "price": 12.5}, {"minAge": 60, "maxAge": 120, "price": 25}]
				}]
			}]
		}`))
	}))
	defer server.Close()

	conn := NewAssureLink(newAssureLinkCreds(server.URL), &fakeExchanger{}, &fakeRates{}, logger.NewNop())
	catalog, err := conn.FetchCatalog(context.Background())
	require.NoError(t, err)

	require.Len(t, catalog, 1)
	plan := catalog[0]
	assert.Equal(t, "al-basic", plan.ExternalID)
	assert.Equal(t, assureLinkProviderID, plan.ProviderID)
	assert.Equal(t, []string{"medical", "baggage"}, plan.Coverages)
	require.Len(t, plan.Destinations, 1)
	require.Len(t, plan.Destinations[0].AgeBands, 2)
	assert.Equal(t, 25.0, plan.Destinations[0].AgeBands[1].Price)
}

func TestAssureLinkRefreshCotation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rates/today", r.URL.Path)
		assert.Equal(t, "USD-EUR", r.URL.Query().Get("pair"))
		w.Write([]byte(`{"pair": "USD-EUR", "rate": 0.92, "date": "2026-09-01"}`))
	}))
	defer server.Close()

	rates := &fakeRates{}
	conn := NewAssureLink(newAssureLinkCreds(server.URL), &fakeExchanger{}, rates, logger.NewNop())
	require.NoError(t, conn.RefreshCotation(context.Background()))

	rate := rates.last()
	require.NotNil(t, rate)
	assert.Equal(t, assureLinkProviderID, rate.ProviderID)
	assert.Equal(t, "USD", rate.Base)
	assert.Equal(t, "EUR", rate.Quote)
	assert.Equal(t, 0.92, rate.Rate)
	assert.Equal(t, 2026, rate.RateDate.Year())
}

func TestAssureLinkRefreshCotationRejectsMissingRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pair": "USD-EUR", "date": "2026-09-01"}`))
	}))
	defer server.Close()

	conn := NewAssureLink(newAssureLinkCreds(server.URL), &fakeExchanger{}, &fakeRates{}, logger.NewNop())
	err := conn.RefreshCotation(context.Background())
	assert.ErrorIs(t, err, entity.ErrSchemaValidation)
}
