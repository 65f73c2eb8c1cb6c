package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/internal/interface/connector"
	"quotecast-service/pkg/logger"
	"quotecast-service/pkg/metrics"
	"quotecast-service/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// QuoteOrchestrator aggregates quotes across every active provider:
// validate once, fan out concurrently cache-first, settle all outcomes
// and aggregate into one envelope. Partial provider failure never fails
// the overall request; retries belong to the connectors, not here.
type QuoteOrchestrator struct {
	connectors      []connector.Connector
	credentials     repository.CredentialRepository
	cache           *QuoteCache
	logger          logger.Logger
	metrics         *metrics.Metrics
	validate        *validator.Validate
	providerTimeout time.Duration
	defaultCurrency string
}

// NewQuoteOrchestrator creates a new quote orchestrator
func NewQuoteOrchestrator(
	connectors []connector.Connector,
	credentials repository.CredentialRepository,
	cache *QuoteCache,
	logger logger.Logger,
	m *metrics.Metrics,
	providerTimeout time.Duration,
	defaultCurrency string,
) *QuoteOrchestrator {
	return &QuoteOrchestrator{
		connectors:      connectors,
		credentials:     credentials,
		cache:           cache,
		logger:          logger,
		metrics:         m,
		validate:        validator.New(),
		providerTimeout: providerTimeout,
		defaultCurrency: defaultCurrency,
	}
}

// providerOutcome is one fan-out task's settled result
type providerOutcome struct {
	providerID string
	plans      []entity.NormalizedPlan
	failed     bool
	cacheTime  time.Duration
	callTime   time.Duration
}

// GetQuotes runs one aggregation: Validating, FanningOut, Aggregating,
// Responding.
func (o *QuoteOrchestrator) GetQuotes(ctx context.Context, req *entity.QuoteRequest) (*entity.QuoteResponse, error) {
	started := time.Now()

	if err := o.validateRequest(req); err != nil {
		return nil, err
	}

	quote := entity.QuoteContext{
		Destination: req.Destination,
		Days:        utils.TripDays(req.StartDate, req.EndDate),
		PaxCount:    len(req.Passengers),
		AverageAge:  utils.AverageAge(req.Passengers),
		Currency:    req.Currency,
	}
	quote.AgeGroup = utils.AgeGroupFor(quote.AverageAge)

	active, err := o.activeConnectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active providers: %w", err)
	}

	outcomes := o.fanOut(ctx, active, quote, req.Preview)

	var plans []entity.NormalizedPlan
	tally := entity.InsurerTally{Total: len(outcomes)}
	var cacheTime, callTime time.Duration
	for _, outcome := range outcomes {
		if outcome.failed {
			tally.Failed++
		} else {
			tally.Successful++
			plans = append(plans, outcome.plans...)
		}
		cacheTime += outcome.cacheTime
		callTime += outcome.callTime
	}

	o.aggregate(plans)

	if o.metrics != nil {
		o.metrics.QuotesServed.Inc()
		o.metrics.QuoteDuration.Observe(time.Since(started).Seconds())
	}

	if plans == nil {
		plans = []entity.NormalizedPlan{}
	}
	return &entity.QuoteResponse{
		RequestID:   uuid.NewString(),
		Destination: quote.Destination,
		Days:        quote.Days,
		PaxCount:    quote.PaxCount,
		AverageAge:  quote.AverageAge,
		AgeGroup:    quote.AgeGroup,
		Insurers:    tally,
		Timing: entity.QuoteTiming{
			TotalMs:    time.Since(started).Milliseconds(),
			CacheMs:    cacheTime.Milliseconds(),
			ProviderMs: callTime.Milliseconds(),
		},
		Preview: req.Preview,
		Plans:   plans,
	}, nil
}

// validateRequest rejects structurally or semantically invalid requests
// before any network activity
func (o *QuoteOrchestrator) validateRequest(req *entity.QuoteRequest) error {
	if err := o.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
	}
	if len(req.Passengers) == 0 {
		return fmt.Errorf("%w: at least one passenger is required", entity.ErrInvalidRequest)
	}
	for _, p := range req.Passengers {
		if p.Age < 0 || p.Age > 120 {
			return fmt.Errorf("%w: passenger age must be between 0 and 120", entity.ErrInvalidRequest)
		}
	}
	if !req.StartDate.After(time.Now()) {
		return fmt.Errorf("%w: trip start must be in the future", entity.ErrInvalidRequest)
	}
	if !req.EndDate.After(req.StartDate) {
		return fmt.Errorf("%w: trip end must be after trip start", entity.ErrInvalidRequest)
	}
	return nil
}

// activeConnectors filters the registered connectors down to providers
// with an active credential
func (o *QuoteOrchestrator) activeConnectors(ctx context.Context) ([]connector.Connector, error) {
	creds, err := o.credentials.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	activeIDs := make(map[string]bool, len(creds))
	for _, cred := range creds {
		activeIDs[cred.ProviderID] = true
	}

	var active []connector.Connector
	for _, conn := range o.connectors {
		if activeIDs[conn.ProviderID()] {
			active = append(active, conn)
		}
	}
	return active, nil
}

// fanOut launches one task per provider and waits for all of them. Each
// task settles its own outcome; no failure propagates past its boundary.
func (o *QuoteOrchestrator) fanOut(ctx context.Context, active []connector.Connector, quote entity.QuoteContext, preview bool) []providerOutcome {
	outcomes := make([]providerOutcome, len(active))
	var wg sync.WaitGroup
	for i, conn := range active {
		wg.Add(1)
		go func(i int, conn connector.Connector) {
			defer wg.Done()
			outcomes[i] = o.runProvider(ctx, conn, quote, preview)
		}(i, conn)
	}
	wg.Wait()
	return outcomes
}

// runProvider resolves one provider's plans: cache first, connector on
// miss unless preview mode suppresses upstream calls entirely.
func (o *QuoteOrchestrator) runProvider(ctx context.Context, conn connector.Connector, quote entity.QuoteContext, preview bool) providerOutcome {
	outcome := providerOutcome{providerID: conn.ProviderID()}
	key := QuoteKey(quote.Destination, quote.PaxCount, quote.AgeGroup, quote.Days, conn.ProviderID())

	var revalidate RevalidateFunc
	if !preview {
		revalidate = func(rctx context.Context) ([]entity.NormalizedPlan, error) {
			callCtx, cancel := context.WithTimeout(rctx, o.providerTimeout)
			defer cancel()
			return conn.GetPlans(callCtx, quote)
		}
	}

	cacheStart := time.Now()
	cached, hit := o.cache.Get(ctx, key, conn.ProviderID(), quote, revalidate)
	outcome.cacheTime = time.Since(cacheStart)

	if hit {
		outcome.plans = cached
		if o.metrics != nil {
			o.metrics.ProviderCalls.WithLabelValues(conn.ProviderID(), "cache").Inc()
		}
		return outcome
	}

	if preview {
		// Cache-only: a cold cache yields an empty but valid result
		return outcome
	}

	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	callStart := time.Now()
	plans, err := conn.GetPlans(callCtx, quote)
	outcome.callTime = time.Since(callStart)

	if err != nil {
		outcome.failed = true
		if o.metrics != nil {
			o.metrics.ProviderCalls.WithLabelValues(conn.ProviderID(), "failure").Inc()
		}
		o.logger.Error("Provider quote call failed",
			"provider", conn.ProviderID(),
			"destination", quote.Destination,
			"error", err)
		return outcome
	}

	if o.metrics != nil {
		o.metrics.ProviderCalls.WithLabelValues(conn.ProviderID(), "success").Inc()
	}
	outcome.plans = plans

	if err := o.cache.Set(ctx, key, conn.ProviderID(), quote, plans); err != nil {
		o.logger.Warn("Failed to cache provider plans",
			"provider", conn.ProviderID(),
			"key", key,
			"error", err)
	}
	return outcome
}

// aggregate defaults unset currencies to the platform default and sorts
// by price ascending, breaking ties by higher medical coverage
func (o *QuoteOrchestrator) aggregate(plans []entity.NormalizedPlan) {
	for i := range plans {
		if plans[i].Currency == "" {
			plans[i].Currency = o.defaultCurrency
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Price != plans[j].Price {
			return plans[i].Price < plans[j].Price
		}
		return plans[i].Coverage.Medical > plans[j].Coverage.Medical
	})
}
