package usecase

import (
	"context"
	"math"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/internal/interface/connector"
	"quotecast-service/pkg/logger"
	"quotecast-service/pkg/metrics"
)

// CatalogSynchronizer pulls each active provider's full plan catalog and
// upserts it into the durable catalog, independent of the live quote path.
// One provider failing is counted and never aborts the remaining providers.
type CatalogSynchronizer struct {
	connectors  []connector.Connector
	credentials repository.CredentialRepository
	plans       repository.PlanRepository
	logger      logger.Logger
	metrics     *metrics.Metrics
	retryBudget int
}

// NewCatalogSynchronizer creates a new catalog synchronizer. retryBudget
// is the number of attempts per provider, minimum 1.
func NewCatalogSynchronizer(
	connectors []connector.Connector,
	credentials repository.CredentialRepository,
	plans repository.PlanRepository,
	logger logger.Logger,
	m *metrics.Metrics,
	retryBudget int,
) *CatalogSynchronizer {
	if retryBudget < 1 {
		retryBudget = 1
	}
	return &CatalogSynchronizer{
		connectors:  connectors,
		credentials: credentials,
		plans:       plans,
		logger:      logger,
		metrics:     m,
		retryBudget: retryBudget,
	}
}

// Sync runs one full catalog synchronization across all active providers
func (s *CatalogSynchronizer) Sync(ctx context.Context) (*entity.SyncResult, error) {
	started := time.Now()

	creds, err := s.credentials.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	activeIDs := make(map[string]bool, len(creds))
	for _, cred := range creds {
		activeIDs[cred.ProviderID] = true
	}

	result := &entity.SyncResult{}
	for _, conn := range s.connectors {
		if !activeIDs[conn.ProviderID()] {
			continue
		}
		result.Providers++

		upserted, err := s.syncProvider(ctx, conn)
		if err != nil {
			result.Failed++
			if s.metrics != nil {
				s.metrics.CatalogSyncRuns.WithLabelValues("failure").Inc()
			}
			s.logger.Error("Catalog sync failed for provider",
				"provider", conn.ProviderID(),
				"error", err)
			continue
		}

		result.Successful++
		result.PlansUpserted += upserted
		if s.metrics != nil {
			s.metrics.CatalogSyncRuns.WithLabelValues("success").Inc()
		}
	}

	result.DurationMs = time.Since(started).Milliseconds()
	s.logger.Info("Catalog sync finished",
		"providers", result.Providers,
		"successful", result.Successful,
		"failed", result.Failed,
		"plansUpserted", result.PlansUpserted,
		"durationMs", result.DurationMs)
	return result, nil
}

// syncProvider refreshes one provider's cotation, fetches its catalog and
// upserts every plan, retrying the whole unit within the retry budget
func (s *CatalogSynchronizer) syncProvider(ctx context.Context, conn connector.Connector) (int, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(syncBackoff(attempt - 1)):
			}
		}

		upserted, err := s.syncOnce(ctx, conn)
		if err == nil {
			return upserted, nil
		}
		lastErr = err
		s.logger.Warn("Catalog sync attempt failed",
			"provider", conn.ProviderID(),
			"attempt", attempt+1,
			"error", err)
	}
	return 0, lastErr
}

func (s *CatalogSynchronizer) syncOnce(ctx context.Context, conn connector.Connector) (int, error) {
	if err := conn.RefreshCotation(ctx); err != nil {
		return 0, err
	}

	catalog, err := conn.FetchCatalog(ctx)
	if err != nil {
		return 0, err
	}

	upserted := 0
	for i := range catalog {
		changed, err := s.plans.Upsert(ctx, &catalog[i])
		if err != nil {
			return upserted, err
		}
		if changed {
			upserted++
		}
	}
	return upserted, nil
}

// syncBackoff mirrors the connector backoff shape: min(1s * 2^attempt, 10s)
func syncBackoff(attempt int) time.Duration {
	delay := time.Duration(float64(time.Second) * math.Pow(2, float64(attempt)))
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	return delay
}
