package usecase

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"
	"quotecast-service/internal/infrastructure/oauth"
)

// fakeCacheStore is an in-memory CacheStore with atomic set-if-not-exists
type fakeCacheStore struct {
	mu         sync.Mutex
	data       map[string]string
	failGets   bool
	setNXCalls int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{data: make(map[string]string)}
}

func (s *fakeCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGets {
		return "", false, entity.ErrCacheUnavailable
	}
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *fakeCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeCacheStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *fakeCacheStore) SetIfNotExists(ctx context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setNXCalls++
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = value
	return true, nil
}

func (s *fakeCacheStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (s *fakeCacheStore) setNXCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setNXCalls
}

func (s *fakeCacheStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// fakeQuoteLog records audit appends in memory
type fakeQuoteLog struct {
	mu         sync.Mutex
	records    []*entity.QuoteLogRecord
	failAppend bool
}

func (l *fakeQuoteLog) Append(ctx context.Context, record *entity.QuoteLogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAppend {
		return fmt.Errorf("audit store down")
	}
	l.records = append(l.records, record)
	return nil
}

func (l *fakeQuoteLog) DeleteByCacheKey(ctx context.Context, cacheKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	for _, r := range l.records {
		if r.CacheKey != cacheKey {
			kept = append(kept, r)
		}
	}
	l.records = kept
	return nil
}

func (l *fakeQuoteLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// fakeCredentialRepo is an in-memory CredentialRepository
type fakeCredentialRepo struct {
	mu    sync.Mutex
	creds map[string]*entity.ProviderCredential
}

func newFakeCredentialRepo(creds ...*entity.ProviderCredential) *fakeCredentialRepo {
	repo := &fakeCredentialRepo{creds: make(map[string]*entity.ProviderCredential)}
	for _, cred := range creds {
		repo.creds[cred.ProviderID] = cred
	}
	return repo
}

func (r *fakeCredentialRepo) FindByProviderID(ctx context.Context, providerID string) (*entity.ProviderCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[providerID]
	if !ok {
		return nil, entity.ErrCredentialNotFound
	}
	copied := *cred
	return &copied, nil
}

func (r *fakeCredentialRepo) FindActive(ctx context.Context) ([]*entity.ProviderCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*entity.ProviderCredential
	for _, cred := range r.creds {
		if cred.Active {
			copied := *cred
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (r *fakeCredentialRepo) Update(ctx context.Context, providerID string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[providerID]
	if !ok {
		return entity.ErrCredentialNotFound
	}
	for name, value := range fields {
		switch name {
		case "access_token":
			cred.AccessToken = value.(string)
		case "refresh_token":
			cred.RefreshToken = value.(string)
		case "expiry":
			cred.Expiry = value.(*time.Time)
		}
	}
	return nil
}

// fakeRefresher counts refresh-token exchanges
type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	result *oauth.TokenSet
	err    error
}

func (f *fakeRefresher) Refresh(ctx context.Context, tokenURL, clientID, clientSecret, refreshToken string) (*oauth.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeConnector is a scriptable Connector with call counters
type fakeConnector struct {
	id          string
	plans       []entity.NormalizedPlan
	plansErr    error
	catalog     []entity.InsurancePlan
	catalogErr  error
	cotationErr error

	mu            sync.Mutex
	getPlansCalls int
	catalogCalls  int
	cotationCalls int
	cotationFails int // fail this many cotation calls, then succeed
}

func (f *fakeConnector) ProviderID() string { return f.id }

func (f *fakeConnector) Authenticate(ctx context.Context) (string, error) {
	return "token", nil
}

func (f *fakeConnector) GetPlans(ctx context.Context, quote entity.QuoteContext) ([]entity.NormalizedPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getPlansCalls++
	if f.plansErr != nil {
		return nil, f.plansErr
	}
	return f.plans, nil
}

func (f *fakeConnector) FetchCatalog(ctx context.Context) ([]entity.InsurancePlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}

func (f *fakeConnector) RefreshCotation(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cotationCalls++
	if f.cotationErr != nil {
		return f.cotationErr
	}
	if f.cotationFails > 0 {
		f.cotationFails--
		return fmt.Errorf("cotation endpoint down")
	}
	return nil
}

func (f *fakeConnector) planCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getPlansCalls
}

// fakePlanRepo is an in-memory PlanRepository with diffing upserts
type fakePlanRepo struct {
	mu     sync.Mutex
	plans  map[string]*entity.InsurancePlan
	writes int
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[string]*entity.InsurancePlan)}
}

func planKey(externalID, providerID string) string {
	return externalID + "|" + providerID
}

func (r *fakePlanRepo) FindMany(ctx context.Context, offset, limit int, filter repository.PlanFilter) ([]*entity.InsurancePlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.InsurancePlan
	for _, plan := range r.plans {
		copied := *plan
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakePlanRepo) FindOne(ctx context.Context, id uint) (*entity.InsurancePlan, error) {
	return nil, fmt.Errorf("not found")
}

func (r *fakePlanRepo) FindByExternalID(ctx context.Context, externalID, providerID string) (*entity.InsurancePlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[planKey(externalID, providerID)]
	if !ok {
		return nil, nil
	}
	copied := *plan
	return &copied, nil
}

func (r *fakePlanRepo) Upsert(ctx context.Context, plan *entity.InsurancePlan) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := planKey(plan.ExternalID, plan.ProviderID)
	existing, ok := r.plans[key]
	if ok && reflect.DeepEqual(existing, plan) {
		return false, nil
	}
	copied := *plan
	r.plans[key] = &copied
	r.writes++
	return true, nil
}

func (r *fakePlanRepo) Delete(ctx context.Context, id uint) error {
	return nil
}

func (r *fakePlanRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}
