package provisioning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensehq/expensehq/app/models"
	"github.com/expensehq/expensehq/internal/pkg/webhook"
)

// fakeRepository implements Repository over mutex-guarded maps so the
// concurrency tests exercise the same lose-the-race-is-success semantics as
// the conditional writes in the real store.
type fakeRepository struct {
	mu        sync.Mutex
	companies map[string]*models.Company
	users     map[string]models.CompanyUser
	entities  map[string]models.SystemEntity
	failAll   bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		companies: make(map[string]*models.Company),
		users:     make(map[string]models.CompanyUser),
		entities:  make(map[string]models.SystemEntity),
	}
}

func (r *fakeRepository) GetCompany(companyID string) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, webhook.Transientf("store unavailable")
	}
	company, ok := r.companies[companyID]
	if !ok {
		return nil, nil
	}
	copied := *company
	return &copied, nil
}

func (r *fakeRepository) CreateCompanyIfAbsent(company *models.Company) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return false, webhook.Transientf("store unavailable")
	}
	if _, ok := r.companies[company.CompanyID]; ok {
		return false, nil
	}
	copied := *company
	r.companies[company.CompanyID] = &copied
	return true, nil
}

func (r *fakeRepository) UpdateCompanySubscription(companyID string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return webhook.Transientf("store unavailable")
	}
	company, ok := r.companies[companyID]
	if !ok {
		return nil
	}
	if v, ok := fields["subscription_tier"]; ok {
		company.SubscriptionTier = v.(string)
	}
	if v, ok := fields["subscription_status"]; ok {
		company.SubscriptionStatus = v.(string)
	}
	if v, ok := fields["subscription_id"]; ok {
		company.SubscriptionID = v.(string)
	}
	return nil
}

func (r *fakeRepository) CreateCompanyUserIfAbsent(user *models.CompanyUser) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return false, webhook.Transientf("store unavailable")
	}
	key := user.CompanyID + "|" + user.UserID
	if _, ok := r.users[key]; ok {
		return false, nil
	}
	r.users[key] = *user
	return true, nil
}

func (r *fakeRepository) CreateSystemEntityIfAbsent(entity *models.SystemEntity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return false, webhook.Transientf("store unavailable")
	}
	key := entity.CompanyID + "|" + entity.EntityID
	if _, ok := r.entities[key]; ok {
		return false, nil
	}
	r.entities[key] = *entity
	return true, nil
}

type fakeSubStore struct {
	mu   sync.Mutex
	subs map[string]models.Subscription
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{subs: make(map[string]models.Subscription)}
}

func (s *fakeSubStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.CompanyID] = *sub
	return nil
}

func (s *fakeSubStore) Get(ctx context.Context, companyID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[companyID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func activationEnvelope(t *testing.T, eventID string) *webhook.Envelope {
	t.Helper()
	env, err := webhook.ParseEnvelope([]byte(`{
		"event_id": "` + eventID + `",
		"event_type": "subscription.activated",
		"data": {
			"id": "sub_1",
			"status": "active",
			"custom_data": {
				"company_id": "t1",
				"user_id": "u1",
				"company_name": "Acme GmbH",
				"user_email": "owner@acme.test"
			},
			"items": [{"price": {"id": "pri_pro_month"}}]
		}
	}`))
	require.NoError(t, err)
	return env
}

func TestHandleActivation_ProvisionsNewTenant(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	err := r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1"))
	require.NoError(t, err)

	company := repo.companies["t1"]
	require.NotNil(t, company)
	assert.Equal(t, "Acme GmbH", company.Name)
	assert.Equal(t, models.TierProfessional, company.SubscriptionTier)
	assert.Equal(t, models.SubscriptionStatusActive, company.SubscriptionStatus)
	assert.Equal(t, "sub_1", company.SubscriptionID)
	assert.Equal(t, 1, company.CurrentUsers)

	user, ok := repo.users["t1|u1"]
	require.True(t, ok)
	assert.Equal(t, models.UserRoleAdmin, user.Role)
	assert.Equal(t, models.UserStatusActive, user.Status)

	assert.Len(t, repo.entities, 2)
	project := repo.entities["t1|"+models.DefaultProjectEntityID]
	assert.Equal(t, models.SystemEntityKindProject, project.Kind)
	assert.Equal(t, "General", project.Name)
	contractor := repo.entities["t1|"+models.DefaultContractorEntityID]
	assert.Equal(t, models.SystemEntityKindContractor, contractor.Kind)

	sub, err := subs.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.TierProfessional, sub.CurrentPlan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func TestHandleActivation_RedeliveryIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1")))
	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1")))

	assert.Len(t, repo.companies, 1)
	assert.Len(t, repo.users, 1)
	assert.Len(t, repo.entities, 2)
	// The second run must not reset a counter the CRUD layer may have
	// advanced in between.
	assert.Equal(t, 1, repo.companies["t1"].CurrentUsers)
}

func TestHandleActivation_ConcurrentNotificationsCreateOneTenant(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eventID := []string{"evt_created", "evt_activated"}[i]
			errs[i] = r.HandleActivation(context.Background(), activationEnvelope(t, eventID))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, repo.companies, 1)
	assert.Len(t, repo.users, 1)
	assert.Len(t, repo.entities, 2)
}

func TestHandleActivation_MissingCompanyNameFailsValidation(t *testing.T) {
	repo := newFakeRepository()
	r := NewReconciler(repo, newFakeSubStore())

	env, err := webhook.ParseEnvelope([]byte(`{
		"event_id": "evt_bad",
		"event_type": "subscription.activated",
		"data": {
			"id": "sub_1",
			"status": "active",
			"custom_data": {"company_id": "t1", "user_id": "u1"}
		}
	}`))
	require.NoError(t, err)

	err = r.HandleActivation(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, webhook.ClassValidation, webhook.ClassOf(err))
	assert.Empty(t, repo.companies)
	assert.Empty(t, repo.users)
}

func TestHandleActivation_ExistingTenantKeepsProfileFields(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	repo.companies["t1"] = &models.Company{
		CompanyID:          "t1",
		Name:               "Acme (renamed by admin)",
		SubscriptionTier:   models.TierStarter,
		SubscriptionStatus: models.SubscriptionStatusTrialing,
		CurrentUsers:       7,
	}

	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_upgrade")))

	company := repo.companies["t1"]
	assert.Equal(t, "Acme (renamed by admin)", company.Name)
	assert.Equal(t, models.TierProfessional, company.SubscriptionTier)
	assert.Equal(t, models.SubscriptionStatusActive, company.SubscriptionStatus)
	assert.Equal(t, 7, company.CurrentUsers)
}

func TestHandleActivation_StoreFailureIsTransient(t *testing.T) {
	repo := newFakeRepository()
	repo.failAll = true
	r := NewReconciler(repo, newFakeSubStore())

	err := r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1"))
	require.Error(t, err)
	assert.True(t, webhook.IsRetryable(err))
}

func TestHandleCancellation(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1")))

	env, err := webhook.ParseEnvelope([]byte(`{
		"event_id": "evt_cancel",
		"event_type": "subscription.canceled",
		"data": {
			"id": "sub_1",
			"status": "canceled",
			"custom_data": {"company_id": "t1", "user_id": "u1", "company_name": "Acme GmbH"}
		}
	}`))
	require.NoError(t, err)
	require.NoError(t, r.HandleCancellation(context.Background(), env))

	assert.Equal(t, models.SubscriptionStatusCanceled, repo.companies["t1"].SubscriptionStatus)
	sub, _ := subs.Get(context.Background(), "t1")
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.SubscriptionStatus)
}

func TestStatusChange_UnknownCompanyMirrorsOnly(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	// A payment failure arriving before the activation notification must not
	// error and must not create a half-formed tenant.
	env, err := webhook.ParseEnvelope([]byte(`{
		"event_id": "evt_ooo",
		"event_type": "transaction.payment_failed",
		"data": {
			"id": "sub_1",
			"custom_data": {"company_id": "t1"}
		}
	}`))
	require.NoError(t, err)
	require.NoError(t, r.HandlePaymentFailed(context.Background(), env))
	assert.Empty(t, repo.companies)

	sub, _ := subs.Get(context.Background(), "t1")
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.SubscriptionStatus)

	// The late activation then provisions the tenant normally.
	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_late")))
	assert.Equal(t, models.SubscriptionStatusActive, repo.companies["t1"].SubscriptionStatus)
}

func TestStatusChange_MissingCompanyIDFailsValidation(t *testing.T) {
	r := NewReconciler(newFakeRepository(), newFakeSubStore())

	env, err := webhook.ParseEnvelope([]byte(`{
		"event_id": "evt_nocid",
		"event_type": "subscription.updated",
		"data": {"id": "sub_1", "status": "active"}
	}`))
	require.NoError(t, err)

	err = r.HandleUpdate(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, webhook.ClassValidation, webhook.ClassOf(err))
}

func TestStatusChange_ItemlessTransactionKeepsKnownPlan(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1")))

	next := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	seeded := subs.subs["t1"]
	seeded.NextBillingDate = &next
	subs.subs["t1"] = seeded

	// A completed charge carries no line items and no billing date; it must
	// not overwrite the mirrored plan with defaults.
	env, err := webhook.ParseEnvelope([]byte(`{
		"event_id": "evt_txn",
		"event_type": "transaction.completed",
		"data": {
			"id": "txn_9",
			"custom_data": {"company_id": "t1"}
		}
	}`))
	require.NoError(t, err)
	require.NoError(t, r.HandlePaymentCompleted(context.Background(), env))

	sub, err := subs.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.TierProfessional, sub.CurrentPlan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.SubscriptionStatus)
	require.NotNil(t, sub.NextBillingDate)
	assert.True(t, sub.NextBillingDate.Equal(next))
	assert.Equal(t, models.TierProfessional, repo.companies["t1"].SubscriptionTier)
}

func TestStatusChange_PastDueWithoutItemsKeepsPlan(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1")))

	env, err := webhook.ParseEnvelope([]byte(`{
		"event_id": "evt_pd",
		"event_type": "transaction.payment_failed",
		"data": {
			"id": "txn_10",
			"custom_data": {"company_id": "t1"}
		}
	}`))
	require.NoError(t, err)
	require.NoError(t, r.HandlePaymentFailed(context.Background(), env))

	sub, _ := subs.Get(context.Background(), "t1")
	require.NotNil(t, sub)
	assert.Equal(t, models.TierProfessional, sub.CurrentPlan)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.SubscriptionStatus)
}

func TestHandlePaymentCompleted(t *testing.T) {
	repo := newFakeRepository()
	subs := newFakeSubStore()
	r := NewReconciler(repo, subs)

	require.NoError(t, r.HandleActivation(context.Background(), activationEnvelope(t, "evt_1")))
	require.NoError(t, r.HandlePastDue(context.Background(), activationEnvelope(t, "evt_due")))
	assert.Equal(t, models.SubscriptionStatusPastDue, repo.companies["t1"].SubscriptionStatus)

	require.NoError(t, r.HandlePaymentCompleted(context.Background(), activationEnvelope(t, "evt_pay")))
	assert.Equal(t, models.SubscriptionStatusActive, repo.companies["t1"].SubscriptionStatus)
}
