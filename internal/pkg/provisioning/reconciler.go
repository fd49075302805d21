package provisioning

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/expensehq/expensehq/app/models"
	"github.com/expensehq/expensehq/internal/pkg/subscription"
	"github.com/expensehq/expensehq/internal/pkg/webhook"
)

// Reconciler idempotently creates/updates a tenant, its first administrator
// and its default reference entities from subscription lifecycle data. It
// must be safe against duplicate delivery, near-simultaneous notifications
// for the same tenant, and partial completion from a prior crashed attempt.
// Its job is to guarantee the end state exists, not to be the exclusive
// creator of it.
type Reconciler struct {
	repo     Repository
	subs     subscription.Store
	validate *validator.Validate
}

func NewReconciler(repo Repository, subs subscription.Store) *Reconciler {
	return &Reconciler{
		repo:     repo,
		subs:     subs,
		validate: validator.New(),
	}
}

// HandleActivation provisions the tenant for subscription.activated and,
// defensively, subscription.created. Both run under the retry executor.
func (r *Reconciler) HandleActivation(ctx context.Context, env *webhook.Envelope) error {
	cd := env.Data.CustomData
	if err := r.validate.Struct(cd); err != nil {
		// Malformed upstream data; retrying will not fix it.
		return webhook.Validationf("notification %s has invalid custom data: %v", env.EventID, err)
	}

	tier := ResolveTier(env.PriceIDs(), cd.PlanHint)
	status := normalizeStatus(env.Data.Status)

	company, err := r.repo.GetCompany(cd.CompanyID)
	if err != nil {
		return err
	}

	firstCreation := false
	if company == nil {
		created, err := r.repo.CreateCompanyIfAbsent(&models.Company{
			CompanyID:          cd.CompanyID,
			Name:               cd.CompanyName,
			Email:              cd.UserEmail,
			SubscriptionTier:   tier,
			SubscriptionStatus: status,
			SubscriptionID:     env.Data.ID,
			NextBillingDate:    env.Data.NextBilledAt,
			CurrentUsers:       1,
		})
		if err != nil {
			return err
		}
		// Losing the create race to a concurrent notification is success:
		// the tenant exists, which is all this step guarantees.
		firstCreation = created
		if !created {
			log.Infof("[Provisioning] Company %s created concurrently, continuing", cd.CompanyID)
		}
	} else {
		err := r.repo.UpdateCompanySubscription(cd.CompanyID, map[string]interface{}{
			"subscription_tier":   tier,
			"subscription_status": status,
			"subscription_id":     env.Data.ID,
			"next_billing_date":   env.Data.NextBilledAt,
		})
		if err != nil {
			return err
		}
	}

	if _, err := r.repo.CreateCompanyUserIfAbsent(&models.CompanyUser{
		CompanyID: cd.CompanyID,
		UserID:    cd.UserID,
		Email:     cd.UserEmail,
		Role:      models.UserRoleAdmin,
		Status:    models.UserStatusActive,
	}); err != nil {
		return err
	}

	// Default entities only need conditional creation on the first-ever
	// company creation; skipping them for an established tenant just avoids
	// redundant conditional writes, which would be safe either way.
	if firstCreation {
		if err := r.createDefaultEntities(cd.CompanyID); err != nil {
			return err
		}
	}

	if err := r.subs.Upsert(ctx, r.mirrorFromEnvelope(env, tier, status)); err != nil {
		return err
	}

	log.Infof("[Provisioning] Company %s reconciled (tier=%s, status=%s, first=%t)",
		cd.CompanyID, tier, status, firstCreation)
	return nil
}

func (r *Reconciler) createDefaultEntities(companyID string) error {
	defaults := []models.SystemEntity{
		{
			CompanyID: companyID,
			EntityID:  models.DefaultProjectEntityID,
			Kind:      models.SystemEntityKindProject,
			Name:      "General",
		},
		{
			CompanyID: companyID,
			EntityID:  models.DefaultContractorEntityID,
			Kind:      models.SystemEntityKindContractor,
			Name:      "Unassigned",
		},
	}
	for i := range defaults {
		if _, err := r.repo.CreateSystemEntityIfAbsent(&defaults[i]); err != nil {
			return err
		}
	}
	return nil
}

// HandleUpdate mirrors a subscription.updated notification into the company
// row and the subscription read model.
func (r *Reconciler) HandleUpdate(ctx context.Context, env *webhook.Envelope) error {
	return r.applyStatusChange(ctx, env, normalizeStatus(env.Data.Status))
}

// HandleCancellation marks the tenant canceled.
func (r *Reconciler) HandleCancellation(ctx context.Context, env *webhook.Envelope) error {
	return r.applyStatusChange(ctx, env, models.SubscriptionStatusCanceled)
}

// HandlePastDue marks the tenant past due.
func (r *Reconciler) HandlePastDue(ctx context.Context, env *webhook.Envelope) error {
	return r.applyStatusChange(ctx, env, models.SubscriptionStatusPastDue)
}

// HandlePaymentCompleted records a successful charge: the tenant is in good
// standing and the next billing date advances.
func (r *Reconciler) HandlePaymentCompleted(ctx context.Context, env *webhook.Envelope) error {
	return r.applyStatusChange(ctx, env, models.SubscriptionStatusActive)
}

// HandlePaymentFailed marks the tenant past due after a failed charge.
func (r *Reconciler) HandlePaymentFailed(ctx context.Context, env *webhook.Envelope) error {
	return r.applyStatusChange(ctx, env, models.SubscriptionStatusPastDue)
}

// applyStatusChange updates subscription-derived company fields and upserts
// the read model. A notification for a company that does not exist locally
// yet is not an error; the activation notification may simply not have
// arrived, and the mirror upsert keeps the latest state either way.
func (r *Reconciler) applyStatusChange(ctx context.Context, env *webhook.Envelope, status string) error {
	companyID := env.Data.CustomData.CompanyID
	if companyID == "" {
		return webhook.Validationf("notification %s is missing company_id", env.EventID)
	}
	tier := ResolveTier(env.PriceIDs(), env.Data.CustomData.PlanHint)

	company, err := r.repo.GetCompany(companyID)
	if err != nil {
		return err
	}
	if company != nil {
		fields := map[string]interface{}{
			"subscription_status": status,
		}
		if env.Data.ID != "" {
			fields["subscription_id"] = env.Data.ID
		}
		if env.Data.NextBilledAt != nil {
			fields["next_billing_date"] = env.Data.NextBilledAt
		}
		if len(env.PriceIDs()) > 0 {
			fields["subscription_tier"] = tier
		}
		if err := r.repo.UpdateCompanySubscription(companyID, fields); err != nil {
			return err
		}
	} else {
		log.Warnf("[Provisioning] Status change for unknown company %s (event %s), mirror only",
			companyID, env.EventID)
	}

	sub := r.mirrorFromEnvelope(env, tier, status)
	existing, err := r.subs.Get(ctx, companyID)
	if err != nil {
		return err
	}
	if existing != nil {
		// Status notifications rarely carry the full subscription payload.
		// Fields the notification does not carry keep their last known value,
		// so an itemless transaction cannot downgrade the mirrored plan.
		if len(env.PriceIDs()) == 0 && env.Data.CustomData.PlanHint == "" {
			sub.CurrentPlan = existing.CurrentPlan
		}
		if env.Data.ID == "" {
			sub.SubscriptionID = existing.SubscriptionID
		}
		if env.Data.NextBilledAt == nil {
			sub.NextBillingDate = existing.NextBillingDate
		}
		if env.Data.ScheduledChange == nil {
			sub.ScheduledChangeID = existing.ScheduledChangeID
		}
	}
	return r.subs.Upsert(ctx, sub)
}

func (r *Reconciler) mirrorFromEnvelope(env *webhook.Envelope, tier, status string) *models.Subscription {
	sub := &models.Subscription{
		CompanyID:          env.Data.CustomData.CompanyID,
		SubscriptionID:     env.Data.ID,
		CurrentPlan:        tier,
		SubscriptionStatus: status,
		NextBillingDate:    env.Data.NextBilledAt,
	}
	if env.Data.ScheduledChange != nil {
		sub.ScheduledChangeID = env.Data.ScheduledChange.ID
	}
	return sub
}
