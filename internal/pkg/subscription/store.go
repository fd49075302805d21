package subscription

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/expensehq/expensehq/app/models"
	"github.com/expensehq/expensehq/internal/pkg/webhook"
)

// Store holds the current plan/status/billing-date per tenant. It is a
// denormalized read model for limit enforcement; upserts are unconditional
// because overwriting with the latest known state is safe for this field
// set.
type Store interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	Get(ctx context.Context, companyID string) (*models.Subscription, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a subscription store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subscription_id",
			"current_plan",
			"subscription_status",
			"next_billing_date",
			"scheduled_change_id",
			"updated_at",
		}),
	}).Create(sub).Error
	return webhook.Classify(webhook.ClassTransient, err)
}

func (s *gormStore) Get(ctx context.Context, companyID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, webhook.Classify(webhook.ClassTransient, err)
	}
	return &sub, nil
}
