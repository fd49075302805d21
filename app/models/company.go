package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

const (
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

// Company is a tenant. The primary key comes from the billing subscription's
// custom metadata and is stable for the tenant's lifetime.
type Company struct {
	CompanyID string `gorm:"type:varchar(191);primaryKey" json:"company_id"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	Email     string `gorm:"type:varchar(255)" json:"email"`
	Phone     string `gorm:"type:varchar(64)" json:"phone"`
	Address   string `gorm:"type:varchar(512)" json:"address"`

	SubscriptionTier   string     `gorm:"type:varchar(50);not null;default:'starter'" json:"subscription_tier"`
	SubscriptionStatus string     `gorm:"type:varchar(32);not null;default:'active'" json:"subscription_status"`
	SubscriptionID     string     `gorm:"type:varchar(191)" json:"subscription_id"`
	NextBillingDate    *time.Time `gorm:"type:timestamp;default:null" json:"next_billing_date,omitempty"`

	// Usage counters are initialized here and mutated by the CRUD layer.
	CurrentUsers         int `gorm:"not null;default:0" json:"current_users"`
	CurrentProjects      int `gorm:"not null;default:0" json:"current_projects"`
	CurrentMonthExpenses int `gorm:"not null;default:0" json:"current_month_expenses"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
