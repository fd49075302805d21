package models

import "time"

// Subscription mirrors the billing provider's view of a tenant's plan and
// status. It is a denormalized read model consulted by limit enforcement;
// every relevant lifecycle notification overwrites it with the latest known
// state (last-writer-wins).
type Subscription struct {
	CompanyID          string     `gorm:"type:varchar(191);primaryKey" json:"company_id"`
	SubscriptionID     string     `gorm:"type:varchar(191);not null;index" json:"subscription_id"`
	CurrentPlan        string     `gorm:"type:varchar(50);not null;default:'starter'" json:"current_plan"`
	SubscriptionStatus string     `gorm:"type:varchar(32);not null;default:'active'" json:"subscription_status"`
	NextBillingDate    *time.Time `gorm:"type:timestamp;default:null" json:"next_billing_date,omitempty"`
	ScheduledChangeID  string     `gorm:"type:varchar(191)" json:"scheduled_change_id"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
