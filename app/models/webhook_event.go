package models

import "time"

const (
	WebhookStatusReceived    = "received"
	WebhookStatusProcessing  = "processing"
	WebhookStatusProcessed   = "processed"
	WebhookStatusFailedToDLQ = "failed_to_dlq"
)

// WebhookRetentionPeriod controls how long ledger rows are kept before they
// become eligible for cleanup.
const WebhookRetentionPeriod = 90 * 24 * time.Hour

// WebhookEvent is the idempotency ledger row for one inbound billing
// notification, keyed by the provider-assigned event id.
type WebhookEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EventID     string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType   string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON string     `gorm:"type:longtext;not null" json:"payload_json"`
	CompanyID   *string    `gorm:"type:varchar(191);index" json:"company_id,omitempty"`
	Status      string     `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	ReceivedAt  time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ExpiresAt   *time.Time `gorm:"type:timestamp;default:null;index" json:"expires_at,omitempty"`
}

// IsTerminal reports whether the ledger row reached a final outcome. A
// "processing" row does not count: a crashed attempt may legitimately be
// retried by a fresh delivery.
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookStatusProcessed || e.Status == WebhookStatusFailedToDLQ
}
