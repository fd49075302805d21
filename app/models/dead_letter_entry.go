package models

import "time"

// DeadLetterEntry parks a notification that could not be processed
// automatically. It is created once when retries exhaust (or immediately on
// a validation failure), read by operators for manual replay, and never
// auto-deleted by the pipeline.
type DeadLetterEntry struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID           string     `gorm:"type:varchar(191);not null;index" json:"event_id"`
	EventType         string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON       string     `gorm:"type:longtext;not null" json:"payload_json"`
	LastError         string     `gorm:"type:text;not null" json:"last_error"`
	ErrorClass        string     `gorm:"type:varchar(20);not null" json:"error_class"`
	AttemptCount      int        `gorm:"not null;default:0" json:"attempt_count"`
	ProcessingHistory string     `gorm:"type:longtext" json:"processing_history"`
	DeadLetteredAt    time.Time  `gorm:"autoCreateTime;index" json:"dead_lettered_at"`
	ReplayedAt        *time.Time `gorm:"type:timestamp;default:null" json:"replayed_at,omitempty"`
}
