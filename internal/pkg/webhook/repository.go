package webhook

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/expensehq/expensehq/app/models"
)

// Repository provides the ledger and dead-letter DB operations used by the
// pipeline. Storage errors are returned already classified.
type Repository interface {
	GetEvent(eventID string) (*models.WebhookEvent, error)
	UpsertProcessing(event *models.WebhookEvent) error
	MarkTerminal(eventID, status, lastError string) error
	MarkReplayed(eventID string) error
	CreateDeadLetter(entry *models.DeadLetterEntry) error
	GetDeadLetter(eventID string) (*models.DeadLetterEntry, error)
	ListDeadLetters(limit, offset int) ([]models.DeadLetterEntry, error)
	MarkDeadLetterReplayed(id string) error
	ListEvents(status string, limit, offset int) ([]models.WebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a pipeline repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetEvent(eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, Classify(ClassTransient, err)
	}
	return &event, nil
}

// UpsertProcessing records the delivery and claims it for processing. The
// conditional insert writes a "received" row; the follow-up update promotes
// it, or an earlier non-terminal row, to "processing". A row that already
// reached a terminal status is left untouched so the outcome never regresses.
func (r *gormRepository) UpsertProcessing(event *models.WebhookEvent) error {
	event.Status = models.WebhookStatusReceived
	if event.ExpiresAt == nil {
		expiry := time.Now().Add(models.WebhookRetentionPeriod)
		event.ExpiresAt = &expiry
	}

	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return Classify(ClassTransient, tx.Error)
	}

	err := r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ? AND status IN ?", event.EventID,
			[]string{models.WebhookStatusReceived, models.WebhookStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       models.WebhookStatusProcessing,
			"payload_json": event.PayloadJSON,
		}).Error
	return Classify(ClassTransient, err)
}

// MarkTerminal transitions the row to processed or failed_to_dlq. Rows that
// are already terminal are not modified.
func (r *gormRepository) MarkTerminal(eventID, status, lastError string) error {
	err := r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ? AND status NOT IN ?", eventID,
			[]string{models.WebhookStatusProcessed, models.WebhookStatusFailedToDLQ}).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
	return Classify(ClassTransient, err)
}

// MarkReplayed settles a dead-lettered row as processed after an operator
// replay succeeded. This is the only path that moves a row out of a terminal
// status, and it is operator-driven by design.
func (r *gormRepository) MarkReplayed(eventID string) error {
	err := r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ? AND status = ?", eventID, models.WebhookStatusFailedToDLQ).
		Updates(map[string]interface{}{
			"status":     models.WebhookStatusProcessed,
			"last_error": "",
		}).Error
	return Classify(ClassTransient, err)
}

func (r *gormRepository) CreateDeadLetter(entry *models.DeadLetterEntry) error {
	return Classify(ClassTransient, r.db.Create(entry).Error)
}

func (r *gormRepository) GetDeadLetter(eventID string) (*models.DeadLetterEntry, error) {
	var entry models.DeadLetterEntry
	err := r.db.Where("event_id = ?", eventID).
		Order("dead_lettered_at DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, Classify(ClassTransient, err)
	}
	return &entry, nil
}

func (r *gormRepository) ListDeadLetters(limit, offset int) ([]models.DeadLetterEntry, error) {
	var entries []models.DeadLetterEntry
	err := r.db.Order("dead_lettered_at DESC").
		Limit(limit).Offset(offset).Find(&entries).Error
	return entries, Classify(ClassTransient, err)
}

func (r *gormRepository) MarkDeadLetterReplayed(id string) error {
	now := time.Now()
	err := r.db.Model(&models.DeadLetterEntry{}).
		Where("id = ?", id).
		Update("replayed_at", &now).Error
	return Classify(ClassTransient, err)
}

func (r *gormRepository) ListEvents(status string, limit, offset int) ([]models.WebhookEvent, error) {
	q := r.db.Order("received_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var events []models.WebhookEvent
	err := q.Find(&events).Error
	return events, Classify(ClassTransient, err)
}
