package webhook

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/expensehq/expensehq/app/models"
)

// TerminalCache is a best-effort fast path in front of the ledger for event
// ids that already reached a terminal status. A miss or a cache error always
// falls through to the database.
type TerminalCache interface {
	Get(ctx context.Context, eventID string) (string, bool)
	Set(ctx context.Context, eventID, status string)
}

// Ledger is the durable idempotency record of every notification's
// processing outcome, keyed by the provider-assigned event id.
type Ledger struct {
	repo  Repository
	cache TerminalCache
}

// NewLedger creates a ledger service. cache may be nil.
func NewLedger(repo Repository, cache TerminalCache) *Ledger {
	return &Ledger{repo: repo, cache: cache}
}

// IsProcessed reports whether the event already reached a terminal status
// (processed or failed_to_dlq). A non-terminal "processing" row does not
// count: the design accepts at-most-one-terminal-outcome, not
// at-most-one-attempt.
func (l *Ledger) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if l.cache != nil {
		if _, ok := l.cache.Get(ctx, eventID); ok {
			return true, nil
		}
	}

	event, err := l.repo.GetEvent(eventID)
	if err != nil {
		return false, err
	}
	if event == nil {
		return false, nil
	}
	if event.IsTerminal() {
		if l.cache != nil {
			l.cache.Set(ctx, eventID, event.Status)
		}
		return true, nil
	}
	return false, nil
}

// RecordReceived writes/overwrites a processing row for the event.
func (l *Ledger) RecordReceived(ctx context.Context, env *Envelope) error {
	event := &models.WebhookEvent{
		EventID:     env.EventID,
		EventType:   env.EventType,
		PayloadJSON: string(env.Raw()),
	}
	if companyID := env.Data.CustomData.CompanyID; companyID != "" {
		event.CompanyID = &companyID
	}
	return l.repo.UpsertProcessing(event)
}

// MarkTerminal transitions the ledger row to processed or failed_to_dlq and
// caches the outcome for the redelivery fast path.
func (l *Ledger) MarkTerminal(ctx context.Context, eventID, status, lastError string) error {
	if err := l.repo.MarkTerminal(eventID, status, lastError); err != nil {
		return err
	}
	if l.cache != nil {
		l.cache.Set(ctx, eventID, status)
	}
	return nil
}

// MarkReplayed settles a dead-lettered event as processed after a successful
// operator replay.
func (l *Ledger) MarkReplayed(ctx context.Context, eventID string) error {
	if err := l.repo.MarkReplayed(eventID); err != nil {
		return err
	}
	if l.cache != nil {
		l.cache.Set(ctx, eventID, models.WebhookStatusProcessed)
	}
	return nil
}

// MarkProcessed is shorthand for the successful terminal transition.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID string) {
	if err := l.MarkTerminal(ctx, eventID, models.WebhookStatusProcessed, ""); err != nil {
		log.Errorf("[Webhook] Failed to mark event %s processed: %v", eventID, err)
	}
}
