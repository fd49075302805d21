package webhook

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/expensehq/expensehq/app/models"
)

// Sink parks notifications that exhausted their retries (or failed
// validation) for manual remediation.
type Sink struct {
	repo Repository
}

// NewSink creates a dead-letter sink over the pipeline repository.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

// AddToDLQ durably persists a dead-letter entry. Its own failures are logged
// and swallowed: a secondary failure here must not bubble into a 5xx to the
// provider, which would amplify load via provider-side retries for work the
// ledger has already captured.
func (s *Sink) AddToDLQ(ctx context.Context, env *Envelope, cause error, attempts int, history []AttemptRecord) {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		log.Errorf("[DLQ] Failed to encode processing history for %s: %v", env.EventID, err)
		historyJSON = []byte("[]")
	}

	entry := &models.DeadLetterEntry{
		ID:                uuid.NewString(),
		EventID:           env.EventID,
		EventType:         env.EventType,
		PayloadJSON:       string(env.Raw()),
		LastError:         summarizeError(cause),
		ErrorClass:        string(ClassOf(cause)),
		AttemptCount:      attempts,
		ProcessingHistory: string(historyJSON),
	}
	if err := s.repo.CreateDeadLetter(entry); err != nil {
		log.Errorf("[DLQ] Failed to persist dead-letter entry for %s: %v", env.EventID, err)
		return
	}
	log.Warnf("[DLQ] Event %s (%s) dead-lettered after %d attempt(s): %v",
		env.EventID, env.EventType, attempts, cause)
}
