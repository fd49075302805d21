package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Envelope is the parsed notification body. The payload itself is kept
// verbatim in the ledger; this struct only lifts the fields the pipeline
// and its handlers need.
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt string    `json:"occurred_at"`
	Data       EventData `json:"data"`

	raw []byte
}

// EventData is the resource payload of a subscription or transaction event.
type EventData struct {
	ID              string           `json:"id"`
	Status          string           `json:"status"`
	CustomData      CustomData       `json:"custom_data"`
	Items           []LineItem       `json:"items"`
	NextBilledAt    *time.Time       `json:"next_billed_at"`
	ScheduledChange *ScheduledChange `json:"scheduled_change"`
}

// CustomData carries the tenant metadata the checkout flow attached to the
// subscription. The provisioning reconciler validates the required fields.
type CustomData struct {
	CompanyID   string `json:"company_id" validate:"required"`
	UserID      string `json:"user_id" validate:"required"`
	CompanyName string `json:"company_name" validate:"required"`
	PlanHint    string `json:"plan"`
	UserEmail   string `json:"user_email" validate:"omitempty,email"`
}

type LineItem struct {
	Price Price `json:"price"`
}

type Price struct {
	ID string `json:"id"`
}

type ScheduledChange struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// ParseEnvelope decodes a raw notification body. A body that is not valid
// JSON or lacks an event type is a validation failure; a missing event id is
// tolerated by synthesizing a stable hash-derived id so the ledger still has
// a dedup key for the delivery.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, Validationf("malformed notification body: %v", err)
	}
	env.raw = raw
	env.EventID = strings.TrimSpace(env.EventID)
	env.EventType = strings.TrimSpace(env.EventType)
	if env.EventID == "" {
		env.EventID = SynthesizeEventID(raw)
	}
	if env.EventType == "" {
		return &env, Validationf("notification is missing event_type")
	}
	return &env, nil
}

// SynthesizeEventID derives a deterministic dedup key from the payload for
// deliveries that carry no provider event id.
func SynthesizeEventID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "hash:" + hex.EncodeToString(sum[:])
}

// Raw returns the verbatim body the envelope was parsed from.
func (e *Envelope) Raw() []byte {
	return e.raw
}

// PriceIDs returns the line-item price identifiers in payload order.
func (e *Envelope) PriceIDs() []string {
	ids := make([]string, 0, len(e.Data.Items))
	for _, item := range e.Data.Items {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
