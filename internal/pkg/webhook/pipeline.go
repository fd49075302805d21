package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/expensehq/expensehq/app/models"
)

// ErrInvalidSignature rejects a delivery before it reaches the ledger. The
// endpoint maps it to HTTP 401.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Outcome describes what the pipeline did with a delivery. Every outcome
// other than a signature failure is durably recorded and answered with 200
// so the provider does not redeliver.
type Outcome string

const (
	OutcomeProcessed    Outcome = "processed"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Pipeline wires the verifier, ledger, router, retry executor and
// dead-letter sink into the inbound notification control flow.
type Pipeline struct {
	verifier *Verifier
	ledger   *Ledger
	router   *Router
	retry    *RetryExecutor
	dlq      *Sink
}

func NewPipeline(verifier *Verifier, ledger *Ledger, router *Router, retry *RetryExecutor, dlq *Sink) *Pipeline {
	return &Pipeline{
		verifier: verifier,
		ledger:   ledger,
		router:   router,
		retry:    retry,
		dlq:      dlq,
	}
}

// Process runs one inbound delivery through the pipeline.
func (p *Pipeline) Process(ctx context.Context, raw []byte, header SignatureHeader) (Outcome, error) {
	if !p.verifier.Verify(raw, header) {
		return "", ErrInvalidSignature
	}

	env, parseErr := ParseEnvelope(raw)
	if env == nil {
		// Body is not even JSON. Synthesize a ledger identity so the
		// delivery is still deduplicated and dead-lettered exactly once.
		env = &Envelope{EventID: SynthesizeEventID(raw), raw: raw}
	}

	processed, err := p.ledger.IsProcessed(ctx, env.EventID)
	if err != nil {
		return "", err
	}
	if processed {
		log.Infof("[Webhook] Event %s already settled, skipping", env.EventID)
		return OutcomeDuplicate, nil
	}

	if err := p.ledger.RecordReceived(ctx, env); err != nil {
		return "", err
	}

	if parseErr != nil {
		p.deadLetter(ctx, env, parseErr, 0, nil)
		return OutcomeDeadLettered, nil
	}

	kind := ParseEventKind(env.EventType)
	handler, ok := p.router.Lookup(kind)
	if !ok {
		// Forward compatibility: the provider's catalog grows independently
		// of this consumer. Acknowledge and settle the ledger row.
		log.Infof("[Webhook] Ignoring unrecognized event type %q (event %s)", env.EventType, env.EventID)
		p.ledger.MarkProcessed(ctx, env.EventID)
		return OutcomeIgnored, nil
	}

	if kind.NeedsRetry() {
		result := p.retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
			return handler(ctx, env)
		})
		if !result.Success {
			p.deadLetter(ctx, env, result.Err, result.Attempts, result.History)
			return OutcomeDeadLettered, nil
		}
		p.ledger.MarkProcessed(ctx, env.EventID)
		return OutcomeProcessed, nil
	}

	if err := handler(ctx, env); err != nil {
		history := []AttemptRecord{{Attempt: 1, At: time.Now(), Error: summarizeError(err)}}
		p.deadLetter(ctx, env, err, 1, history)
		return OutcomeDeadLettered, nil
	}
	p.ledger.MarkProcessed(ctx, env.EventID)
	return OutcomeProcessed, nil
}

// Replay re-runs a dead-lettered payload through the router on behalf of an
// operator. It deliberately bypasses the terminal ledger check: the operator
// owns the decision to retry a settled event.
func (p *Pipeline) Replay(ctx context.Context, entry *models.DeadLetterEntry) error {
	env, err := ParseEnvelope([]byte(entry.PayloadJSON))
	if err != nil {
		return err
	}

	kind := ParseEventKind(env.EventType)
	handler, ok := p.router.Lookup(kind)
	if !ok {
		return Validationf("no handler for event type %q", env.EventType)
	}

	if kind.NeedsRetry() {
		result := p.retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
			return handler(ctx, env)
		})
		if !result.Success {
			return result.Err
		}
	} else if err := handler(ctx, env); err != nil {
		return err
	}

	if err := p.ledger.MarkReplayed(ctx, env.EventID); err != nil {
		log.Errorf("[Webhook] Replay of %s succeeded but ledger update failed: %v", env.EventID, err)
	}
	return nil
}

func (p *Pipeline) deadLetter(ctx context.Context, env *Envelope, cause error, attempts int, history []AttemptRecord) {
	p.dlq.AddToDLQ(ctx, env, cause, attempts, history)
	if err := p.ledger.MarkTerminal(ctx, env.EventID, models.WebhookStatusFailedToDLQ, summarizeError(cause)); err != nil {
		log.Errorf("[Webhook] Failed to mark event %s failed_to_dlq: %v", env.EventID, err)
	}
}
