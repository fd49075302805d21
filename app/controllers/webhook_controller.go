package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/expensehq/expensehq/internal/pkg/cache"
	"github.com/expensehq/expensehq/internal/pkg/database"
	"github.com/expensehq/expensehq/internal/pkg/env"
	"github.com/expensehq/expensehq/internal/pkg/metrics/counter"
	"github.com/expensehq/expensehq/internal/pkg/provisioning"
	"github.com/expensehq/expensehq/internal/pkg/subscription"
	"github.com/expensehq/expensehq/internal/pkg/webhook"
)

const (
	billingWebhookSecretName = "BILLING_WEBHOOK_SECRET"

	// Hosting wall-clock budget per invocation. The retry executor's backoff
	// schedule fits inside it for the full attempt budget.
	webhookProcessingTimeout = 25 * time.Second
)

var (
	webhookPipeline *webhook.Pipeline
	webhookRepo     webhook.Repository
)

// InitializeWebhookController wires the pipeline against the shared DB and
// cache handles and registers the event handlers.
func InitializeWebhookController() {
	db := database.GetDB()
	repo := webhook.NewRepository(db)

	secrets := webhook.NewCachedSecretStore(webhook.EnvSecretStore{}, 5*time.Minute)
	scheme := webhook.SchemeVersioned
	if env.GetEnv("BILLING_SIGNATURE_SCHEME", "") == string(webhook.SchemePlainHex) {
		scheme = webhook.SchemePlainHex
	}
	verifier := webhook.NewVerifier(secrets, billingWebhookSecretName, scheme)

	ledger := webhook.NewLedger(repo, webhook.NewRedisTerminalCache(cache.GetClient()))

	reconciler := provisioning.NewReconciler(
		provisioning.NewRepository(db),
		subscription.NewStore(db),
	)

	router := webhook.NewRouter()
	router.Register(webhook.EventSubscriptionCreated, reconciler.HandleActivation)
	router.Register(webhook.EventSubscriptionActivated, reconciler.HandleActivation)
	router.Register(webhook.EventSubscriptionUpdated, reconciler.HandleUpdate)
	router.Register(webhook.EventSubscriptionCanceled, reconciler.HandleCancellation)
	router.Register(webhook.EventSubscriptionPastDue, reconciler.HandlePastDue)
	router.Register(webhook.EventTransactionCompleted, reconciler.HandlePaymentCompleted)
	router.Register(webhook.EventTransactionFailed, reconciler.HandlePaymentFailed)

	webhookPipeline = webhook.NewPipeline(verifier, ledger, router, webhook.NewRetryExecutor(), webhook.NewSink(repo))
	webhookRepo = repo
}

// HandleBillingWebhook is the inbound notification endpoint. Signature
// verification is the authentication; any outcome that has been durably
// recorded answers 200 so the provider does not redeliver.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	header := webhook.SignatureHeader{
		MsgID:     firstHeaderValue(c, "Webhook-Id", "Billing-Webhook-Id"),
		Timestamp: firstHeaderValue(c, "Webhook-Timestamp", "Billing-Timestamp"),
		Signature: firstHeaderValue(c, "Webhook-Signature", "Billing-Signature"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessingTimeout)
	defer cancel()

	outcome, err := webhookPipeline.Process(ctx, rawBody, header)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		}
		// The delivery was not durably recorded; a 5xx makes the provider
		// redeliver, which is exactly what we want here.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	// Counters track authenticated deliveries only; an unauthenticated flood
	// must not cost Redis round trips or skew throughput numbers.
	_ = counter.AddWebhookReceived(peekEventType(rawBody))
	_ = counter.AddWebhookOutcome(string(outcome))

	switch outcome {
	case webhook.OutcomeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case webhook.OutcomeIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	case webhook.OutcomeDeadLettered:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "dead_lettered": true})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// peekEventType extracts the event type for metrics without running the full
// envelope parse; unparsable bodies count under "unknown".
func peekEventType(raw []byte) string {
	var peek struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil || strings.TrimSpace(peek.EventType) == "" {
		return "unknown"
	}
	return strings.TrimSpace(peek.EventType)
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
