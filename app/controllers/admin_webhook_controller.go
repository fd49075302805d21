package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/expensehq/expensehq/internal/pkg/metrics/counter"
)

const adminListDefaultLimit = 50

// HandleAdminDeadLetters lists dead-letter entries, newest first.
func HandleAdminDeadLetters(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	entries, err := webhookRepo.ListDeadLetters(limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "dlq_list_failed"})
	}
	return c.JSON(fiber.Map{"entries": entries, "limit": limit, "offset": offset})
}

// HandleAdminDeadLetterShow returns one dead-letter entry with its full
// processing history.
func HandleAdminDeadLetterShow(c *fiber.Ctx) error {
	entry, err := webhookRepo.GetDeadLetter(c.Params("event_id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "dlq_lookup_failed"})
	}
	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	return c.JSON(entry)
}

// HandleAdminDeadLetterReplay re-runs a dead-lettered payload through the
// event router. The operator owns the decision to retry a settled event.
func HandleAdminDeadLetterReplay(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	entry, err := webhookRepo.GetDeadLetter(eventID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "dlq_lookup_failed"})
	}
	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessingTimeout)
	defer cancel()

	if err := webhookPipeline.Replay(ctx, entry); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "replay_failed",
			"details": err.Error(),
		})
	}
	if err := webhookRepo.MarkDeadLetterReplayed(entry.ID); err != nil {
		// The replay itself succeeded; surface that even if bookkeeping lags.
		return c.JSON(fiber.Map{"ok": true, "replayed_at": nil})
	}
	now := time.Now()
	return c.JSON(fiber.Map{"ok": true, "replayed_at": now})
}

// HandleAdminWebhookEvents lists recent ledger rows, optionally filtered by
// status.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	events, err := webhookRepo.ListEvents(c.Query("status"), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "ledger_list_failed"})
	}
	return c.JSON(fiber.Map{"events": events, "limit": limit, "offset": offset})
}

// HandleAdminWebhookStats returns the Redis throughput counters.
func HandleAdminWebhookStats(c *fiber.Ctx) error {
	received, outcomes, err := counter.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	return c.JSON(fiber.Map{"received": received, "outcomes": outcomes})
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = adminListDefaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
