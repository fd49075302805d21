package counter

import (
	"context"
	"strconv"

	"github.com/expensehq/expensehq/internal/pkg/cache"
)

const (
	webhookReceivedKey = "webhook:counters:received"
	webhookOutcomeKey  = "webhook:counters:outcomes"
)

// AddWebhookReceived increments the received counter for an event type in Redis
func AddWebhookReceived(eventType string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookReceivedKey, eventType, 1).Err()
}

// AddWebhookOutcome increments the counter for a pipeline outcome in Redis
func AddWebhookOutcome(outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookOutcomeKey, outcome, 1).Err()
}

// Snapshot returns the current per-event-type and per-outcome counters.
// Missing hashes read as empty maps.
func Snapshot() (received map[string]int64, outcomes map[string]int64, err error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	rawReceived, err := rdb.HGetAll(ctx, webhookReceivedKey).Result()
	if err != nil {
		return nil, nil, err
	}
	rawOutcomes, err := rdb.HGetAll(ctx, webhookOutcomeKey).Result()
	if err != nil {
		return nil, nil, err
	}

	return parseCounters(rawReceived), parseCounters(rawOutcomes), nil
}

func parseCounters(raw map[string]string) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out
}
