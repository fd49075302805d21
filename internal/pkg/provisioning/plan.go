package provisioning

import (
	"strings"

	"github.com/expensehq/expensehq/app/models"
)

// priceTiers maps the billing provider's price identifiers to internal
// tiers. The price id on the subscription line item is authoritative; the
// checkout metadata's plan hint is only a fallback for unrecognized ids.
var priceTiers = map[string]string{
	"pri_starter_month": models.TierStarter,
	"pri_starter_year":  models.TierStarter,
	"pri_pro_month":     models.TierProfessional,
	"pri_pro_year":      models.TierProfessional,
	"pri_ent_month":     models.TierEnterprise,
	"pri_ent_year":      models.TierEnterprise,
}

// ResolveTier picks the best tier mapped from the line-item price ids,
// falling back to the metadata plan hint, then to starter.
func ResolveTier(priceIDs []string, planHint string) string {
	best := ""
	for _, id := range priceIDs {
		tier, ok := priceTiers[strings.TrimSpace(id)]
		if !ok {
			continue
		}
		if best == "" || tierRank(tier) > tierRank(best) {
			best = tier
		}
	}
	if best != "" {
		return best
	}
	return normalizeTier(planHint)
}

func normalizeTier(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case models.TierProfessional:
		return models.TierProfessional
	case models.TierEnterprise:
		return models.TierEnterprise
	default:
		return models.TierStarter
	}
}

func tierRank(tier string) int {
	switch normalizeTier(tier) {
	case models.TierEnterprise:
		return 2
	case models.TierProfessional:
		return 1
	default:
		return 0
	}
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case models.SubscriptionStatusPastDue:
		return models.SubscriptionStatusPastDue
	case models.SubscriptionStatusCanceled:
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusActive
	}
}
