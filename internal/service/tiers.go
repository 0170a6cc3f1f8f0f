package service

import "github.com/neuroleaf/neuroleaf-api/internal/domain"

// tierLimits maps each subscription tier to its resource limits.
// domain.UnlimitedLimit (-1) means unlimited. Paid tiers keep finite monthly
// AI quotas so generation costs stay bounded.
var tierLimits = map[domain.Tier]domain.TierLimits{
	domain.TierFree: {
		DeckLimit:             3,
		FlashcardsPerDeck:     50,
		AIGenerationsPerMonth: 10,
		TestSessionsPerMonth:  5,
	},
	domain.TierPro: {
		DeckLimit:             domain.UnlimitedLimit,
		FlashcardsPerDeck:     domain.UnlimitedLimit,
		AIGenerationsPerMonth: 500,
		TestSessionsPerMonth:  200,
	},
	domain.TierPremium: {
		DeckLimit:             domain.UnlimitedLimit,
		FlashcardsPerDeck:     domain.UnlimitedLimit,
		AIGenerationsPerMonth: 500,
		TestSessionsPerMonth:  200,
	},
}

// LimitsForTier returns the limits for a tier. Unknown tiers fall back to
// the free tier's limits rather than erroring.
func LimitsForTier(tier domain.Tier) domain.TierLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[domain.TierFree]
}
