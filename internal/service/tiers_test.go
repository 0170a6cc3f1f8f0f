package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
)

func TestLimitsForTier(t *testing.T) {
	free := LimitsForTier(domain.TierFree)
	assert.Equal(t, 3, free.DeckLimit)
	assert.Equal(t, 50, free.FlashcardsPerDeck)
	assert.Equal(t, 10, free.AIGenerationsPerMonth)
	assert.Equal(t, 5, free.TestSessionsPerMonth)

	pro := LimitsForTier(domain.TierPro)
	assert.Equal(t, domain.UnlimitedLimit, pro.DeckLimit)
	assert.Equal(t, domain.UnlimitedLimit, pro.FlashcardsPerDeck)
	assert.Equal(t, 500, pro.AIGenerationsPerMonth)
	assert.Equal(t, 200, pro.TestSessionsPerMonth)

	assert.Equal(t, pro, LimitsForTier(domain.TierPremium))
}

func TestLimitsForTierUnknownFallsBackToFree(t *testing.T) {
	got := LimitsForTier(domain.Tier("enterprise"))
	assert.Equal(t, LimitsForTier(domain.TierFree), got)
}
