package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a named subscription level with associated resource limits.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	// TierPremium is a legacy tier kept for accounts that subscribed before
	// the pro rename. It carries the same limits as pro.
	TierPremium Tier = "premium"
)

// SubscriptionStatus mirrors the billing processor's subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusNone     SubscriptionStatus = "none"
)

// Account represents a Neuroleaf user/subscriber.
type Account struct {
	ID                    uuid.UUID          `json:"id" db:"id"`
	Email                 string             `json:"email" db:"email"`
	DisplayName           string             `json:"display_name" db:"display_name"`
	SubscriptionTier      Tier               `json:"subscription_tier" db:"subscription_tier"`
	DeckLimit             int                `json:"deck_limit" db:"deck_limit"`
	FlashcardLimitPerDeck int                `json:"flashcard_limit_per_deck" db:"flashcard_limit_per_deck"`
	StripeCustomerID      string             `json:"-" db:"stripe_customer_id"`
	StripeSubscriptionID  string             `json:"-" db:"stripe_subscription_id"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	SubscriptionExpiresAt *time.Time         `json:"subscription_expires_at" db:"subscription_expires_at"`
	CreatedAt             time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at"`
}

// SubscriptionUpdate is the set of billing-owned account fields the
// reconciler persists on a payment event.
type SubscriptionUpdate struct {
	Tier                  Tier
	DeckLimit             int
	FlashcardLimitPerDeck int
	StripeSubscriptionID  string
	Status                SubscriptionStatus
	ExpiresAt             *time.Time
}
