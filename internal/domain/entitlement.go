package domain

// UnlimitedLimit is the sentinel for "no limit". All counting logic must
// treat it as never-exceeded.
const UnlimitedLimit = -1

// Action is a tier-limited operation an account may attempt.
type Action string

const (
	ActionCreateDeck       Action = "create_deck"
	ActionCreateFlashcards Action = "create_flashcards"
	ActionGenerateAI       Action = "generate_ai"
	ActionStartTest        Action = "start_test"
)

// TierLimits are the numeric limits attached to a subscription tier.
// UnlimitedLimit (-1) means unlimited.
type TierLimits struct {
	DeckLimit             int `json:"deck_limit"`
	FlashcardsPerDeck     int `json:"flashcards_per_deck"`
	AIGenerationsPerMonth int `json:"ai_generations_per_month"`
	TestSessionsPerMonth  int `json:"test_sessions_per_month"`
}

// EntitlementResult is the outcome of an entitlement check. A denial is a
// normal negative result, not an error; Reason carries the message shown to
// the user.
type EntitlementResult struct {
	Allowed   bool   `json:"allowed"`
	Limit     int    `json:"limit"`
	Current   int    `json:"current"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// DeckAccess reports whether a single deck is readable under the
// oldest-N-decks rule after a downgrade.
type DeckAccess struct {
	DeckID    string `json:"deck_id"`
	CanAccess bool   `json:"can_access"`
	Reason    string `json:"reason,omitempty"`
}

// UsageSummary is the per-resource quota snapshot for an account.
type UsageSummary struct {
	Tier          Tier              `json:"tier"`
	Limits        TierLimits        `json:"limits"`
	Decks         EntitlementResult `json:"decks"`
	AIGenerations EntitlementResult `json:"ai_generations"`
	TestSessions  EntitlementResult `json:"test_sessions"`
}
