package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// EntitlementService answers whether an account may perform a tier-limited
// action right now. The reference time is always passed in by the caller so
// the monthly-window arithmetic stays deterministic under test.
type EntitlementService interface {
	// CanPerform checks an account-scoped action (create deck, generate AI
	// content, start test).
	CanPerform(ctx context.Context, accountID uuid.UUID, action domain.Action, quantity int, now time.Time) (domain.EntitlementResult, error)

	// CanCreateFlashcards checks the per-deck card quota.
	CanCreateFlashcards(ctx context.Context, accountID, deckID uuid.UUID, quantity int, now time.Time) (domain.EntitlementResult, error)

	// CanAccessDeck applies the oldest-N rule: an account holding more decks
	// than its tier allows (possible after a downgrade) keeps read access to
	// its N oldest decks only.
	CanAccessDeck(ctx context.Context, accountID, deckID uuid.UUID) (domain.DeckAccess, error)

	// DeckAccessList applies the oldest-N rule to an already-listed deck
	// slice in one pass. Decks must be in creation order, oldest first.
	DeckAccessList(ctx context.Context, accountID uuid.UUID, decks []domain.Deck) ([]domain.DeckAccess, error)

	// UsageSummary reports current usage and remaining quota per resource.
	UsageSummary(ctx context.Context, accountID uuid.UUID, now time.Time) (domain.UsageSummary, error)
}

type entitlementService struct {
	accounts repository.AccountRepository
	decks    repository.DeckRepository
	usage    repository.UsageRepository
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewEntitlementService creates the entitlement evaluator
func NewEntitlementService(
	accounts repository.AccountRepository,
	decks repository.DeckRepository,
	usage repository.UsageRepository,
	m *metrics.Metrics,
	log *logger.Logger,
) EntitlementService {
	return &entitlementService{
		accounts: accounts,
		decks:    decks,
		usage:    usage,
		metrics:  m,
		log:      log,
	}
}

// monthStart returns the first instant of now's calendar month. Monthly
// quotas reset implicitly by counting from this boundary; there is no reset
// job.
func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func (s *entitlementService) resolveAccount(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// An unresolvable account is a hard error, never a quota denial.
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("failed to resolve account: %w", err)
	}
	return account, nil
}

// evaluate applies the shared allow/deny arithmetic for one resource.
func evaluate(limit, current, quantity int, resource string) domain.EntitlementResult {
	if quantity <= 0 {
		quantity = 1
	}

	if limit == domain.UnlimitedLimit {
		return domain.EntitlementResult{
			Allowed:   true,
			Limit:     limit,
			Current:   current,
			Remaining: domain.UnlimitedLimit,
		}
	}

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	result := domain.EntitlementResult{
		Limit:     limit,
		Current:   current,
		Remaining: remaining,
	}

	if current+quantity <= limit {
		result.Allowed = true
		return result
	}

	if quantity > limit {
		result.Reason = fmt.Sprintf(
			"Requested %d %s but your plan allows at most %d in total (%d used, %d more can be created). Upgrade for higher limits.",
			quantity, resource, limit, current, remaining)
	} else {
		result.Reason = fmt.Sprintf(
			"You have reached your %s limit (%d of %d used). Upgrade to create more.",
			resource, current, limit)
	}
	return result
}

// CanPerform checks an account-scoped action
func (s *entitlementService) CanPerform(ctx context.Context, accountID uuid.UUID, action domain.Action, quantity int, now time.Time) (domain.EntitlementResult, error) {
	account, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return domain.EntitlementResult{}, err
	}
	limits := LimitsForTier(account.SubscriptionTier)

	var (
		limit    int
		current  int
		resource string
	)

	switch action {
	case domain.ActionCreateDeck:
		limit = limits.DeckLimit
		resource = "deck"
		if limit != domain.UnlimitedLimit {
			current, err = s.usage.CountDecks(ctx, accountID)
		}
	case domain.ActionGenerateAI:
		limit = limits.AIGenerationsPerMonth
		resource = "AI generation"
		if limit != domain.UnlimitedLimit {
			current, err = s.usage.CountGenerationsSince(ctx, accountID, monthStart(now))
		}
	case domain.ActionStartTest:
		limit = limits.TestSessionsPerMonth
		resource = "test session"
		if limit != domain.UnlimitedLimit {
			current, err = s.usage.CountTestSessionsSince(ctx, accountID, monthStart(now))
		}
	case domain.ActionCreateFlashcards:
		return domain.EntitlementResult{}, fmt.Errorf("%w: flashcard checks require a deck", domain.ErrInvalidInput)
	default:
		return domain.EntitlementResult{}, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}
	if err != nil {
		return domain.EntitlementResult{}, err
	}

	result := evaluate(limit, current, quantity, resource)
	s.metrics.IncEntitlementDecision(string(action), result.Allowed)
	if !result.Allowed {
		s.log.Debugw("Entitlement denied",
			"accountID", accountID, "action", action,
			"current", result.Current, "limit", result.Limit)
	}
	return result, nil
}

// CanCreateFlashcards checks the per-deck card quota
func (s *entitlementService) CanCreateFlashcards(ctx context.Context, accountID, deckID uuid.UUID, quantity int, now time.Time) (domain.EntitlementResult, error) {
	account, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return domain.EntitlementResult{}, err
	}
	limits := LimitsForTier(account.SubscriptionTier)

	current := 0
	if limits.FlashcardsPerDeck != domain.UnlimitedLimit {
		current, err = s.usage.CountFlashcards(ctx, deckID)
		if err != nil {
			return domain.EntitlementResult{}, err
		}
	}

	result := evaluate(limits.FlashcardsPerDeck, current, quantity, "flashcard")
	s.metrics.IncEntitlementDecision(string(domain.ActionCreateFlashcards), result.Allowed)
	return result, nil
}

// CanAccessDeck applies the oldest-N accessibility rule
func (s *entitlementService) CanAccessDeck(ctx context.Context, accountID, deckID uuid.UUID) (domain.DeckAccess, error) {
	account, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return domain.DeckAccess{}, err
	}
	limits := LimitsForTier(account.SubscriptionTier)

	access := domain.DeckAccess{DeckID: deckID.String()}

	if limits.DeckLimit == domain.UnlimitedLimit {
		access.CanAccess = true
		return access, nil
	}

	decks, err := s.decks.ListByAccount(ctx, accountID)
	if err != nil {
		return domain.DeckAccess{}, err
	}

	// Within the limit every deck is accessible, including the deck that
	// pushed the account exactly to the boundary.
	if len(decks) <= limits.DeckLimit {
		access.CanAccess = true
		return access, nil
	}

	// Over the limit (after a downgrade) only the N oldest decks stay
	// readable. Nothing is deleted; newer decks unfreeze on upgrade or once
	// enough decks are removed.
	for i, deck := range decks {
		if deck.ID == deckID {
			if i < limits.DeckLimit {
				access.CanAccess = true
			} else {
				access.Reason = deckLockedReason(limits.DeckLimit)
			}
			return access, nil
		}
	}

	return domain.DeckAccess{}, domain.ErrDeckNotFound
}

func deckLockedReason(limit int) string {
	return fmt.Sprintf(
		"Your current plan includes %d decks. This deck is locked until you upgrade or delete other decks.",
		limit)
}

// DeckAccessList resolves the account and applies the oldest-N rule once for
// a whole listing, instead of per deck.
func (s *entitlementService) DeckAccessList(ctx context.Context, accountID uuid.UUID, decks []domain.Deck) ([]domain.DeckAccess, error) {
	account, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limits := LimitsForTier(account.SubscriptionTier)
	overLimit := limits.DeckLimit != domain.UnlimitedLimit && len(decks) > limits.DeckLimit

	results := make([]domain.DeckAccess, len(decks))
	for i, deck := range decks {
		results[i] = domain.DeckAccess{DeckID: deck.ID.String(), CanAccess: true}
		if overLimit && i >= limits.DeckLimit {
			results[i].CanAccess = false
			results[i].Reason = deckLockedReason(limits.DeckLimit)
		}
	}
	return results, nil
}

// UsageSummary reports current usage and remaining quota per resource
func (s *entitlementService) UsageSummary(ctx context.Context, accountID uuid.UUID, now time.Time) (domain.UsageSummary, error) {
	account, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return domain.UsageSummary{}, err
	}
	limits := LimitsForTier(account.SubscriptionTier)
	since := monthStart(now)

	deckCount, err := s.usage.CountDecks(ctx, accountID)
	if err != nil {
		return domain.UsageSummary{}, err
	}
	genCount, err := s.usage.CountGenerationsSince(ctx, accountID, since)
	if err != nil {
		return domain.UsageSummary{}, err
	}
	sessionCount, err := s.usage.CountTestSessionsSince(ctx, accountID, since)
	if err != nil {
		return domain.UsageSummary{}, err
	}

	return domain.UsageSummary{
		Tier:          account.SubscriptionTier,
		Limits:        limits,
		Decks:         evaluate(limits.DeckLimit, deckCount, 1, "deck"),
		AIGenerations: evaluate(limits.AIGenerationsPerMonth, genCount, 1, "AI generation"),
		TestSessions:  evaluate(limits.TestSessionsPerMonth, sessionCount, 1, "test session"),
	}, nil
}
