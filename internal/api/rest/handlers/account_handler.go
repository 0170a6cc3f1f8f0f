package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/api/rest/middleware"
	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/service"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
	"github.com/neuroleaf/neuroleaf-api/pkg/res"
)

// AccountHandler serves the current-account and usage endpoints.
type AccountHandler struct {
	accounts     service.AccountService
	entitlements service.EntitlementService
	analytics    service.AnalyticsService
	log          *logger.Logger
}

func NewAccountHandler(
	accounts service.AccountService,
	entitlements service.EntitlementService,
	analytics service.AnalyticsService,
	log *logger.Logger,
) *AccountHandler {
	return &AccountHandler{accounts: accounts, entitlements: entitlements, analytics: analytics, log: log}
}

// Me returns the authenticated account, bootstrapping it on first contact.
func (h *AccountHandler) Me(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}
	email := c.GetString(middleware.ContextEmailKey)
	name := c.GetString(middleware.ContextNameKey)

	account, err := h.accounts.GetOrCreate(c.Request.Context(), accountID, email, name)
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, account, http.StatusOK)
}

// Usage reports the month-to-date consumption against each tier limit.
func (h *AccountHandler) Usage(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}

	summary, err := h.entitlements.UsageSummary(c.Request.Context(), accountID, time.Now())
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, summary, http.StatusOK)
}

// DeckAnalytics returns per-card performance aggregates for one deck.
func (h *AccountHandler) DeckAnalytics(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}
	deckID, err := uuid.Parse(c.Param("deck_id"))
	if err != nil {
		writeError(c, domain.ErrDeckNotFound, h.log)
		return
	}

	analytics, err := h.analytics.ListForDeck(c.Request.Context(), accountID, deckID)
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, analytics, http.StatusOK)
}
