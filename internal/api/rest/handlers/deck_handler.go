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
	"github.com/neuroleaf/neuroleaf-api/pkg/req"
	"github.com/neuroleaf/neuroleaf-api/pkg/res"
)

// DeckHandler serves deck CRUD endpoints.
type DeckHandler struct {
	decks        service.DeckService
	entitlements service.EntitlementService
	log          *logger.Logger
}

func NewDeckHandler(decks service.DeckService, entitlements service.EntitlementService, log *logger.Logger) *DeckHandler {
	return &DeckHandler{decks: decks, entitlements: entitlements, log: log}
}

// deckView augments a deck with its downgrade-rule accessibility.
type deckView struct {
	domain.Deck
	Accessible bool   `json:"accessible"`
	LockReason string `json:"lock_reason,omitempty"`
}

func (h *DeckHandler) Create(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}

	body, err := req.HandleBody[domain.DeckRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	deck, err := h.decks.Create(c.Request.Context(), accountID, *body, time.Now())
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, deck, http.StatusCreated)
}

func (h *DeckHandler) List(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}

	decks, err := h.decks.List(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err, h.log)
		return
	}

	accessList, err := h.entitlements.DeckAccessList(c.Request.Context(), accountID, decks)
	if err != nil {
		writeError(c, err, h.log)
		return
	}

	views := make([]deckView, 0, len(decks))
	for i, deck := range decks {
		views = append(views, deckView{
			Deck:       deck,
			Accessible: accessList[i].CanAccess,
			LockReason: accessList[i].Reason,
		})
	}
	res.JsonResponse(c.Writer, views, http.StatusOK)
}

func (h *DeckHandler) Get(c *gin.Context) {
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

	deck, err := h.decks.Get(c.Request.Context(), accountID, deckID)
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, deck, http.StatusOK)
}

func (h *DeckHandler) Update(c *gin.Context) {
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

	body, err := req.HandleBody[domain.DeckRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	deck, err := h.decks.Update(c.Request.Context(), accountID, deckID, *body)
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, deck, http.StatusOK)
}

func (h *DeckHandler) Delete(c *gin.Context) {
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

	if err := h.decks.Delete(c.Request.Context(), accountID, deckID); err != nil {
		writeError(c, err, h.log)
		return
	}
	c.Status(http.StatusNoContent)
}
