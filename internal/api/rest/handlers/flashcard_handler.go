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

// FlashcardHandler serves flashcard endpoints nested under a deck.
type FlashcardHandler struct {
	flashcards service.FlashcardService
	log        *logger.Logger
}

func NewFlashcardHandler(flashcards service.FlashcardService, log *logger.Logger) *FlashcardHandler {
	return &FlashcardHandler{flashcards: flashcards, log: log}
}

func (h *FlashcardHandler) List(c *gin.Context) {
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

	cards, err := h.flashcards.List(c.Request.Context(), accountID, deckID)
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, cards, http.StatusOK)
}

func (h *FlashcardHandler) CreateBatch(c *gin.Context) {
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

	body, err := req.HandleBody[domain.CreateFlashcardsRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	cards, err := h.flashcards.CreateBatch(c.Request.Context(), accountID, deckID, *body, time.Now())
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, cards, http.StatusCreated)
}

func (h *FlashcardHandler) Delete(c *gin.Context) {
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
	cardID, err := uuid.Parse(c.Param("card_id"))
	if err != nil {
		writeError(c, domain.ErrNotFound, h.log)
		return
	}

	if err := h.flashcards.Delete(c.Request.Context(), accountID, deckID, cardID); err != nil {
		writeError(c, err, h.log)
		return
	}
	c.Status(http.StatusNoContent)
}
