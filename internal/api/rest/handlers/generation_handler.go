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

// GenerationHandler serves the AI flashcard-generation endpoint.
type GenerationHandler struct {
	generation service.GenerationService
	log        *logger.Logger
}

func NewGenerationHandler(generation service.GenerationService, log *logger.Logger) *GenerationHandler {
	return &GenerationHandler{generation: generation, log: log}
}

func (h *GenerationHandler) GenerateFlashcards(c *gin.Context) {
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

	body, err := req.HandleBody[domain.GenerateFlashcardsRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	cards, err := h.generation.GenerateFlashcards(c.Request.Context(), accountID, deckID, *body, time.Now())
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, cards, http.StatusCreated)
}
