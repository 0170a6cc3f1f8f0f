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

// TestHandler serves test-session endpoints.
type TestHandler struct {
	tests service.TestService
	log   *logger.Logger
}

func NewTestHandler(tests service.TestService, log *logger.Logger) *TestHandler {
	return &TestHandler{tests: tests, log: log}
}

func (h *TestHandler) Start(c *gin.Context) {
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

	body, err := req.HandleBody[domain.StartTestRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	session, err := h.tests.StartSession(c.Request.Context(), accountID, deckID, *body, time.Now())
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, session, http.StatusCreated)
}

func (h *TestHandler) Get(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		writeError(c, domain.ErrNotFound, h.log)
		return
	}

	session, err := h.tests.GetSession(c.Request.Context(), accountID, sessionID)
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, session, http.StatusOK)
}

func (h *TestHandler) NextQuestion(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		writeError(c, domain.ErrNotFound, h.log)
		return
	}

	question, err := h.tests.NextQuestion(c.Request.Context(), accountID, sessionID)
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, question, http.StatusOK)
}

func (h *TestHandler) SubmitResponse(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		writeError(c, domain.ErrNotFound, h.log)
		return
	}

	body, err := req.HandleBody[domain.SubmitResponseRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	response, err := h.tests.SubmitResponse(c.Request.Context(), accountID, sessionID, *body, time.Now())
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, response, http.StatusCreated)
}

func (h *TestHandler) Complete(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		writeError(c, domain.ErrNotFound, h.log)
		return
	}

	session, err := h.tests.CompleteSession(c.Request.Context(), accountID, sessionID, time.Now())
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	res.JsonResponse(c.Writer, session, http.StatusOK)
}

func (h *TestHandler) Abandon(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated, h.log)
		return
	}
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		writeError(c, domain.ErrNotFound, h.log)
		return
	}

	if err := h.tests.AbandonSession(c.Request.Context(), accountID, sessionID, time.Now()); err != nil {
		writeError(c, err, h.log)
		return
	}
	c.Status(http.StatusNoContent)
}
