package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
	"github.com/neuroleaf/neuroleaf-api/pkg/res"
)

// writeError maps service errors onto HTTP replies. Quota denials carry the
// full entitlement result so clients can render upgrade prompts.
func writeError(c *gin.Context, err error, log *logger.Logger) {
	var quotaErr *domain.QuotaError
	if errors.As(err, &quotaErr) {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error:   quotaErr.Error(),
			Details: quotaErr.Result,
		}, http.StatusForbidden)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrDeckNotFound):
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: err.Error()}, http.StatusNotFound)
	case errors.Is(err, domain.ErrDeckInaccessible):
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: err.Error()}, http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrSessionNotActive):
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: err.Error()}, http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnauthenticated):
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: err.Error()}, http.StatusUnauthorized)
	case errors.Is(err, domain.ErrUnauthorized):
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: err.Error()}, http.StatusForbidden)
	case errors.Is(err, domain.ErrExternalServiceUnavailable):
		log.Errorw("Upstream service failure", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "upstream service unavailable"}, http.StatusBadGateway)
	default:
		log.Errorw("Unhandled request error", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "internal server error"}, http.StatusInternalServerError)
	}
}
