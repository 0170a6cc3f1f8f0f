package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neuroleaf/neuroleaf-api/internal/integration/stripe"
	"github.com/neuroleaf/neuroleaf-api/internal/service"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
	"github.com/neuroleaf/neuroleaf-api/pkg/res"
)

// Stripe recommends limiting webhook bodies to about 64kb.
const maxWebhookBodySize = int64(65536)

// WebhookHandler receives Stripe webhook deliveries: verify the signature,
// map the event and hand it to the reconciler.
type WebhookHandler struct {
	verifier *stripe.WebhookVerifier
	billing  service.BillingService
	log      *logger.Logger
}

func NewWebhookHandler(verifier *stripe.WebhookVerifier, billing service.BillingService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, billing: billing, log: log}
}

// HandleStripeWebhook answers 400 for anything unverifiable, 500 when
// applying the event fails (so Stripe redelivers), and 200 otherwise.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	defer c.Request.Body.Close()
	if err != nil {
		h.log.Warnw("Failed to read webhook body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "cannot read request body"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "webhook signature verification failed"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	h.log.Infow("Received verified Stripe event", "eventID", event.ID, "eventType", event.Type)

	billingEvent, err := stripe.MapEvent(event)
	if err != nil {
		h.log.Errorw("Failed to map Stripe event", "eventID", event.ID, "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "failed to parse event data"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	if err := h.billing.ProcessEvent(ctx, billingEvent); err != nil {
		h.log.Errorw("Failed to process billing event", "eventID", event.ID, "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "failed to process event"}, http.StatusInternalServerError)
		c.Abort()
		return
	}

	res.JsonResponse(c.Writer, gin.H{"received": true}, http.StatusOK)
}
