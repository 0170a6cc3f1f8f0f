package stripe

import (
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// WebhookVerifier validates webhook payloads against the endpoint's signing
// secret and parses them into Stripe events.
type WebhookVerifier struct {
	secret string
	log    *logger.Logger
}

func NewWebhookVerifier(secret string, log *logger.Logger) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, log: log}
}

// Verify checks the Stripe-Signature header against the payload. A bad or
// missing signature yields domain.ErrWebhookValidationFailed so the handler
// can answer 400.
func (v *WebhookVerifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if sigHeader == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrWebhookValidationFailed)
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		v.log.Warnw("Webhook signature verification failed", "error", err)
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrWebhookValidationFailed, err)
	}
	return event, nil
}
