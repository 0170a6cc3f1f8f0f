package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/integration/stripe"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

const testWebhookSecret = "whsec_test_secret"

type fakeBillingService struct {
	events []domain.BillingEvent
	err    error
}

func (f *fakeBillingService) ProcessEvent(_ context.Context, event domain.BillingEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeBillingService) DowngradeExpired(_ context.Context, _ time.Time) error {
	return nil
}

func newWebhookRouter(t *testing.T, billing *fakeBillingService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.ERROR)
	verifier := stripe.NewWebhookVerifier(testWebhookSecret, log)
	handler := NewWebhookHandler(verifier, billing, log)

	router := gin.New()
	router.POST("/webhooks/stripe", handler.HandleStripeWebhook)
	return router
}

func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, testWebhookSecret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(signature))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	return req
}

func subscriptionPayload(t *testing.T) []byte {
	t.Helper()
	event := map[string]any{
		"id":   "evt_1",
		"type": "customer.subscription.created",
		"data": map[string]any{
			"object": map[string]any{
				"id":       "sub_123",
				"customer": map[string]any{"id": "cus_456"},
				"status":   "active",
				"items": map[string]any{
					"data": []any{map[string]any{"price": map[string]any{"id": "price_pro"}}},
				},
			},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestWebhookValidSignature(t *testing.T) {
	billing := &fakeBillingService{}
	router := newWebhookRouter(t, billing)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, subscriptionPayload(t)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())

	require.Len(t, billing.events, 1)
	assert.Equal(t, domain.BillingSubscriptionCreated, billing.events[0].Type)
	assert.Equal(t, "cus_456", billing.events[0].Subscription.CustomerID)
}

func TestWebhookBadSignature(t *testing.T) {
	billing := &fakeBillingService{}
	router := newWebhookRouter(t, billing)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(subscriptionPayload(t)))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, billing.events)
}

func TestWebhookMissingSignature(t *testing.T) {
	billing := &fakeBillingService{}
	router := newWebhookRouter(t, billing)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(subscriptionPayload(t)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, billing.events)
}

func TestWebhookProcessingFailureReturns500(t *testing.T) {
	billing := &fakeBillingService{err: errors.New("db write failed")}
	router := newWebhookRouter(t, billing)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, subscriptionPayload(t)))

	// 500 makes Stripe redeliver the event.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
