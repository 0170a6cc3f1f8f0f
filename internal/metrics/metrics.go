package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	log *logger.Logger

	entitlementDecisions *prometheus.CounterVec
	webhookEvents        *prometheus.CounterVec
	aiCalls              *prometheus.CounterVec
	tierChanges          *prometheus.CounterVec
}

// New registers the collectors on the given registry
func New(registry *prometheus.Registry, log *logger.Logger) *Metrics {
	entitlementDecisions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_decisions_total",
			Help: "Entitlement check outcomes by action",
		},
		[]string{"action", "allowed"},
	)

	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Billing webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	aiCalls := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "AI completion calls by kind and status",
		},
		[]string{"kind", "status"},
	)

	tierChanges := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_tier_changes_total",
			Help: "Account tier transitions applied by the reconciler",
		},
		[]string{"from", "to"},
	)

	return &Metrics{
		log:                  log,
		entitlementDecisions: entitlementDecisions,
		webhookEvents:        webhookEvents,
		aiCalls:              aiCalls,
		tierChanges:          tierChanges,
	}
}

// IncEntitlementDecision counts one entitlement check outcome
func (m *Metrics) IncEntitlementDecision(action string, allowed bool) {
	m.entitlementDecisions.WithLabelValues(action, strconv.FormatBool(allowed)).Inc()
}

// IncWebhookEvent counts one processed webhook event
func (m *Metrics) IncWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncAICall counts one AI completion call
func (m *Metrics) IncAICall(kind, status string) {
	m.aiCalls.WithLabelValues(kind, status).Inc()
}

// IncTierChange counts one applied tier transition
func (m *Metrics) IncTierChange(from, to string) {
	m.tierChanges.WithLabelValues(from, to).Inc()
}
