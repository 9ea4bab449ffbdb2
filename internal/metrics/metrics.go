/**
 * @description
 * Prometheus instrumentation for the platform service. One counter tracks
 * transaction transitions by protocol and resulting status; a second tracks the
 * total value of received payments by asset, incremented by the payment amount
 * rather than by one. Counters are registered on a private registry so tests
 * can create independent instances.
 *
 * @dependencies
 * - github.com/prometheus/client_golang: Counter vectors and the /metrics handler.
 * - github.com/shopspring/decimal: Parsing payment amounts without float drift.
 */

package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics holds the counter vectors exported by the service.
type Metrics struct {
	registry            *prometheus.Registry
	sepTransactions     *prometheus.CounterVec
	paymentReceived     *prometheus.CounterVec
	custodyWebhookTotal *prometheus.CounterVec
}

// New creates the service metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sepTransactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sep_transactions_total",
			Help: "Transaction status transitions by protocol and resulting status.",
		}, []string{"sep", "status"}),
		paymentReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_received_total",
			Help: "Cumulative value of received on-chain payments by asset.",
		}, []string{"asset"}),
		custodyWebhookTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_webhook_events_total",
			Help: "Custody webhook events by classification outcome.",
		}, []string{"outcome"}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CountTransaction records a transition into the given status.
func (m *Metrics) CountTransaction(sep, status string) {
	m.sepTransactions.WithLabelValues(sep, status).Inc()
}

// AddPaymentReceived adds the payment value to the per-asset received counter.
// Unparseable amounts are logged and skipped; metrics never fail a transition.
func (m *Metrics) AddPaymentReceived(asset, amount string) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		log.Printf("level=warn component=metrics msg=\"unparseable payment amount\" asset=%s amount=%q err=%v", asset, amount, err)
		return
	}
	v, _ := d.Float64()
	m.paymentReceived.WithLabelValues(asset).Add(v)
}

// CountCustodyWebhook records a custody webhook classification outcome.
func (m *Metrics) CountCustodyWebhook(outcome string) {
	m.custodyWebhookTotal.WithLabelValues(outcome).Inc()
}
