package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement and payment reconciliation
// outcomes.
type CheckoutMetrics struct {
	ordersPlaced    *prometheus.CounterVec
	ordersConfirmed *prometheus.CounterVec
	reconcileDenied *prometheus.CounterVec
	stockRaces      prometheus.Counter
	webhookReplays  prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders created, by payment method.",
	}, []string{"method"})
	ordersConfirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Orders confirmed, by payment method.",
	}, []string{"method"})
	reconcileDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_denied_total",
		Help: "Payment confirmations rejected before commit, by reason.",
	}, []string{"reason"})
	stockRaces := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_race_rollbacks_total",
		Help: "Reconciliation transactions rolled back because stock ran out between order and payment.",
	})
	webhookReplays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_replays_total",
		Help: "Gateway webhook deliveries skipped by the replay guard.",
	})
	reg.MustRegister(ordersPlaced, ordersConfirmed, reconcileDenied, stockRaces, webhookReplays)
	return &CheckoutMetrics{
		ordersPlaced:    ordersPlaced,
		ordersConfirmed: ordersConfirmed,
		reconcileDenied: reconcileDenied,
		stockRaces:      stockRaces,
		webhookReplays:  webhookReplays,
	}
}

// IncOrderPlaced counts a newly created order.
func (c *CheckoutMetrics) IncOrderPlaced(method string) {
	if c == nil || c.ordersPlaced == nil {
		return
	}
	c.ordersPlaced.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncOrderConfirmed counts an order reaching confirmed status.
func (c *CheckoutMetrics) IncOrderConfirmed(method string) {
	if c == nil || c.ordersConfirmed == nil {
		return
	}
	c.ordersConfirmed.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncReconcileDenied counts a payment confirmation rejected before commit.
func (c *CheckoutMetrics) IncReconcileDenied(reason string) {
	if c == nil || c.reconcileDenied == nil {
		return
	}
	c.reconcileDenied.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncStockRace counts a reconciliation rollback caused by an oversold variant.
func (c *CheckoutMetrics) IncStockRace() {
	if c == nil || c.stockRaces == nil {
		return
	}
	c.stockRaces.Inc()
}

// IncWebhookReplay counts a webhook delivery short-circuited by the replay guard.
func (c *CheckoutMetrics) IncWebhookReplay() {
	if c == nil || c.webhookReplays == nil {
		return
	}
	c.webhookReplays.Inc()
}
