package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics aggregates the engine-level counters exposed on /metrics.
type LedgerMetrics struct {
	donations        *prometheus.CounterVec
	withdrawals      prometheus.Counter
	ordersPlaced     prometheus.Counter
	orderFills       prometheus.Counter
	orderCancels     prometheus.Counter
	openOrders       prometheus.Gauge
	certsMinted      prometheus.Counter
	certsRedeemed    prometheus.Counter
	certsTransferred prometheus.Counter
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics, registering them on first
// use.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			donations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_donations_total",
				Help: "Count of recorded donations by category.",
			}, []string{"category"}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ledger_withdrawals_total",
				Help: "Count of handler withdrawals from pools.",
			}),
			ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "exchange_orders_placed_total",
				Help: "Count of escrowed orders placed.",
			}),
			orderFills: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "exchange_order_fills_total",
				Help: "Count of order fills, including partial fills.",
			}),
			orderCancels: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "exchange_order_cancellations_total",
				Help: "Count of cancelled orders.",
			}),
			openOrders: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "exchange_open_orders",
				Help: "Orders currently open or partially filled.",
			}),
			certsMinted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "certificate_minted_total",
				Help: "Count of redemption certificates minted.",
			}),
			certsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "certificate_redeemed_total",
				Help: "Count of certificates redeemed.",
			}),
			certsTransferred: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "certificate_transferred_total",
				Help: "Count of certificate ownership transfers.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.donations,
			ledgerRegistry.withdrawals,
			ledgerRegistry.ordersPlaced,
			ledgerRegistry.orderFills,
			ledgerRegistry.orderCancels,
			ledgerRegistry.openOrders,
			ledgerRegistry.certsMinted,
			ledgerRegistry.certsRedeemed,
			ledgerRegistry.certsTransferred,
		)
	})
	return ledgerRegistry
}

// RecordDonation increments the donation counter for the category.
func (m *LedgerMetrics) RecordDonation(category string) {
	if m == nil {
		return
	}
	m.donations.WithLabelValues(category).Inc()
}

// RecordWithdrawal increments the withdrawal counter.
func (m *LedgerMetrics) RecordWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

// RecordOrderPlaced increments the placed-order counter and the open-orders
// gauge.
func (m *LedgerMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.openOrders.Inc()
}

// RecordOrderFill increments the fill counter. A final fill closes the order
// and decrements the open-orders gauge.
func (m *LedgerMetrics) RecordOrderFill(final bool) {
	if m == nil {
		return
	}
	m.orderFills.Inc()
	if final {
		m.openOrders.Dec()
	}
}

// RecordOrderCancelled increments the cancellation counter and decrements the
// open-orders gauge.
func (m *LedgerMetrics) RecordOrderCancelled() {
	if m == nil {
		return
	}
	m.orderCancels.Inc()
	m.openOrders.Dec()
}

// RecordCertificateMinted increments the mint counter.
func (m *LedgerMetrics) RecordCertificateMinted() {
	if m == nil {
		return
	}
	m.certsMinted.Inc()
}

// RecordCertificateRedeemed increments the redemption counter.
func (m *LedgerMetrics) RecordCertificateRedeemed() {
	if m == nil {
		return
	}
	m.certsRedeemed.Inc()
}

// RecordCertificateTransferred increments the transfer counter.
func (m *LedgerMetrics) RecordCertificateTransferred() {
	if m == nil {
		return
	}
	m.certsTransferred.Inc()
}
