// Package metrics exposes Prometheus counters/gauges for cycle outcomes,
// fill latency, and P/L, grounded in chidi150c-coinbase's metrics.go
// (bot_orders_total, bot_equity_usd, bot_trades_total) -- the same
// library wired for the analogous trading-bot ambient concern, with
// label/metric names renamed to this agent's single-day-cycle domain.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cycleOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spxspread_cycle_outcomes_total",
			Help: "Trading-day outcomes by classification (SETTLED|NO_TRADE|SETTLEMENT_SKIPPED).",
		},
		[]string{"outcome"},
	)

	fillLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spxspread_fill_latency_seconds",
			Help:    "Seconds from entry-branch trigger to threshold-meeting fill.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s..~34min
		},
	)

	totalPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spxspread_total_pnl_dollars",
			Help: "Total realized P/L of the most recent settled trading day.",
		},
	)

	equityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spxspread_equity_dollars",
			Help: "Account equity as read at sizing time.",
		},
	)

	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spxspread_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed,1=half-open,2=open).",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(cycleOutcomes, fillLatency, totalPnL, equityGauge, circuitBreakerState)
}

// ObserveOutcome increments the outcome counter for the day just finished.
func ObserveOutcome(outcome string) {
	cycleOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveFillLatency records the trigger-to-fill duration.
func ObserveFillLatency(d time.Duration) {
	fillLatency.Observe(d.Seconds())
}

// SetTotalPnL records the settled day's total P/L.
func SetTotalPnL(v float64) {
	totalPnL.Set(v)
}

// SetEquity records the equity snapshot read at sizing time.
func SetEquity(v float64) {
	equityGauge.Set(v)
}

// SetCircuitBreakerState records the named breaker's current state as an
// ordinal: 0 closed, 1 half-open, 2 open.
func SetCircuitBreakerState(name string, state int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}
