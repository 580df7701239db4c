// Package metrics exposes Prometheus collectors for the ledger engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	Transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mining_server",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Total number of committed ledger transactions by kind.",
		},
		[]string{"kind"},
	)

	ConflictRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mining_server",
			Subsystem: "ledger",
			Name:      "conflict_retries_total",
			Help:      "Total number of atomic units retried after a write conflict.",
		},
	)

	AccrualTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mining_server",
			Subsystem: "accrual",
			Name:      "ticks_total",
			Help:      "Total number of accrual ticks executed.",
		},
	)

	AccrualProfit = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mining_server",
			Subsystem: "accrual",
			Name:      "profit_credited_total",
			Help:      "Total profit credited to mining balances by accrual ticks.",
		},
	)

	AccrualFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mining_server",
			Subsystem: "accrual",
			Name:      "holding_failures_total",
			Help:      "Total per-holding accrual failures that were skipped.",
		},
	)
)

func init() {
	Registry.MustRegister(Transactions, ConflictRetries, AccrualTicks, AccrualProfit, AccrualFailures)
}

// Handler returns the HTTP handler serving the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
