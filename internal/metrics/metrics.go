// Package metrics exposes Prometheus metrics for bill calculations and
// history storage.
//
// Metrics:
//   - <ns>_bills_calculated_total: calculations by utility and selector
//   - <ns>_bill_amount: distribution of computed amounts (histogram)
//   - <ns>_history_operations_total: history storage operations by op and outcome
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures metric naming
type Config struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

// Collector owns the registry and every metric recorded by the service
type Collector struct {
	registry *prometheus.Registry

	billsCalculated *prometheus.CounterVec
	billAmount      *prometheus.HistogramVec
	historyOps      *prometheus.CounterVec
}

// NewCollector creates and registers all metrics. If registry is nil a fresh
// registry is used.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "utilbill"
	}

	c := &Collector{
		registry: registry,

		billsCalculated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "bills_calculated_total",
				Help:      "Bills calculated by utility and provider or region",
			},
			[]string{"utility", "selector"},
		),

		billAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "bill_amount",
				Help:      "Computed bill amounts in RM",
				// Household bills: RM 1 to RM 2000
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000},
			},
			[]string{"utility"},
		),

		historyOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "history_operations_total",
				Help:      "Bill history storage operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
	}

	registry.MustRegister(c.billsCalculated, c.billAmount, c.historyOps)
	return c
}

// RecordBill records one calculation
func (c *Collector) RecordBill(utility, selector string, amount float64) {
	c.billsCalculated.WithLabelValues(utility, selector).Inc()
	c.billAmount.WithLabelValues(utility).Observe(amount)
}

// ObserveStorage records a history storage outcome
func (c *Collector) ObserveStorage(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.historyOps.WithLabelValues(op, outcome).Inc()
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
