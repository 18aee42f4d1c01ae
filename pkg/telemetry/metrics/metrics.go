package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the automation pipeline.
type Collector struct {
	registry *prometheus.Registry

	recommendations *prometheus.CounterVec
	blocked         *prometheus.CounterVec
	executions      *prometheus.CounterVec
	retries         prometheus.Counter
	ledgerWrites    *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

// NewCollector creates and registers the pipeline metrics on a private
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "recommendations_total",
			Help:      "Recommendations produced, by rule and action type.",
		}, []string{"rule", "action"}),
		blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "blocked_total",
			Help:      "Recommendations blocked, by reason.",
		}, []string{"reason"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "executions_total",
			Help:      "Execution outcomes, by mode and status.",
		}, []string{"mode", "status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "retries_total",
			Help:      "Platform call retries after transient failures.",
		}),
		ledgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "ledger_writes_total",
			Help:      "Ledger entries written, by execution mode.",
		}, []string{"mode"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adpilot",
			Name:      "run_duration_seconds",
			Help:      "Duration of full pipeline runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.recommendations,
		c.blocked,
		c.executions,
		c.retries,
		c.ledgerWrites,
		c.runDuration,
	)

	return c
}

// RecordRecommendation counts one produced recommendation.
func (c *Collector) RecordRecommendation(ruleID, action string) {
	c.recommendations.WithLabelValues(ruleID, action).Inc()
}

// RecordBlocked counts one blocked recommendation.
func (c *Collector) RecordBlocked(reason string) {
	c.blocked.WithLabelValues(reason).Inc()
}

// RecordExecution counts one execution outcome.
func (c *Collector) RecordExecution(mode, status string) {
	c.executions.WithLabelValues(mode, status).Inc()
}

// RecordRetries counts platform call retries.
func (c *Collector) RecordRetries(n int) {
	if n > 0 {
		c.retries.Add(float64(n))
	}
}

// RecordLedgerWrite counts one ledger entry write.
func (c *Collector) RecordLedgerWrite(mode string) {
	c.ledgerWrites.WithLabelValues(mode).Inc()
}

// ObserveRunDuration records one pipeline run's duration.
func (c *Collector) ObserveRunDuration(d time.Duration) {
	c.runDuration.Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
