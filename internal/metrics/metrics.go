// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every collector the splitter exports. A dedicated registry
// keeps tests independent of the global default registerer.
var Registry = prometheus.NewRegistry()

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitter",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "splitter",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	completions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitter",
		Name:      "completion_requests_total",
		Help:      "Completion API calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	completionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "splitter",
		Name:      "completion_duration_seconds",
		Help:      "Completion API latency by provider.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	}, []string{"provider"})

	documents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitter",
		Name:      "documents_processed_total",
		Help:      "Submitted documents by final outcome code.",
	}, []string{"outcome"})

	lineItems = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "splitter",
		Name:      "invoice_line_items",
		Help:      "Line items per successfully structured invoice.",
		Buckets:   prometheus.LinearBuckets(0, 5, 10),
	})

	toggles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "splitter",
		Name:      "allocation_toggles_total",
		Help:      "Line item toggles applied to sessions.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests, httpDuration,
		completions, completionDuration,
		documents, lineItems, toggles,
	)
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveCompletion records one completion API attempt.
func ObserveCompletion(provider, outcome string, d time.Duration) {
	completions.WithLabelValues(provider, outcome).Inc()
	completionDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveDocument records the outcome of a document submission.
func ObserveDocument(outcome string, items int) {
	documents.WithLabelValues(outcome).Inc()
	if outcome == "ok" || outcome == "empty" {
		lineItems.Observe(float64(items))
	}
}

// ObserveToggle counts an allocation change.
func ObserveToggle() {
	toggles.Inc()
}
