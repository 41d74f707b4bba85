// Package metrics collects and exposes Prometheus metrics for the backend.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of collection operations used by handlers. All
// token-validation failures collapse to a 401 at the boundary, so the
// per-kind counter is the only place the distinction survives.
type Recorder interface {
	RecordAuthFailure(kind string)
	RecordResponse(statusCode int)
}

// Collector implements Recorder on top of a Prometheus registry.
type Collector struct {
	authFailures *prometheus.CounterVec
	responses    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipvault_auth_failures_total",
			Help: "Token validation failures by kind (malformed, expired, revoked).",
		}, []string{"kind"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipvault_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(c.authFailures, c.responses)
	return c
}

// RecordAuthFailure counts one token-validation failure of the given kind.
func (c *Collector) RecordAuthFailure(kind string) {
	c.authFailures.WithLabelValues(kind).Inc()
}

// RecordResponse counts one HTTP response.
func (c *Collector) RecordResponse(statusCode int) {
	c.responses.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the scrape endpoint for the registry backing the collector.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
