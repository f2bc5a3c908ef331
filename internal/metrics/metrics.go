// Package metrics exports dispatcher and HTTP metrics to Prometheus.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"beacon/internal/domain/notification"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var _ notification.Recorder = (*Metrics)(nil)

// Metrics holds the collectors. Create one per registry.
type Metrics struct {
	dispatches        *prometheus.CounterVec
	dispatchDuration  prometheus.Histogram
	transportResults  *prometheus.CounterVec
	transportDuration *prometheus.HistogramVec
	httpDuration      *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_dispatches_total",
			Help: "Notifications dispatched, by severity and result (delivered, partial, failed).",
		}, []string{"severity", "result"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_dispatch_duration_seconds",
			Help:    "Duration of a dispatch across all transports.",
			Buckets: prometheus.DefBuckets,
		}),
		transportResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_transport_sends_total",
			Help: "Transport calls, by transport and result (ok, error).",
		}, []string{"transport", "result"}),
		transportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_transport_duration_seconds",
			Help:    "Duration of a single transport call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
	}
	reg.MustRegister(
		m.dispatches,
		m.dispatchDuration,
		m.transportResults,
		m.transportDuration,
		m.httpDuration,
		m.httpRequests,
	)
	return m
}

// ObserveDispatch records one dispatch and each of its transport outcomes.
func (m *Metrics) ObserveDispatch(category *notification.Category, report notification.Report, elapsed time.Duration) {
	result := "delivered"
	switch failures := report.Failures(); {
	case failures == len(report.Outcomes):
		result = "failed"
	case failures > 0:
		result = "partial"
	}
	m.dispatches.WithLabelValues(strings.ToLower(category.Severity().String()), result).Inc()
	m.dispatchDuration.Observe(elapsed.Seconds())

	for _, o := range report.Outcomes {
		res := "ok"
		if !o.OK() {
			res = "error"
		}
		m.transportResults.WithLabelValues(o.Transport, res).Inc()
		m.transportDuration.WithLabelValues(o.Transport).Observe(o.Duration.Seconds())
	}
}

// Middleware records RED metrics for HTTP requests, labelled by route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpDuration.WithLabelValues(path, c.Request.Method, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(path, c.Request.Method, status).Inc()
	}
}
