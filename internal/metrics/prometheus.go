// Package metrics provides Prometheus metrics for the bidding engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bidding engine.
type Metrics struct {
	// HTTP metrics (health, metrics, and the debug read endpoint).
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Admission-path metrics.
	BidsAccepted      *prometheus.CounterVec
	BidsRejected      *prometheus.CounterVec
	BidAdmitLatency   prometheus.Histogram
	ExtensionsTotal   *prometheus.CounterVec
	RateLimitRejected prometheus.Counter

	// Finalization metrics.
	FinalizeTotal   *prometheus.CounterVec
	FinalizeLatency prometheus.Histogram

	// Gateway metrics.
	GatewayConnections prometheus.Gauge
	GatewayAuthFailures prometheus.Counter

	// Fan-out metrics.
	FanoutPublished *prometheus.CounterVec

	// Job runner metrics.
	JobsEnqueued *prometheus.CounterVec
	JobAttempts  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "liveauction"
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		BidsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bids_accepted_total",
				Help:      "Total number of bids admitted through P1",
			},
			[]string{"auction_id"},
		),
		BidsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bids_rejected_total",
				Help:      "Total number of bids rejected, by error code",
			},
			[]string{"code"},
		),
		BidAdmitLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bid_admit_latency_seconds",
				Help:      "Time from gateway receipt to P1 returning",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		ExtensionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auction_extensions_total",
				Help:      "Total number of anti-snipe extensions applied",
			},
			[]string{"auction_id"},
		),
		RateLimitRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejected_total",
				Help:      "Total bids rejected by the per-bidder rate gate",
			},
		),

		FinalizeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "finalize_total",
				Help:      "Total finalizations, by triggering path",
			},
			[]string{"trigger"},
		),
		FinalizeLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "finalize_latency_seconds",
				Help:      "Time from P3 invocation to coldstore mirror write",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
			},
		),

		GatewayConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_connections",
				Help:      "Number of live websocket connections",
			},
		),
		GatewayAuthFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_auth_failures_total",
				Help:      "Total websocket connections rejected at auth",
			},
		),

		FanoutPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fanout_published_total",
				Help:      "Total events published to the fan-out bus, by topic",
			},
			[]string{"topic"},
		),

		JobsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_enqueued_total",
				Help:      "Total jobs enqueued, by kind",
			},
			[]string{"kind"},
		),
		JobAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_attempts_total",
				Help:      "Total job handler attempts, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.BidsAccepted,
		m.BidsRejected,
		m.BidAdmitLatency,
		m.ExtensionsTotal,
		m.RateLimitRejected,
		m.FinalizeTotal,
		m.FinalizeLatency,
		m.GatewayConnections,
		m.GatewayAuthFailures,
		m.FanoutPublished,
		m.JobsEnqueued,
		m.JobAttempts,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordBidAccepted records a successfully admitted bid.
func (m *Metrics) RecordBidAccepted(auctionID string, latency time.Duration) {
	m.BidsAccepted.WithLabelValues(auctionID).Inc()
	m.BidAdmitLatency.Observe(latency.Seconds())
}

// RecordBidRejected records a bid rejected with the given error code.
func (m *Metrics) RecordBidRejected(code string) {
	m.BidsRejected.WithLabelValues(code).Inc()
}

// RecordExtension records an anti-snipe extension.
func (m *Metrics) RecordExtension(auctionID string) {
	m.ExtensionsTotal.WithLabelValues(auctionID).Inc()
}

// RecordFinalize records a finalization and its latency, labeled by which
// trigger (timer or expiry-notification) reached P3 first.
func (m *Metrics) RecordFinalize(trigger string, latency time.Duration) {
	m.FinalizeTotal.WithLabelValues(trigger).Inc()
	m.FinalizeLatency.Observe(latency.Seconds())
}

// RecordFanoutPublish records a publication to the fan-out bus.
func (m *Metrics) RecordFanoutPublish(topic string) {
	m.FanoutPublished.WithLabelValues(topic).Inc()
}

// RecordJobEnqueued records a job enqueue, by kind.
func (m *Metrics) RecordJobEnqueued(kind string) {
	m.JobsEnqueued.WithLabelValues(kind).Inc()
}

// RecordJobAttempt records a job handler attempt outcome ("success" or
// "retry").
func (m *Metrics) RecordJobAttempt(kind, outcome string) {
	m.JobAttempts.WithLabelValues(kind, outcome).Inc()
}
