package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics builds a Metrics instance registered against a scratch
// registry so tests never collide with the process-global registry (which
// NewMetrics(namespace) registers against via prometheus.MustRegister).
func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		RequestsTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "http_requests_total"}, []string{"method", "path", "status"}),
		RequestDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "http_request_duration_seconds"}, []string{"method", "path"}),
		RequestsInFlight:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "http_requests_in_flight"}),
		BidsAccepted:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bids_accepted_total"}, []string{"auction_id"}),
		BidsRejected:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bids_rejected_total"}, []string{"code"}),
		BidAdmitLatency:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bid_admit_latency_seconds"}),
		ExtensionsTotal:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "auction_extensions_total"}, []string{"auction_id"}),
		RateLimitRejected:   prometheus.NewCounter(prometheus.CounterOpts{Name: "rate_limit_rejected_total"}),
		FinalizeTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "finalize_total"}, []string{"trigger"}),
		FinalizeLatency:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "finalize_latency_seconds"}),
		GatewayConnections:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "gateway_connections"}),
		GatewayAuthFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "gateway_auth_failures_total"}),
		FanoutPublished:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fanout_published_total"}, []string{"topic"}),
		JobsEnqueued:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "jobs_enqueued_total"}, []string{"kind"}),
		JobAttempts:         prometheus.NewCounterVec(prometheus.CounterOpts{Name: "job_attempts_total"}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.RequestsInFlight,
		m.BidsAccepted, m.BidsRejected, m.BidAdmitLatency, m.ExtensionsTotal, m.RateLimitRejected,
		m.FinalizeTotal, m.FinalizeLatency,
		m.GatewayConnections, m.GatewayAuthFailures,
		m.FanoutPublished, m.JobsEnqueued, m.JobAttempts,
	)
	return m
}

func TestNewMetrics_RegistersWithoutPanic(t *testing.T) {
	// NewMetrics registers against the global default registry; give it a
	// unique namespace so repeated test runs in the same process don't
	// collide with an already-registered collector.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("NewMetrics panicked: %v", r)
		}
	}()
	NewMetrics("liveauction_test_unique_ns")
}

func TestMiddleware_RecordsRequestTotalsAndStatus(t *testing.T) {
	m := newTestMetrics()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/internal/auctions/A", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/internal/auctions/A", "418"))
	if got != 1 {
		t.Errorf("RequestsTotal = %v, want 1", got)
	}
}

func TestRecordBidAccepted(t *testing.T) {
	m := newTestMetrics()
	m.RecordBidAccepted("A", 5*time.Millisecond)

	if got := testutil.ToFloat64(m.BidsAccepted.WithLabelValues("A")); got != 1 {
		t.Errorf("BidsAccepted = %v, want 1", got)
	}
}

func TestRecordBidRejected(t *testing.T) {
	m := newTestMetrics()
	m.RecordBidRejected("BID_TOO_LOW")
	m.RecordBidRejected("BID_TOO_LOW")

	if got := testutil.ToFloat64(m.BidsRejected.WithLabelValues("BID_TOO_LOW")); got != 2 {
		t.Errorf("BidsRejected = %v, want 2", got)
	}
}

func TestRecordExtension(t *testing.T) {
	m := newTestMetrics()
	m.RecordExtension("A")

	if got := testutil.ToFloat64(m.ExtensionsTotal.WithLabelValues("A")); got != 1 {
		t.Errorf("ExtensionsTotal = %v, want 1", got)
	}
}

func TestRecordFinalize(t *testing.T) {
	m := newTestMetrics()
	m.RecordFinalize("timer", 10*time.Millisecond)
	m.RecordFinalize("expiry", 10*time.Millisecond)

	if got := testutil.ToFloat64(m.FinalizeTotal.WithLabelValues("timer")); got != 1 {
		t.Errorf("FinalizeTotal{timer} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FinalizeTotal.WithLabelValues("expiry")); got != 1 {
		t.Errorf("FinalizeTotal{expiry} = %v, want 1", got)
	}
}

func TestRecordFanoutPublish(t *testing.T) {
	m := newTestMetrics()
	m.RecordFanoutPublish("liveauction:bid-placed")

	if got := testutil.ToFloat64(m.FanoutPublished.WithLabelValues("liveauction:bid-placed")); got != 1 {
		t.Errorf("FanoutPublished = %v, want 1", got)
	}
}

func TestRecordJobEnqueuedAndAttempt(t *testing.T) {
	m := newTestMetrics()
	m.RecordJobEnqueued("persist-bid")
	m.RecordJobAttempt("persist-bid", "retry")
	m.RecordJobAttempt("persist-bid", "success")

	if got := testutil.ToFloat64(m.JobsEnqueued.WithLabelValues("persist-bid")); got != 1 {
		t.Errorf("JobsEnqueued = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobAttempts.WithLabelValues("persist-bid", "success")); got != 1 {
		t.Errorf("JobAttempts{success} = %v, want 1", got)
	}
}
