package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Plans counts planning outcomes: ok, degraded, or an error kind
	Plans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "saferoute_plans_total", Help: "Route plans by outcome."},
		[]string{"outcome"},
	)
	// PlanDuration records end-to-end planning latency in seconds
	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "saferoute_plan_duration_seconds", Help: "Route planning duration in seconds.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}},
	)
	// RoutesRated counts scored routes by safety rating
	RoutesRated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "saferoute_routes_rated_total", Help: "Scored routes by safety rating."},
		[]string{"rating"},
	)

	// SnapshotRefreshes counts camera snapshot refreshes by result
	SnapshotRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "saferoute_snapshot_refreshes_total", Help: "Camera snapshot refreshes by result."},
		[]string{"source", "result"},
	)
	// SnapshotCameras is the number of cameras in the current snapshot by safety level
	SnapshotCameras = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "saferoute_snapshot_cameras", Help: "Cameras in the current snapshot by safety level."},
		[]string{"safety_level"},
	)
	// SnapshotLoadedAt is the unix time the current snapshot was loaded
	SnapshotLoadedAt = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "saferoute_snapshot_loaded_timestamp_seconds", Help: "Unix time the current camera snapshot was loaded."},
	)

	// AdvisoryRequests counts advisory generation outcomes
	AdvisoryRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "saferoute_advisory_requests_total", Help: "Trip advisory requests by result."},
		[]string{"result"},
	)
)

var regOnce sync.Once

// RegisterDefault registers collectors to Registry. Safe to call repeatedly.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Plans)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(RoutesRated)
		Registry.MustRegister(SnapshotRefreshes)
		Registry.MustRegister(SnapshotCameras)
		Registry.MustRegister(SnapshotLoadedAt)
		Registry.MustRegister(AdvisoryRequests)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request count and duration for next under path. path
// is passed in rather than read from the request to keep label cardinality
// bounded.
func Instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
