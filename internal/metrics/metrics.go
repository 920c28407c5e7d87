package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartpresence"

// Check-in outcomes used as the "outcome" label
const (
	OutcomeAccepted        = "accepted"
	OutcomeInactive        = "inactive"
	OutcomeOutsideWindow   = "outside_window"
	OutcomeNotEnrolled     = "not_enrolled"
	OutcomeDuplicate       = "duplicate"
	OutcomeOutsideGeofence = "outside_geofence"
	OutcomeFaceNotEnrolled = "face_not_enrolled"
	OutcomeFaceMismatch    = "face_mismatch"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
)

// Metrics holds the service's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	checkIns        *prometheus.CounterVec
	faceDistance    prometheus.Histogram
	gpsDistance     prometheus.Histogram
	absencesMarked  prometheus.Counter
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		checkIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "checkin", "total"),
			Help: "Check-in attempts by outcome and resulting status.",
		}, []string{"outcome", "status"}),
		faceDistance: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(namespace, "face", "match_distance"),
			Help:    "Euclidean distance of the best face match per recognition.",
			Buckets: []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1.0},
		}),
		gpsDistance: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(namespace, "gps", "distance_meters"),
			Help:    "Distance between the averaged fix and the room center.",
			Buckets: []float64{5, 10, 20, 35, 50, 75, 100, 200, 500},
		}),
		absencesMarked: factory.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "absence", "marked_total"),
			Help: "Absent records created by the absence job.",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(namespace, "http", "request_duration_seconds"),
			Help:    "Duration of HTTP requests by status code, method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status_code", "method", "path"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "http", "requests_total"),
			Help: "Count all http requests by status code, method and route.",
		}, []string{"status_code", "method", "path"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCheckIn counts one check-in attempt; status is empty for rejected attempts
func (m *Metrics) ObserveCheckIn(outcome, status string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(outcome, status).Inc()
}

func (m *Metrics) ObserveFaceDistance(d float64) {
	if m == nil {
		return
	}
	m.faceDistance.Observe(d)
}

func (m *Metrics) ObserveGPSDistance(d float64) {
	if m == nil {
		return
	}
	m.gpsDistance.Observe(d)
}

func (m *Metrics) AddAbsences(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.absencesMarked.Add(float64(n))
}

// Middleware records request duration per route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.requestsTotal.WithLabelValues(status, c.Request.Method, path).Inc()
		m.requestDuration.WithLabelValues(status, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
