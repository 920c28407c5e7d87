package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCheckIn(t *testing.T) {
	m := New()

	m.ObserveCheckIn(OutcomeAccepted, "present")
	m.ObserveCheckIn(OutcomeAccepted, "present")
	m.ObserveCheckIn(OutcomeFaceMismatch, "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkIns.WithLabelValues(OutcomeAccepted, "present")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkIns.WithLabelValues(OutcomeFaceMismatch, "")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheckIn(OutcomeAccepted, "present")
		m.ObserveFaceDistance(0.3)
		m.ObserveGPSDistance(12)
		m.AddAbsences(3)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/subjects/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/subjects/12", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `smartpresence_http_requests_total{method="GET",path="/api/subjects/:id",status_code="200"} 1`))
}
