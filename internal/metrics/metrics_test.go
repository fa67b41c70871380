package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDepositMetrics(t *testing.T) {
	m := NewDepositMetrics()

	before := testutil.ToFloat64(depositStepTransitionsTotal.WithLabelValues("SIGN_POP"))
	m.RecordTransition("SIGN_POP")
	m.RecordTransition("SIGN_POP")
	require.Equal(t, before+2, testutil.ToFloat64(depositStepTransitionsTotal.WithLabelValues("SIGN_POP")))

	before = testutil.ToFloat64(pollingAttemptsTotal.WithLabelValues("payouts", "transient"))
	m.RecordPollingAttempt("payouts", "transient")
	require.Equal(t, before+1, testutil.ToFloat64(pollingAttemptsTotal.WithLabelValues("payouts", "transient")))

	active := testutil.ToFloat64(depositsActive)
	m.FlowStarted()
	require.Equal(t, active+1, testutil.ToFloat64(depositsActive))
	m.FlowStopped()
	require.Equal(t, active, testutil.ToFloat64(depositsActive))
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterMetrics()
	// registering twice is a no-op
	RegisterMetrics()

	router := gin.New()
	router.Use(HTTPMiddleware())
	router.GET("/v1/deposits/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", Handler())

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/deposits/:id", "200"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/deposits/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/deposits/:id", "200")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "vault_server_http_requests_total"))
}
