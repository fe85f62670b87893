package obs

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(m *Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	mw := Middleware{}
	r.Use(mw.RequestID(), m.HTTPMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c.Request.Context()))
	})
	r.GET("/metrics", m.Handler())
	return r
}

func TestRequestIDPropagatesOrGenerates(t *testing.T) {
	r := newRouter(NewMetrics())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)
	require.Equal(t, "req-1", w.Body.String())
	require.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
	require.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
}

func TestMetricsExposeCounters(t *testing.T) {
	m := NewMetrics()
	r := newRouter(m)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	m.AssemblyDropped("message")
	m.OutboxRelayed(true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, body, `recipehub_http_requests_total{method="GET",route="/ping",status="200"} 1`)
	require.Contains(t, body, `recipehub_assembly_dropped_total{stage="message"} 1`)
	require.Contains(t, body, `recipehub_outbox_relayed_total{result="ok"} 1`)
}

func TestReadyzReportsFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := HealthHandlers{Ready: AllReady(func() error { return nil }, func() error { return errors.New("mongo down") })}
	r.GET("/readyz", h.Readyz)
	r.GET("/livez", h.Livez)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "mongo down")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestNewLoggerSelectsHandler(t *testing.T) {
	var buf bytes.Buffer
	newLogger("prod", &buf).Info("hello", "k", "v")
	require.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))

	buf.Reset()
	newLogger("dev", &buf).Info("hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, strings.HasPrefix(buf.String(), "{"))
}
