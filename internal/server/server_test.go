package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/seedbot/internal/logger"
)

type routeHandler struct{}

func (routeHandler) Register(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "alive") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.POST("/webhook/:secret", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
}

func newTestServer(t *testing.T, logs *bytes.Buffer) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "seedbot_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	return NewServer("", logger.NewWithWriter(logs, "info", "text"), reg, routeHandler{}, nil)
}

func TestServerRoutesAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &bytes.Buffer{})
	assert.Equal(t, ":5000", srv.Addr())

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seedbot_test_total 1")
}

func TestServerRecoversFromPanics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &bytes.Buffer{})
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAccessLogHidesWebhookSecret(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	srv := newTestServer(t, &logs)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/abc123", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "/webhook/***")
	assert.NotContains(t, logs.String(), "abc123")
}

func TestRedactWebhookPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		uri  string
		want string
	}{
		{uri: "/webhook/abc123", want: "/webhook/***"},
		{uri: "/webhook/abc123?x=1", want: "/webhook/***?x=1"},
		{uri: "/webhook/", want: "/webhook/"},
		{uri: "/health", want: "/health"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, redactWebhookPath(tc.uri), tc.uri)
	}
}
