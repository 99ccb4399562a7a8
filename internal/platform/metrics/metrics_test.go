package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SignalRecompute(true, time.Second)
	m.SignalEpisodes("outcome-trajectory", "low", 3)
	m.EligibilitySimulated(false)
	m.TransitionChanged("released")
	m.SummaryChanged("revoked")
	m.ConsentChanged("episode-data-for-signal-computation", "granted")
}

func TestCounters(t *testing.T) {
	m := New()
	m.SignalRecompute(true, 10*time.Millisecond)
	m.SignalRecompute(false, 10*time.Millisecond)
	m.SignalRecompute(true, 10*time.Millisecond)
	m.TransitionChanged("declined")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.signalRecomputes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signalRecomputes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionChanges.WithLabelValues("declined")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/physios/:id/signals", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/physios/p1/signals", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `route="/api/v1/physios/:id/signals"`), "expected route template label")
	assert.False(t, strings.Contains(body, `route="/api/v1/physios/p1/signals"`), "raw path must not be a label")
}
