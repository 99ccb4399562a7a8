// Package metrics exposes Prometheus instruments for the recompute,
// eligibility and handoff workflows. A nil *Metrics records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	signalRecomputes  *prometheus.CounterVec
	signalDuration    prometheus.Histogram
	signalEpisodes    *prometheus.GaugeVec
	eligibilityRuns   *prometheus.CounterVec
	transitionChanges *prometheus.CounterVec
	summaryChanges    *prometheus.CounterVec
	consentChanges    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinetic",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kinetic",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		signalRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinetic",
			Name:      "signal_recomputes_total",
			Help:      "Signal recomputations by outcome.",
		}, []string{"result"}),
		signalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kinetic",
			Name:      "signal_recompute_duration_seconds",
			Help:      "Time to load, score and persist one physio's signals.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		signalEpisodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kinetic",
			Name:      "signal_episode_count",
			Help:      "Episodes behind the most recent signal computation, by confidence tier.",
		}, []string{"signal_type", "confidence"}),
		eligibilityRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinetic",
			Name:      "eligibility_simulations_total",
			Help:      "Eligibility simulations by whether any referral set matched.",
		}, []string{"eligible"}),
		transitionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinetic",
			Name:      "transition_status_changes_total",
			Help:      "Transition event status changes.",
		}, []string{"to"}),
		summaryChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinetic",
			Name:      "summary_status_changes_total",
			Help:      "Continuity summary status changes.",
		}, []string{"to"}),
		consentChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kinetic",
			Name:      "consent_changes_total",
			Help:      "Consent grants and revocations by scope.",
		}, []string{"scope", "status"}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpDuration,
		m.signalRecomputes, m.signalDuration, m.signalEpisodes,
		m.eligibilityRuns, m.transitionChanges, m.summaryChanges, m.consentChanges,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency keyed by route template,
// so path ids do not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if m == nil {
				return err
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) SignalRecompute(ok bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.signalRecomputes.WithLabelValues(result).Inc()
	m.signalDuration.Observe(took.Seconds())
}

func (m *Metrics) SignalEpisodes(signalType, confidence string, episodes int) {
	if m == nil {
		return
	}
	m.signalEpisodes.WithLabelValues(signalType, confidence).Set(float64(episodes))
}

func (m *Metrics) EligibilitySimulated(eligible bool) {
	if m == nil {
		return
	}
	m.eligibilityRuns.WithLabelValues(strconv.FormatBool(eligible)).Inc()
}

func (m *Metrics) TransitionChanged(to string) {
	if m == nil {
		return
	}
	m.transitionChanges.WithLabelValues(to).Inc()
}

func (m *Metrics) SummaryChanged(to string) {
	if m == nil {
		return
	}
	m.summaryChanges.WithLabelValues(to).Inc()
}

func (m *Metrics) ConsentChanged(scope, status string) {
	if m == nil {
		return
	}
	m.consentChanges.WithLabelValues(scope, status).Inc()
}
