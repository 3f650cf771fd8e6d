package server

import (
	"errors"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/patientsim/invoker"
	"github.com/hupe1980/patientsim/transcript"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus metrics exposed on /metrics.
type Metrics struct {
	SessionsStartedTotal prometheus.Counter
	TurnsTotal           *prometheus.CounterVec
	TurnDuration         prometheus.Histogram
	DebriefsTotal        *prometheus.CounterVec
	RequestsTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics on the default registry.
// Registration happens once per process; later calls return the same
// instance, so tests can build any number of servers.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionsStartedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "patientsim_sessions_started_total",
					Help: "Total number of sessions opened through intake",
				},
			),

			TurnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "patientsim_turns_total",
					Help: "Total number of dialogue exchanges by outcome",
				},
				[]string{"outcome"}, // "ok", "model_error", "store_error", "error"
			),

			TurnDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name: "patientsim_turn_duration_seconds",
					Help: "Duration of one dialogue exchange including retries",
					// Retries can stretch an exchange past a minute.
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 11),
				},
			),

			DebriefsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "patientsim_debriefs_total",
					Help: "Total number of debrief evaluations by outcome",
				},
				[]string{"outcome"},
			),

			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "patientsim_http_requests_total",
					Help: "Total HTTP requests by method, route and status",
				},
				[]string{"method", "route", "status"},
			),
		}
	})

	return globalMetrics
}

// RecordIntake counts a successfully opened session.
func (m *Metrics) RecordIntake() {
	m.SessionsStartedTotal.Inc()
}

// RecordTurn counts one dialogue exchange and its duration.
func (m *Metrics) RecordTurn(outcome string, seconds float64) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(seconds)
}

// RecordDebrief counts one debrief attempt.
func (m *Metrics) RecordDebrief(outcome string) {
	m.DebriefsTotal.WithLabelValues(outcome).Inc()
}

// Middleware returns an echo middleware recording per request counters. The
// route pattern (not the raw path) is used as the label, so session ids do
// not blow up cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				// Resolve the error now, otherwise Status still
				// holds the 200 default when we read it.
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			m.RequestsTotal.WithLabelValues(
				c.Request().Method,
				route,
				strconv.Itoa(c.Response().Status),
			).Inc()

			return err
		}
	}
}

// outcomeFor classifies an operation error for metric labels.
func outcomeFor(err error) string {
	var invErr *invoker.InvocationError
	var storeErr *transcript.StoreError

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &invErr):
		return "model_error"
	case errors.As(err, &storeErr):
		return "store_error"
	default:
		return "error"
	}
}
