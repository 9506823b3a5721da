package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors exported on /metrics. A nil *Metrics is
// valid and records nothing, which keeps services usable without a registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	categoryTransitions *prometheus.CounterVec
	subtaskCache        *prometheus.CounterVec
	usersAnonymized     prometheus.Counter
	metaRebuilds        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		categoryTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "category_transitions_total",
				Help: "Work items moved into a category",
			},
			[]string{"element_type", "category"},
		),
		subtaskCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subtask_cache_requests_total",
				Help: "Subtask listing lookups by cache result",
			},
			[]string{"result"},
		),
		usersAnonymized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "users_anonymized_total",
			Help: "Accounts deleted through the anonymization flow",
		}),
		metaRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subtasks_meta_rebuilds_total",
			Help: "Parent tasks whose subtasks_meta was rebuilt in bulk",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.categoryTransitions,
		m.subtaskCache,
		m.usersAnonymized,
		m.metaRebuilds,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CategoryTransition(elementType, category string) {
	if m == nil {
		return
	}
	m.categoryTransitions.WithLabelValues(elementType, category).Inc()
}

// SubtaskCacheResult records one of "hit", "miss" or "error".
func (m *Metrics) SubtaskCacheResult(result string) {
	if m == nil {
		return
	}
	m.subtaskCache.WithLabelValues(result).Inc()
}

func (m *Metrics) UserAnonymized() {
	if m == nil {
		return
	}
	m.usersAnonymized.Inc()
}

func (m *Metrics) MetaRebuilt(parents int) {
	if m == nil {
		return
	}
	m.metaRebuilds.Add(float64(parents))
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}

			m.requestsTotal.WithLabelValues(c.Request().Method, c.Path(), fmt.Sprintf("%d", status)).Inc()
			m.requestDuration.WithLabelValues(c.Request().Method, c.Path()).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
