package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	mutationTotal   *prometheus.CounterVec
	eventTotal      *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chart_http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chart_http_request_duration_milliseconds",
				Help:    "HTTP request duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			}, []string{"method", "route"},
		),
		mutationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chart_drawing_mutations_total",
				Help: "Total number of drawing store mutations",
			}, []string{"op"},
		),
		eventTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chart_session_events_total",
				Help: "Total number of interaction events delivered to sessions",
			}, []string{"type"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chart_sessions_active",
				Help: "Number of open interaction sessions",
			},
		),
	}
	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.mutationTotal,
		m.eventTotal,
		m.sessionsActive,
		prometheus.NewGoCollector(),
	)
	return m
}

// middleware records request counts and latency by route template.
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).
			Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
}
