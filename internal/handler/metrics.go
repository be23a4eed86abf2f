package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pgmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgm_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	pgmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pgm_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	pgmHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgm_health_checks_total",
		Help: "Total health check probes by result.",
	}, []string{"result"})

	pgmOTPEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgm_otp_events_total",
		Help: "Total one-time passcode operations by operation and outcome.",
	}, []string{"op", "outcome"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		pgmRequestsTotal.WithLabelValues(method, path, status).Inc()
		pgmRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordHealthCheck records a health check probe result.
func RecordHealthCheck(success bool) {
	if success {
		pgmHealthChecksTotal.WithLabelValues("success").Inc()
	} else {
		pgmHealthChecksTotal.WithLabelValues("failure").Inc()
	}
}

// RecordOTPEvent records one passcode engine operation. It matches
// otp.MetricsRecordFunc.
func RecordOTPEvent(op, outcome string) {
	pgmOTPEventsTotal.WithLabelValues(op, outcome).Inc()
}
