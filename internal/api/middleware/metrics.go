// Package middleware provides HTTP middleware components for the bridge server.
// This file contains Prometheus metrics middleware and the usage plugin that
// feeds backend token counts into the same registry.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/router-for-me/claudebridge/internal/usage"
)

var (
	// httpRequestsTotal counts the total number of HTTP requests processed.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudebridge_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDurationSeconds tracks the duration of HTTP requests.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claudebridge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claudebridge_http_request_size_bytes",
			Help:    "Size of HTTP request bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	httpResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claudebridge_http_response_size_bytes",
			Help:    "Size of HTTP response bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "claudebridge_active_connections",
			Help: "Number of currently active HTTP connections",
		},
	)

	activeConnectionsCount atomic.Int64

	// backendRequestsTotal counts backend calls by model, mode and outcome.
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudebridge_backend_requests_total",
			Help: "Total backend chat-completions calls",
		},
		[]string{"model", "mode", "outcome"},
	)

	backendRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claudebridge_backend_request_duration_seconds",
			Help:    "Duration of backend calls in seconds, streams included",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model", "mode"},
	)

	// tokenUsage tracks token usage reported by or estimated for the backend.
	tokenUsage = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudebridge_token_usage_total",
			Help: "Total tokens used in backend requests",
		},
		[]string{"model", "type"}, // type: input or output
	)

	metricsRegistered atomic.Bool
	metricsEnabled    atomic.Bool
)

// SetMetricsEnabled toggles Prometheus metrics collection.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

// IsMetricsEnabled reports whether metrics are enabled.
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// RegisterMetrics registers all Prometheus metrics.
// It is safe to call multiple times; metrics will only be registered once.
func RegisterMetrics() {
	if !metricsRegistered.CompareAndSwap(false, true) {
		return
	}

	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpRequestSizeBytes,
		httpResponseSizeBytes,
		activeConnections,
		backendRequestsTotal,
		backendRequestDurationSeconds,
		tokenUsage,
	)
}

// PrometheusMiddleware returns a Gin middleware that collects Prometheus metrics
// for HTTP requests including request count, duration, and active connections.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsMetricsEnabled() {
			c.Next()
			return
		}
		RegisterMetrics()

		// Skip metrics endpoint to avoid self-referential metrics
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		activeConnectionsCount.Add(1)
		activeConnections.Inc()
		defer func() {
			activeConnectionsCount.Add(-1)
			activeConnections.Dec()
		}()

		path := normalizePath(c.Request.URL.Path)
		method := c.Request.Method

		if c.Request.ContentLength > 0 {
			httpRequestSizeBytes.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, path).Observe(duration)

		if responseSize := c.Writer.Size(); responseSize > 0 {
			httpResponseSizeBytes.WithLabelValues(method, path).Observe(float64(responseSize))
		}
	}
}

// normalizePath maps a request path onto a bounded label set. Unrouted paths
// collapse to "other" so the catch-all route cannot inflate cardinality.
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/healthz", "/metrics",
		"/v1/messages", "/v1/messages/count_tokens", "/v1/translations":
		return path
	case "/messages":
		return "/v1/messages"
	case "/messages/count_tokens":
		return "/v1/messages/count_tokens"
	default:
		return "other"
	}
}

// MetricsHandler returns the Prometheus HTTP handler for the /metrics endpoint.
func MetricsHandler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		if !IsMetricsEnabled() {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		RegisterMetrics()
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// GetActiveConnections returns the current number of active connections.
func GetActiveConnections() int64 {
	return activeConnectionsCount.Load()
}

// RecordTokenUsage adds tokens of tokenType ("input" or "output") for model.
func RecordTokenUsage(model, tokenType string, tokens int64) {
	if !IsMetricsEnabled() || tokens <= 0 {
		return
	}
	RegisterMetrics()
	tokenUsage.WithLabelValues(model, tokenType).Add(float64(tokens))
}

// UsagePlugin records backend usage records as Prometheus metrics.
type UsagePlugin struct{}

// NewUsagePlugin returns the metrics usage plugin.
func NewUsagePlugin() *UsagePlugin { return &UsagePlugin{} }

// HandleUsage implements usage.Plugin. The model label is the pricing family
// of the requested model, never the raw client string.
func (p *UsagePlugin) HandleUsage(_ context.Context, record usage.Record) {
	if !IsMetricsEnabled() {
		return
	}
	RegisterMetrics()

	model := usage.ModelLabel(record.Model)
	mode := "non_stream"
	if record.Stream {
		mode = "stream"
	}
	outcome := "success"
	if record.Failed {
		outcome = "failure"
	}
	backendRequestsTotal.WithLabelValues(model, mode, outcome).Inc()
	if record.Duration > 0 {
		backendRequestDurationSeconds.WithLabelValues(model, mode).Observe(record.Duration.Seconds())
	}
	RecordTokenUsage(model, "input", record.InputTokens)
	RecordTokenUsage(model, "output", record.OutputTokens)
}
